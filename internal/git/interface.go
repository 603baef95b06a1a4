package git

import "context"

// IClient is the subset of git used to prepare checkouts.
type IClient interface {
	EnsureRepo(ctx context.Context, source, path string) error
	Checkout(ctx context.Context, dir, ref string) error
	HeadCommit(ctx context.Context, dir string) (string, error)
	SortTopological(ctx context.Context, dir string, shas []string) ([]string, error)
}

var _ IClient = (*Client)(nil)
