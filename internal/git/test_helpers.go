package git

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock of Client for testing purposes.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) EnsureRepo(ctx context.Context, source, path string) error {
	args := m.Called(ctx, source, path)
	return args.Error(0)
}

func (m *MockClient) Checkout(ctx context.Context, dir, ref string) error {
	args := m.Called(ctx, dir, ref)
	return args.Error(0)
}

func (m *MockClient) HeadCommit(ctx context.Context, dir string) (string, error) {
	args := m.Called(ctx, dir)
	return args.String(0), args.Error(1)
}

func (m *MockClient) SortTopological(ctx context.Context, dir string, shas []string) ([]string, error) {
	args := m.Called(ctx, dir, shas)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}
