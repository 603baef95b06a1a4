package git

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultBranch is pulled when the remote's HEAD cannot be determined.
const DefaultBranch = "master"

// Client handles git interactions.
type Client struct {
	// Output receives git's progress output. Nil discards it.
	Output io.Writer
	Logger *slog.Logger
}

// NewClient creates a new Git client.
func NewClient() *Client {
	return &Client{Logger: slog.Default()}
}

// maskingWriter wraps an io.Writer and masks credentials embedded in URLs.
type maskingWriter struct {
	w io.Writer
}

var (
	reGitHubPAT = regexp.MustCompile(`https://[^@:]+@github\.com`)
	reBasicAuth = regexp.MustCompile(`https://[^:/]+:[^@/]+@`)
)

func (mw *maskingWriter) Write(p []byte) (n int, err error) {
	_, err = mw.w.Write([]byte(mask(string(p))))
	return len(p), err
}

func mask(s string) string {
	s = reGitHubPAT.ReplaceAllString(s, "https://[REDACTED]@github.com")
	return reBasicAuth.ReplaceAllString(s, "https://[REDACTED]@")
}

// run executes git in dir and returns its trimmed stdout.
func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Enforce no prompting
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=/bin/true")

	progress := io.Discard
	if c.Output != nil {
		progress = c.Output
	}
	cmd.Stdout = &outBuf
	cmd.Stderr = &maskingWriter{w: io.MultiWriter(progress, &errBuf)}

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w\nStderr: %s", args[0], err, strings.TrimSpace(errBuf.String()))
	}
	return strings.TrimSpace(outBuf.String()), nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// CloneDir is the clone location of source under root. Distinct sources
// never share a directory.
func CloneDir(root, source string) string {
	sum := md5.Sum([]byte(source))
	return filepath.Join(root, hex.EncodeToString(sum[:]))
}

// Clone clones a repository into a destination directory.
func (c *Client) Clone(ctx context.Context, url, dest string) error {
	// Clone can take a while
	cloneCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	_, err := c.run(cloneCtx, "", "clone", url, dest)
	return err
}

// RepoExists checks if the directory is a git repository.
func (c *Client) RepoExists(dir string) bool {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false
	}
	_, err := c.run(context.Background(), dir, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// EnsureRepo makes path a clone of source at the tip of its default
// branch, cloning or pulling as needed.
func (c *Client) EnsureRepo(ctx context.Context, source, path string) error {
	if !c.RepoExists(path) {
		c.logger().Info("cloning repository", "source", mask(source), "path", path)
		return c.Clone(ctx, source, path)
	}

	c.logger().Info("path exists, updating", "path", path)
	branch := c.defaultBranch(ctx, path)
	if err := c.Checkout(ctx, path, branch); err != nil {
		return err
	}
	pullCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	_, err := c.run(pullCtx, path, "pull", "-f", "origin", branch)
	return err
}

func (c *Client) defaultBranch(ctx context.Context, dir string) string {
	ref, err := c.run(ctx, dir, "symbolic-ref", "--short", "refs/remotes/origin/HEAD")
	if err != nil || ref == "" {
		return DefaultBranch
	}
	return strings.TrimPrefix(ref, "origin/")
}

// Checkout force-checks out ref, discarding local changes.
func (c *Client) Checkout(ctx context.Context, dir, ref string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	_, err := c.run(ctx, dir, "checkout", "-f", ref)
	return err
}

// HeadCommit returns the full SHA of HEAD.
func (c *Client) HeadCommit(ctx context.Context, dir string) (string, error) {
	return c.run(ctx, dir, "rev-parse", "HEAD")
}

// SortTopological resolves shas to full commit ids and returns them oldest
// first in the topological order of HEAD's history. Commits not reachable
// from HEAD are an error.
func (c *Client) SortTopological(ctx context.Context, dir string, shas []string) ([]string, error) {
	wanted := make(map[string]bool, len(shas))
	for _, sha := range shas {
		full, err := c.run(ctx, dir, "rev-parse", "--verify", "--quiet", sha+"^{commit}")
		if err != nil {
			return nil, fmt.Errorf("commit %s not found: %w", sha, err)
		}
		wanted[full] = true
	}

	out, err := c.run(ctx, dir, "rev-list", "--topo-order", "--reverse", "HEAD")
	if err != nil {
		return nil, err
	}

	sorted := make([]string, 0, len(wanted))
	for _, line := range strings.Split(out, "\n") {
		if wanted[line] {
			sorted = append(sorted, line)
			delete(wanted, line)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for sha := range wanted {
			missing = append(missing, sha)
		}
		return nil, fmt.Errorf("the following commits weren't found in the history of HEAD: %s", strings.Join(missing, ", "))
	}
	return sorted, nil
}
