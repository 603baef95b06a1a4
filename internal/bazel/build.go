package bazel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Checkouter checks out a ref in a local repository.
type Checkouter interface {
	Checkout(ctx context.Context, dir, ref string) error
}

// Builder builds Bazel binaries from a source checkout. Binaries are cached
// under OutRoot/<commit>/bazel and reused across sessions.
type Builder struct {
	RepoDir string
	OutRoot string
	Git     Checkouter
	Process ExternalProcess // runs inside RepoDir
	Logger  *slog.Logger
}

// NewBuilder returns a Builder that runs the system bazel inside repoDir.
func NewBuilder(repoDir, outRoot string, git Checkouter, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		RepoDir: repoDir,
		OutRoot: outRoot,
		Git:     git,
		Process: &ExecProcess{Dir: repoDir},
		Logger:  logger,
	}
}

// CachedPath is where the binary for commit is stored.
func (b *Builder) CachedPath(commit string) string {
	return filepath.Join(b.OutRoot, commit, "bazel")
}

// Build returns the path of the Bazel binary built at commit, building it
// if no cached copy exists.
func (b *Builder) Build(ctx context.Context, commit string) (string, error) {
	dest := b.CachedPath(commit)
	if _, err := os.Stat(dest); err == nil {
		b.Logger.Info("binary exists, using cache", "commit", commit, "path", dest)
		return dest, nil
	}

	b.Logger.Info("building bazel binary", "commit", commit)
	if err := b.Git.Checkout(ctx, b.RepoDir, commit); err != nil {
		return "", err
	}
	exit, stderr, err := b.Process.Run(ctx, []string{"bazel", "build", "//src:bazel"}, true)
	if err != nil {
		return "", err
	}
	if exit != 0 {
		return "", fmt.Errorf("building bazel at %s failed with exit status %d: %s", commit, exit, stderr)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create binary cache dir: %w", err)
	}
	if err := copyFile(filepath.Join(b.RepoDir, "bazel-bin", "src", "bazel"), dest, 0755); err != nil {
		return "", err
	}
	return dest, nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open built binary: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy binary to %s: %w", dst, err)
	}
	return out.Close()
}
