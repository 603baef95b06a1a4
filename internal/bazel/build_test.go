package bazel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheckout struct{ refs []string }

func (f *fakeCheckout) Checkout(_ context.Context, _, ref string) error {
	f.refs = append(f.refs, ref)
	return nil
}

// builtProcess writes a fake binary where `bazel build //src:bazel` would.
type builtProcess struct {
	repo  string
	calls int
}

func (p *builtProcess) Run(_ context.Context, _ []string, _ bool) (int, []byte, error) {
	p.calls++
	out := filepath.Join(p.repo, "bazel-bin", "src")
	if err := os.MkdirAll(out, 0755); err != nil {
		return 0, nil, err
	}
	return 0, nil, os.WriteFile(filepath.Join(out, "bazel"), []byte("binary"), 0755)
}

func (p *builtProcess) Output(context.Context, []string) ([]byte, error) { return nil, nil }

func TestBuilder_BuildsOnceAndCaches(t *testing.T) {
	repo := t.TempDir()
	outRoot := t.TempDir()
	git := &fakeCheckout{}
	proc := &builtProcess{repo: repo}

	b := NewBuilder(repo, outRoot, git, quietLogger())
	b.Process = proc

	path, err := b.Build(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outRoot, "abc123", "bazel"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	_, err = b.Build(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, 1, proc.calls)
	assert.Equal(t, []string{"abc123"}, git.refs)
}
