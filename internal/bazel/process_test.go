package bazel

import (
	"context"
	"os"
	"os/exec"
	"testing"

	bberrors "github.com/bazelbuild/bazel-bench/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeExecCommand(ctx context.Context, command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[1:]
	switch args[1] {
	case "fail":
		os.Stderr.WriteString("boom")
		os.Exit(3)
	case "info":
		os.Stdout.WriteString("123\n")
	}
	os.Exit(0)
}

func withFakeExec(t *testing.T) {
	t.Helper()
	execCommand = fakeExecCommand
	t.Cleanup(func() { execCommand = exec.CommandContext })
}

func TestExecProcess_Run(t *testing.T) {
	withFakeExec(t)
	p := &ExecProcess{}

	exit, stderr, err := p.Run(context.Background(), []string{"bazel", "fail"}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, exit)
	assert.Equal(t, "boom", string(stderr))

	exit, _, err = p.Run(context.Background(), []string{"bazel", "build"}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, exit)
}

func TestExecProcess_Output(t *testing.T) {
	withFakeExec(t)
	p := &ExecProcess{}

	out, err := p.Output(context.Background(), []string{"bazel", "info"})
	require.NoError(t, err)
	assert.Equal(t, "123\n", string(out))

	_, err = p.Output(context.Background(), []string{"bazel", "fail"})
	assert.Error(t, err)
}

func TestExecProcess_LaunchError(t *testing.T) {
	p := &ExecProcess{}
	_, _, err := p.Run(context.Background(), []string{"/nonexistent/bazel-bench-binary"}, true)
	assert.True(t, bberrors.IsLaunchFailure(err))

	_, _, err = p.Run(context.Background(), nil, true)
	assert.True(t, bberrors.IsLaunchFailure(err))
	assert.Contains(t, err.Error(), "failed to launch <empty>")

	_, err = p.Output(context.Background(), nil)
	assert.True(t, bberrors.IsLaunchFailure(err))
	assert.Contains(t, err.Error(), "failed to launch <empty>")
}
