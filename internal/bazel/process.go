package bazel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	bberrors "github.com/bazelbuild/bazel-bench/internal/errors"
)

// ExternalProcess runs a program from an argument vector. Implementations
// never go through a shell.
type ExternalProcess interface {
	// Run starts argv[0] with the remaining arguments and waits for it. A
	// non-zero exit is reported through exitStatus with a nil error; err is
	// only set when the process could not be run at all. When captureStderr
	// is set, the child's stderr is returned.
	Run(ctx context.Context, argv []string, captureStderr bool) (exitStatus int, stderr []byte, err error)

	// Output runs argv and returns its stdout. A non-zero exit is an error.
	Output(ctx context.Context, argv []string) ([]byte, error)
}

// ExecProcess implements ExternalProcess with os/exec. The child's stdout is
// discarded unless Stdout is set.
type ExecProcess struct {
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer // receives stderr in addition to the capture buffer
}

// execCommand allows mocking in tests.
var execCommand = exec.CommandContext

func (p *ExecProcess) command(ctx context.Context, argv []string) (*exec.Cmd, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argument vector")
	}
	cmd := execCommand(ctx, argv[0], argv[1:]...)
	cmd.Dir = p.Dir
	if p.Env != nil {
		cmd.Env = p.Env
	}
	return cmd, nil
}

// Run implements ExternalProcess.
func (p *ExecProcess) Run(ctx context.Context, argv []string, captureStderr bool) (int, []byte, error) {
	cmd, err := p.command(ctx, argv)
	if err != nil {
		return 0, nil, bberrors.NewLaunchError("<empty>", nil, err)
	}

	cmd.Stdout = io.Discard
	if p.Stdout != nil {
		cmd.Stdout = p.Stdout
	}
	var errBuf bytes.Buffer
	var stderrWriters []io.Writer
	if captureStderr {
		stderrWriters = append(stderrWriters, &errBuf)
	}
	if p.Stderr != nil {
		stderrWriters = append(stderrWriters, p.Stderr)
	}
	cmd.Stderr = io.MultiWriter(stderrWriters...)

	if err := cmd.Start(); err != nil {
		return 0, nil, bberrors.NewLaunchError(argv[0], argv[1:], err)
	}

	err = cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, errBuf.Bytes(), nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), errBuf.Bytes(), nil
	default:
		return 0, errBuf.Bytes(), bberrors.NewLaunchError(argv[0], argv[1:], err)
	}
}

// Output implements ExternalProcess.
func (p *ExecProcess) Output(ctx context.Context, argv []string) ([]byte, error) {
	cmd, err := p.command(ctx, argv)
	if err != nil {
		return nil, bberrors.NewLaunchError("<empty>", nil, err)
	}
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s exited with status %d: %s", argv[0], exitErr.ExitCode(), bytes.TrimSpace(errBuf.Bytes()))
		}
		return nil, bberrors.NewLaunchError(argv[0], argv[1:], err)
	}
	return out, nil
}
