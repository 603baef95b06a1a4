package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bazelbuild/bazel-bench/internal/bazel"
	"github.com/bazelbuild/bazel-bench/internal/bazelargs"
)

// Invoker runs and measures Bazel commands for one binary.
type Invoker interface {
	Command(ctx context.Context, command string, args []string, collectMemory bool) (*RunRecord, error)
}

// RunObserver is told about every measured repetition.
type RunObserver interface {
	ObserveRun(tool string, wall, cpu, system float64, exitStatus int)
}

// Runner executes benchmark units one after another.
type Runner struct {
	// NewInvoker returns the invoker for a binary and optional bazelrc.
	NewInvoker func(binary, bazelrc string) Invoker
	// Process runs the optional setup command.
	Process bazel.ExternalProcess
	// Chdir switches the working directory to the project checkout.
	Chdir func(dir string) error

	// BEPDir receives the build event file of the prefetch run.
	BEPDir string
	// ProfileDir receives JSON trace profiles.
	ProfileDir string
	// UID names the session in profile file names.
	UID string

	Logger   *slog.Logger
	Observer RunObserver
}

// NewRunner returns a Runner that drives real Bazel binaries.
func NewRunner(uid, bepDir, profileDir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	proc := &bazel.ExecProcess{}
	return &Runner{
		NewInvoker: func(binary, bazelrc string) Invoker {
			return bazel.New(binary,
				bazel.WithBazelrc(bazelrc),
				bazel.WithProcess(proc),
				bazel.WithLogger(logger))
		},
		Process:    proc,
		Chdir:      os.Chdir,
		BEPDir:     bepDir,
		ProfileDir: profileDir,
		UID:        uid,
		Logger:     logger,
	}
}

// Run benchmarks one unit. It returns one record per repetition, in order,
// together with the normalized invocation that was measured. A launch
// failure aborts the unit; a non-zero exit status does not.
func (r *Runner) Run(ctx context.Context, u Unit) ([]RunRecord, bazelargs.InvocationSpec, error) {
	if err := u.Validate(); err != nil {
		return nil, bazelargs.InvocationSpec{}, err
	}
	if u.CollectProfile && r.ProfileDir == "" {
		return nil, bazelargs.InvocationSpec{}, errors.New("profile collection requires a profile directory")
	}

	if err := r.Chdir(u.ProjectPath); err != nil {
		return nil, bazelargs.InvocationSpec{}, fmt.Errorf("failed to enter project checkout %s: %w", u.ProjectPath, err)
	}
	r.Logger.Info("=== BENCHMARKING BAZEL ===", "bazel", u.Tool.Identifier(), "project", u.ProjectCommit)

	if err := r.setup(ctx, u); err != nil {
		return nil, bazelargs.InvocationSpec{}, err
	}

	inv := r.NewInvoker(u.Tool.Path, u.Bazelrc)
	spec, err := r.resolve(ctx, inv, u)
	if err != nil {
		return nil, bazelargs.InvocationSpec{}, err
	}

	if u.CollectProfile {
		if err := os.MkdirAll(r.ProfileDir, 0755); err != nil {
			return nil, spec, fmt.Errorf("failed to create profile dir: %w", err)
		}
	}

	records := make([]RunRecord, 0, u.Runs)
	for i := 1; i <= u.Runs; i++ {
		r.Logger.Info("starting benchmark run", "run", fmt.Sprintf("%d/%d", i, u.Runs))

		args := slices.Clone(spec.Options)
		if u.CollectProfile {
			path := ProfilePath(r.ProfileDir, r.UID, u.Tool.Identifier(), u.ProjectCommit, i, u.Runs)
			args = append(args, ProfileFlags(path)...)
		}
		args = append(args, spec.Targets...)

		rec, err := r.singleRun(ctx, inv, spec.Command, args, u.CollectMemory)
		if err != nil {
			return nil, spec, err
		}
		if r.Observer != nil {
			r.Observer.ObserveRun(u.Tool.Identifier(), rec.Wall, rec.CPU, rec.System, rec.ExitStatus)
		}
		records = append(records, *rec)
	}
	return records, spec, nil
}

func (r *Runner) setup(ctx context.Context, u Unit) error {
	if len(u.SetupCommand) == 0 {
		return nil
	}
	r.Logger.Info("executing setup command", "command", strings.Join(u.SetupCommand, " "))
	exit, stderr, err := r.Process.Run(ctx, u.SetupCommand, true)
	if err != nil {
		return err
	}
	if exit != 0 {
		r.Logger.Warn("setup command failed", "exit_status", exit, "stderr", strings.TrimSpace(string(stderr)))
	}
	return nil
}

// resolve determines the invocation to measure. With prefetching, the
// command runs once with a build event file appended last and the
// invocation is read back from it; otherwise the raw tokens are parsed.
func (r *Runner) resolve(ctx context.Context, inv Invoker, u Unit) (bazelargs.InvocationSpec, error) {
	if !u.PrefetchExtDeps {
		r.Logger.Info("parsing arguments from command line")
		return bazelargs.FromCanonical(u.RawArgs)
	}

	if err := os.MkdirAll(r.BEPDir, 0755); err != nil {
		return bazelargs.InvocationSpec{}, fmt.Errorf("failed to create build event dir: %w", err)
	}
	bepPath := filepath.Join(r.BEPDir, "build_env.json")
	r.Logger.Info("pre-fetching external dependencies", "build_event_file", bepPath)

	// The file is shared between units; a leftover must never be parsed.
	if err := os.Remove(bepPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return bazelargs.InvocationSpec{}, fmt.Errorf("failed to remove stale build event file: %w", err)
	}

	args := append(slices.Clone(u.RawArgs[1:]), bazelargs.BuildEventFlag(bepPath))
	rec, err := r.singleRun(ctx, inv, u.RawArgs[0], args, u.CollectMemory)
	if err != nil {
		return bazelargs.InvocationSpec{}, err
	}
	if rec.ExitStatus != 0 {
		if _, statErr := os.Stat(bepPath); statErr != nil {
			return bazelargs.InvocationSpec{}, fmt.Errorf("pre-fetch run exited with status %d and wrote no build events", rec.ExitStatus)
		}
		r.Logger.Warn("pre-fetch run failed, using its build events anyway", "exit_status", rec.ExitStatus)
	}
	return bazelargs.FromBuildEventFile(bepPath)
}

// singleRun measures one command and then returns Bazel to a clean state.
// The cleanup runs even when the measured command failed.
func (r *Runner) singleRun(ctx context.Context, inv Invoker, command string, args []string, collectMemory bool) (*RunRecord, error) {
	rec, runErr := inv.Command(ctx, command, args, collectMemory)

	_, cleanErr := inv.Command(ctx, "clean", []string{"--color=no"}, false)
	_, shutdownErr := inv.Command(ctx, "shutdown", nil, false)

	if err := errors.Join(runErr, cleanErr, shutdownErr); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("bazel %s produced no measurement", command)
	}
	return rec, nil
}
