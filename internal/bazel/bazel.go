// Package bazel drives a Bazel client binary and measures the resources its
// server consumes for each command.
package bazel

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// HeapSamples is the number of heap readings taken after a command; the
	// smallest is kept.
	HeapSamples = 5

	// NullBazelrc isolates runs from user and workspace rc files when no
	// bazelrc is configured.
	NullBazelrc = "/dev/null"

	infoServerPID = "server_pid"
	infoUsedHeap  = "used-heap-size-after-gc"
)

// DefaultBuildOptions are prepended to every build invocation unless the
// caller already passes them.
var DefaultBuildOptions = []string{"--nostamp", "--noshow_progress", "--color=no"}

// RunRecord is the measurement of a single benchmarked invocation.
type RunRecord struct {
	Wall       float64   `json:"wall"`
	CPU        float64   `json:"cpu"`
	System     float64   `json:"system"`
	Memory     *int64    `json:"memory,omitempty"` // MB, set only when collected
	ExitStatus int       `json:"exit_status"`
	StartedAt  time.Time `json:"started_at"`
}

// Bazel invokes one Bazel client binary.
type Bazel struct {
	binary  string
	bazelrc string
	process ExternalProcess
	timer   CPUTimer
	now     func() time.Time
	logger  *slog.Logger

	pid int32 // cached server pid, 0 when unknown
}

// Option configures a Bazel.
type Option func(*Bazel)

// WithBazelrc passes --bazelrc=<path> as a startup option.
func WithBazelrc(path string) Option {
	return func(b *Bazel) { b.bazelrc = path }
}

// WithProcess replaces the process launcher.
func WithProcess(p ExternalProcess) Option {
	return func(b *Bazel) { b.process = p }
}

// WithCPUTimer replaces the server cpu accounting source.
func WithCPUTimer(t CPUTimer) Option {
	return func(b *Bazel) { b.timer = t }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(b *Bazel) { b.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bazel) { b.logger = l }
}

// New returns an invoker for the Bazel binary at path.
func New(binary string, opts ...Option) *Bazel {
	b := &Bazel{
		binary:  binary,
		process: &ExecProcess{},
		timer:   ProcessTimer{},
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Binary returns the path of the client binary.
func (b *Bazel) Binary() string { return b.binary }

func (b *Bazel) startupOptions() []string {
	if b.bazelrc == "" {
		return []string{"--bazelrc=" + NullBazelrc}
	}
	return []string{"--bazelrc=" + b.bazelrc}
}

func (b *Bazel) argv(command string, args []string) []string {
	argv := append([]string{b.binary}, b.startupOptions()...)
	argv = append(argv, command)
	return append(argv, args...)
}

// WithDefaultOptions returns args with DefaultBuildOptions prepended for
// build commands. Defaults already present in args are not repeated.
func WithDefaultOptions(command string, args []string) []string {
	if command != "build" {
		return slices.Clone(args)
	}
	out := make([]string, 0, len(DefaultBuildOptions)+len(args))
	for _, opt := range DefaultBuildOptions {
		if !slices.Contains(args, opt) {
			out = append(out, opt)
		}
	}
	return append(out, args...)
}

// Command runs `bazel <command> <args...>` and measures it. Build commands
// get DefaultBuildOptions. A shutdown returns a nil record and forgets the
// cached server pid. Only a failure to run the client at all is returned as
// an error; a non-zero exit is recorded in the RunRecord.
func (b *Bazel) Command(ctx context.Context, command string, args []string, collectMemory bool) (*RunRecord, error) {
	args = WithDefaultOptions(command, args)
	argv := b.argv(command, args)
	b.logger.Info("executing bazel command", "command", strings.Join(argv[1:], " "))

	if command == "shutdown" {
		exit, stderr, err := b.process.Run(ctx, argv, true)
		b.pid = 0
		if err != nil {
			return nil, err
		}
		b.logFailure(exit, stderr)
		return nil, nil
	}

	before, err := b.usage(ctx)
	if err != nil {
		return nil, err
	}
	startedAt := b.now().UTC()

	exit, stderr, err := b.process.Run(ctx, argv, true)
	if err != nil {
		return nil, err
	}
	b.logFailure(exit, stderr)

	after, err := b.usage(ctx)
	if err != nil {
		return nil, err
	}

	rec := &RunRecord{
		Wall:       after.wall - before.wall,
		CPU:        after.user - before.user,
		System:     after.system - before.system,
		ExitStatus: exit,
		StartedAt:  startedAt,
	}
	if collectMemory {
		heap, err := b.HeapSize(ctx)
		if err != nil {
			return nil, err
		}
		rec.Memory = &heap
	}
	return rec, nil
}

func (b *Bazel) logFailure(exit int, stderr []byte) {
	if exit == 0 {
		return
	}
	b.logger.Warn("bazel command failed", "exit_status", exit, "stderr", strings.TrimSpace(string(stderr)))
}

type usage struct {
	wall, user, system float64
}

func (b *Bazel) usage(ctx context.Context) (usage, error) {
	pid, err := b.ServerPID(ctx)
	if err != nil {
		return usage{}, err
	}
	user, system, err := b.timer.Times(ctx, pid)
	if err != nil {
		return usage{}, err
	}
	return usage{
		wall:   float64(b.now().UnixNano()) / float64(time.Second),
		user:   user,
		system: system,
	}, nil
}

// ServerPID returns the pid of the Bazel server, starting it if needed. The
// value is cached until the next shutdown.
func (b *Bazel) ServerPID(ctx context.Context) (int32, error) {
	if b.pid != 0 {
		return b.pid, nil
	}
	out, err := b.info(ctx, infoServerPID)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.ParseInt(out, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unexpected server pid %q: %w", out, err)
	}
	b.pid = int32(pid)
	return b.pid, nil
}

// HeapSize returns the server's used heap after GC in MB, the minimum of
// HeapSamples readings.
func (b *Bazel) HeapSize(ctx context.Context) (int64, error) {
	var smallest int64 = math.MaxInt64
	for range HeapSamples {
		out, err := b.info(ctx, infoUsedHeap)
		if err != nil {
			return 0, err
		}
		mb, err := strconv.ParseInt(strings.TrimSuffix(out, "MB"), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unexpected heap size %q: %w", out, err)
		}
		smallest = min(smallest, mb)
	}
	return smallest, nil
}

func (b *Bazel) info(ctx context.Context, key string) (string, error) {
	out, err := b.process.Output(ctx, b.argv("info", []string{key}))
	if err != nil {
		return "", fmt.Errorf("bazel info %s: %w", key, err)
	}
	return strings.TrimSpace(string(out)), nil
}
