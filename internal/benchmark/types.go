package benchmark

import (
	"strings"
	"time"

	"github.com/bazelbuild/bazel-bench/internal/bazel"
	"github.com/bazelbuild/bazel-bench/internal/bazelargs"
	bberrors "github.com/bazelbuild/bazel-bench/internal/errors"
)

// RunRecord is the measurement of one repetition.
type RunRecord = bazel.RunRecord

// ToolKind says how a Tool was obtained.
type ToolKind string

const (
	ToolCommit ToolKind = "commit"
	ToolBinary ToolKind = "binary"
)

// Tool identifies the Bazel binary under test. Build it with CommitTool or
// BinaryTool.
type Tool struct {
	Kind   ToolKind `json:"kind"`
	Commit string   `json:"commit,omitempty"`
	Path   string   `json:"path"`
}

// CommitTool is a binary built from a source commit.
func CommitTool(sha, binaryPath string) Tool {
	return Tool{Kind: ToolCommit, Commit: sha, Path: binaryPath}
}

// BinaryTool is a prebuilt binary.
func BinaryTool(path string) Tool {
	return Tool{Kind: ToolBinary, Path: path}
}

// Identifier is the commit for commit tools and the path for binary tools.
func (t Tool) Identifier() string {
	if t.Kind == ToolCommit {
		return t.Commit
	}
	return t.Path
}

func (t Tool) problems() []string {
	var p []string
	switch t.Kind {
	case ToolCommit:
		if t.Commit == "" {
			p = append(p, "commit tool has no commit")
		}
		if t.Path == "" {
			p = append(p, "commit tool "+t.Commit+" has no binary path")
		}
	case ToolBinary:
		if t.Path == "" {
			p = append(p, "binary tool has no path")
		}
	default:
		p = append(p, "unknown tool kind "+string(t.Kind))
	}
	return p
}

// Validate reports an inconsistent tool as a ConfigError.
func (t Tool) Validate() error {
	if p := t.problems(); len(p) > 0 {
		return bberrors.NewConfigError(p...)
	}
	return nil
}

// Unit is one (tool, project commit) combination to benchmark.
type Unit struct {
	Tool          Tool
	ProjectSource string
	ProjectCommit string
	ProjectPath   string // checkout root, already at ProjectCommit
	Runs          int

	CollectMemory   bool
	CollectProfile  bool
	PrefetchExtDeps bool

	// RawArgs is the configured Bazel command, command token first.
	RawArgs      []string
	Bazelrc      string
	SetupCommand []string
}

// Validate checks the unit before any process is launched.
func (u Unit) Validate() error {
	problems := u.Tool.problems()
	if u.Runs < 1 {
		problems = append(problems, "runs must be at least 1")
	}
	if len(u.RawArgs) == 0 || strings.TrimSpace(u.RawArgs[0]) == "" {
		problems = append(problems, "no bazel command given")
	}
	if u.ProjectCommit == "" {
		problems = append(problems, "project commit is empty")
	}
	if u.ProjectPath == "" {
		problems = append(problems, "project path is empty")
	}
	if len(problems) > 0 {
		return bberrors.NewConfigError(problems...)
	}
	return nil
}

// UnitResult is what one unit produced.
type UnitResult struct {
	Tool          Tool                     `json:"tool"`
	ProjectCommit string                   `json:"project_commit"`
	Invocation    bazelargs.InvocationSpec `json:"invocation"`
	Runs          []RunRecord              `json:"runs"`
}

// Session is one complete bazel-bench run over all units.
type Session struct {
	UID           string       `json:"uid"`
	StartedAt     time.Time    `json:"started_at"`
	ProjectSource string       `json:"project_source"`
	Platform      string       `json:"platform,omitempty"`
	Units         []UnitResult `json:"units"`
}

// NewUID returns the session identifier for a start time.
func NewUID(t time.Time) string {
	return t.UTC().Format("20060102150405")
}
