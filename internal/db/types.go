package db

import (
	"context"
	"time"

	"github.com/bazelbuild/bazel-bench/internal/benchmark"
)

// RunRow is one uploaded run.
type RunRow struct {
	SessionID     string    `json:"session_id"`
	UID           string    `json:"uid"`
	ProjectSource string    `json:"project_source"`
	Platform      string    `json:"platform"`
	BazelCommit   string    `json:"bazel_commit"`
	ProjectCommit string    `json:"project_commit"`
	Run           int       `json:"run"`
	Wall          float64   `json:"wall"`
	CPU           float64   `json:"cpu"`
	System        float64   `json:"system"`
	Memory        *int64    `json:"memory,omitempty"`
	ExitStatus    int       `json:"exit_status"`
	StartedAt     time.Time `json:"started_at"`
	Command       string    `json:"command"`
	Options       string    `json:"options"`
	Targets       string    `json:"targets"`
}

// Store persists benchmark results for later analysis.
type Store interface {
	Close() error
	// SaveSession stores every run of the session and returns the id the
	// upload was stored under.
	SaveSession(ctx context.Context, s *benchmark.Session) (string, error)
	// QueryRuns returns the runs of the session with the given uid, in the
	// order they were recorded.
	QueryRuns(ctx context.Context, uid string) ([]RunRow, error)
}
