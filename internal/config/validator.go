package config

import (
	"fmt"

	bberrors "github.com/bazelbuild/bazel-bench/internal/errors"
)

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.ProjectSource == "" {
		problems = append(problems, "project_source is required")
	}
	if c.Runs < 1 {
		problems = append(problems, fmt.Sprintf("runs must be positive, got: %d", c.Runs))
	}
	if len(c.BazelCommits) > 1 && len(c.ProjectCommits) > 1 {
		problems = append(problems, "either bazel_commits or project_commits should be a single element")
	}
	if c.AggregateJSONProfiles && !c.CollectJSONProfile {
		problems = append(problems, "aggregate_json_profiles requires collect_json_profile to be set")
	}

	if c.HasExplicitUnits() {
		for i, u := range c.Units {
			switch {
			case u.BazelCommit != "" && u.BazelBinary != "":
				problems = append(problems, fmt.Sprintf("unit %d sets both bazel_commit and bazel_binary", i+1))
			case u.BazelCommit == "" && u.BazelBinary == "":
				problems = append(problems, fmt.Sprintf("unit %d sets neither bazel_commit nor bazel_binary", i+1))
			}
			if u.Runs < 0 {
				problems = append(problems, fmt.Sprintf("unit %d: runs must be positive, got: %d", i+1, u.Runs))
			}
			if u.Command == "" && c.Command == "" && len(c.Args) == 0 {
				problems = append(problems, fmt.Sprintf("unit %d has no bazel command", i+1))
			}
		}
	} else if c.Command == "" && len(c.Args) == 0 {
		problems = append(problems, "no bazel command given")
	}

	switch c.DB.Type {
	case "", "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("db.type must be sqlite or postgres, got: %s", c.DB.Type))
	}
	if c.DB.Type != "" && c.DB.DSN == "" {
		problems = append(problems, "db.dsn is required when db.type is set")
	}

	if len(problems) > 0 {
		return bberrors.NewConfigError(problems...)
	}
	return nil
}
