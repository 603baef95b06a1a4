package config

import (
	"runtime"
)

// UnitConfig describes one benchmark unit. Exactly one of BazelCommit and
// BazelBinary is set. Empty fields fall back to the top-level values.
type UnitConfig struct {
	BazelCommit    string `mapstructure:"bazel_commit"`
	BazelBinary    string `mapstructure:"bazel_binary"`
	ProjectCommit  string `mapstructure:"project_commit"`
	Command        string `mapstructure:"command"`
	Runs           int    `mapstructure:"runs"`
	CollectProfile *bool  `mapstructure:"collect_profile"`
}

// HasExplicitUnits reports whether the units were listed in the config file
// rather than derived from the commit lists.
func (c *Config) HasExplicitUnits() bool {
	return len(c.Units) > 0
}

// Matrix returns the units to run, in order. Without explicit units it is
// every bazel commit against every project commit followed by every binary
// against every project commit. Explicit units get the top-level runs,
// command and profile settings where they leave them empty; a unit without
// a project commit uses the first of projectCommits.
func (c *Config) Matrix(bazelCommits, projectCommits []string) []UnitConfig {
	collect := c.CollectJSONProfile

	if c.HasExplicitUnits() {
		out := make([]UnitConfig, 0, len(c.Units))
		for _, u := range c.Units {
			if u.Runs == 0 {
				u.Runs = c.Runs
			}
			if u.CollectProfile == nil {
				u.CollectProfile = &collect
			}
			if u.ProjectCommit == "" && len(projectCommits) > 0 {
				u.ProjectCommit = projectCommits[0]
			}
			out = append(out, u)
		}
		return out
	}

	var out []UnitConfig
	for _, bc := range bazelCommits {
		for _, pc := range projectCommits {
			out = append(out, UnitConfig{BazelCommit: bc, ProjectCommit: pc, Runs: c.Runs, CollectProfile: &collect})
		}
	}
	for _, bin := range c.BazelBinaries {
		for _, pc := range projectCommits {
			out = append(out, UnitConfig{BazelBinary: bin, ProjectCommit: pc, Runs: c.Runs, CollectProfile: &collect})
		}
	}
	return out
}

// UnitArgs returns the Bazel command tokens of u. A unit without its own
// command uses the top-level one.
func (c *Config) UnitArgs(u UnitConfig) ([]string, error) {
	if u.Command == "" {
		return c.BazelArgs()
	}
	return commandTokens(nil, u.Command, runtime.GOOS)
}

// ExplicitBazelCommits lists the bazel commits named by explicit units, in
// order and without duplicates.
func (c *Config) ExplicitBazelCommits() []string {
	return uniq(c.Units, func(u UnitConfig) string { return u.BazelCommit })
}

// ExplicitProjectCommits lists the project commits named by explicit units.
func (c *Config) ExplicitProjectCommits() []string {
	return uniq(c.Units, func(u UnitConfig) string { return u.ProjectCommit })
}

func uniq(units []UnitConfig, field func(UnitConfig) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range units {
		v := field(u)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
