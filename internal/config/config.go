// Package config loads the bazel-bench configuration and turns it into the
// list of units to benchmark.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/viper"
)

// SandboxTmpfsFlag works around sandbox failures with a tmpfs /tmp on linux.
const SandboxTmpfsFlag = "--sandbox_tmpfs_path=/tmp"

// Config is the resolved configuration of one bazel-bench invocation. It is
// not modified after FromViper returns.
type Config struct {
	BazelCommits  []string `mapstructure:"bazel_commits"`
	BazelBinaries []string `mapstructure:"bazel_binaries"`
	BazelSource   string   `mapstructure:"bazel_source"`
	BazelBinDir   string   `mapstructure:"bazel_bin_dir"`

	ProjectSource  string   `mapstructure:"project_source"`
	ProjectCommits []string `mapstructure:"project_commits"`

	Runs     int    `mapstructure:"runs"`
	Bazelrc  string `mapstructure:"bazelrc"`
	Platform string `mapstructure:"platform"`
	Verbose  bool   `mapstructure:"verbose"`

	CollectMemory         bool `mapstructure:"collect_memory"`
	PrefetchExtDeps       bool `mapstructure:"prefetch_ext_deps"`
	CollectJSONProfile    bool `mapstructure:"collect_json_profile"`
	AggregateJSONProfiles bool `mapstructure:"aggregate_json_profiles"`

	DataDirectory string `mapstructure:"data_directory"`
	CSVFileName   string `mapstructure:"csv_file_name"`
	BenchRoot     string `mapstructure:"bench_root"`

	// Command is the Bazel command as a single string. Args given on the
	// command line take precedence.
	Command      string   `mapstructure:"command"`
	Args         []string `mapstructure:"-"`
	SetupCommand string   `mapstructure:"setup_command"`

	Units []UnitConfig `mapstructure:"units"`

	MetricsAddr string `mapstructure:"metrics_addr"`
	LogFile     string `mapstructure:"log_file"`

	DB            DBConfig            `mapstructure:"db"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// DBConfig selects where run records are uploaded. An empty Type disables
// the upload.
type DBConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

type NotificationsConfig struct {
	Slack SlackConfig `mapstructure:"slack"`
}

type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Channel    string `mapstructure:"channel"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// FromViper decodes v into a Config. args are the positional command line
// arguments forming the Bazel command.
func FromViper(v *viper.Viper, args []string) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	c.Args = append([]string(nil), args...)
	return &c, nil
}

// BazelClonePath is where the Bazel source is cloned.
func (c *Config) BazelClonePath() string {
	return filepath.Join(c.BenchRoot, "bazel")
}

// ProjectCloneRoot holds one clone per project source.
func (c *Config) ProjectCloneRoot() string {
	return filepath.Join(c.BenchRoot, "project-clones")
}

// BinaryDir holds the Bazel binaries built per commit.
func (c *Config) BinaryDir() string {
	if c.BazelBinDir != "" {
		return c.BazelBinDir
	}
	return filepath.Join(c.BenchRoot, "bazel-bin")
}

// OutDir receives build event files.
func (c *Config) OutDir() string {
	return filepath.Join(c.BenchRoot, "out")
}

// DataDir receives CSVs, profiles and saved sessions.
func (c *Config) DataDir() string {
	if c.DataDirectory != "" {
		return c.DataDirectory
	}
	return c.OutDir()
}

// ShouldCollectMemory reports whether heap sizes are collected. Setting a
// data directory turns it on.
func (c *Config) ShouldCollectMemory() bool {
	return c.CollectMemory || c.DataDirectory != ""
}

// BazelArgs returns the Bazel command tokens, command first. On linux the
// sandbox tmpfs workaround is added right after the command.
func (c *Config) BazelArgs() ([]string, error) {
	return commandTokens(c.Args, c.Command, runtime.GOOS)
}

func commandTokens(args []string, command, goos string) ([]string, error) {
	tokens := args
	if len(tokens) == 0 {
		var err error
		tokens, err = shellquote.Split(command)
		if err != nil {
			return nil, fmt.Errorf("failed to parse command %q: %w", command, err)
		}
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	out := []string{tokens[0]}
	if goos == "linux" {
		out = append(out, SandboxTmpfsFlag)
	}
	return append(out, tokens[1:]...), nil
}

// SetupArgv splits the setup command into an argument vector.
func (c *Config) SetupArgv() ([]string, error) {
	if c.SetupCommand == "" {
		return nil, nil
	}
	argv, err := shellquote.Split(c.SetupCommand)
	if err != nil {
		return nil, fmt.Errorf("failed to parse setup command: %w", err)
	}
	return argv, nil
}

// ResolvePaths makes every configured local path absolute. Units run with
// the project checkout as working directory.
func (c *Config) ResolvePaths() error {
	paths := []*string{&c.BenchRoot, &c.BazelBinDir, &c.DataDirectory, &c.Bazelrc, &c.LogFile}
	for i := range c.BazelBinaries {
		paths = append(paths, &c.BazelBinaries[i])
	}
	for i := range c.Units {
		paths = append(paths, &c.Units[i].BazelBinary)
	}
	if c.DB.Type == "sqlite" {
		paths = append(paths, &c.DB.DSN)
	}

	for _, p := range paths {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}
