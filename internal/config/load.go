package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read into the configuration.
const EnvPrefix = "BAZEL_BENCH"

// DefaultBazelSource is cloned to build Bazel binaries from commits.
const DefaultBazelSource = "https://github.com/bazelbuild/bazel.git"

// Load initializes v from .env, the config file and environment variables.
// With an empty cfgFile, ./bazel-bench.yaml is used when present.
func Load(v *viper.Viper, cfgFile string) error {
	// A missing .env is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("bazel-bench")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	root := defaultBenchRoot()

	v.SetDefault("bazel_commits", []string{})
	v.SetDefault("bazel_binaries", []string{})
	v.SetDefault("bazel_source", DefaultBazelSource)
	v.SetDefault("bazel_bin_dir", "")
	v.SetDefault("project_source", "")
	v.SetDefault("project_commits", []string{})
	v.SetDefault("bench_root", root)
	v.SetDefault("bazelrc", "")
	v.SetDefault("platform", "")
	v.SetDefault("data_directory", "")
	v.SetDefault("csv_file_name", "")
	v.SetDefault("command", "")
	v.SetDefault("setup_command", "")
	v.SetDefault("log_file", "")
	v.SetDefault("runs", 3)
	v.SetDefault("verbose", false)
	v.SetDefault("collect_memory", false)
	v.SetDefault("prefetch_ext_deps", true)
	v.SetDefault("collect_json_profile", false)
	v.SetDefault("aggregate_json_profiles", false)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("db.type", "")
	v.SetDefault("db.dsn", "")

	// Notification Defaults
	v.SetDefault("notifications.slack.enabled", os.Getenv("SLACK_BOT_USER_TOKEN") != "")
	v.SetDefault("notifications.slack.channel", "#bazel-bench")
	v.SetDefault("notifications.slack.webhook_url", "")
}

func defaultBenchRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bazel-bench"
	}
	return filepath.Join(home, ".bazel-bench")
}
