package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bazelbuild/bazel-bench/internal/config"
	"github.com/bazelbuild/bazel-bench/internal/telemetry"
)

var exit = os.Exit
var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bazel-bench",
	Short: "Benchmark Bazel binaries against a project",
	Long: `bazel-bench runs a Bazel command repeatedly with one or more Bazel binaries
(built from commits or given as paths) on one or more commits of a project,
and reports wall, cpu, system time and memory together with their significance.

  bazel-bench run --project_source=https://github.com/bazelbuild/rules_go.git \
    --bazel_commits=abc123,def456 -- build //...`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./bazel-bench.yaml)")
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.String("log_file", "", "Also write JSON logs to this file")
	pf.String("data_directory", "", "Directory receiving CSV files, profiles and saved sessions")
	pf.String("bench_root", "", "Root directory for clones, binaries and build outputs (default ~/.bazel-bench)")

	bindFlags(pf, "verbose", "log_file", "data_directory", "bench_root")
}

// bindFlags binds each flag to the viper key of the same name.
func bindFlags(fs *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := viper.BindPFlag(name, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := config.Load(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}

// loadConfig decodes and validates the configuration and sets up logging.
func loadConfig(args []string, validate bool) (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper(), args)
	if err != nil {
		return nil, err
	}
	telemetry.InitLogger(cfg.Verbose, cfg.LogFile)
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// colorOutput reports whether stdout is a terminal.
func colorOutput() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
