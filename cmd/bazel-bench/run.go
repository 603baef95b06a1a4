package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bazelbuild/bazel-bench/internal/bazel"
	"github.com/bazelbuild/bazel-bench/internal/bazelargs"
	"github.com/bazelbuild/bazel-bench/internal/benchmark"
	"github.com/bazelbuild/bazel-bench/internal/config"
	"github.com/bazelbuild/bazel-bench/internal/db"
	"github.com/bazelbuild/bazel-bench/internal/git"
	"github.com/bazelbuild/bazel-bench/internal/notify"
	"github.com/bazelbuild/bazel-bench/internal/profiles"
	"github.com/bazelbuild/bazel-bench/internal/report"
	"github.com/bazelbuild/bazel-bench/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <bazel command> [options] [targets]",
	Short: "Benchmark the configured Bazel binaries",
	Long: `Run benchmarks every (bazel binary, project commit) unit in turn, prints the
result table and optionally exports CSV files, profiles, a database upload
and a Slack summary.

The Bazel command is taken from the arguments after "--", or from the
"command" configuration key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args, true)
		if err != nil {
			return err
		}
		if err := cfg.ResolvePaths(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := newApp(cfg, cmd.OutOrStdout(), slog.Default())
		if cfg.MetricsAddr != "" {
			a.metrics = telemetry.NewMetrics()
			if _, err := telemetry.StartMetricsServer(ctx, cfg.MetricsAddr, a.metrics); err != nil {
				return fmt.Errorf("failed to start metrics server: %w", err)
			}
		}
		return a.execute(ctx)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringSlice("bazel_commits", nil, "Bazel commits to build and benchmark")
	f.StringSlice("bazel_binaries", nil, "Prebuilt Bazel binaries to benchmark")
	f.String("bazel_source", config.DefaultBazelSource, "Bazel repository to build binaries from")
	f.String("bazel_bin_dir", "", "Directory caching the binaries built per commit")
	f.String("project_source", "", "Git URL or path of the project to build")
	f.StringSlice("project_commits", nil, "Project commits to benchmark (default HEAD)")
	f.Int("runs", 3, "Number of measured runs per unit")
	f.String("bazelrc", "", "bazelrc passed to every Bazel invocation")
	f.String("platform", "", "Platform label recorded with the results")
	f.Bool("collect_memory", false, "Collect the heap size after each run")
	f.Bool("prefetch_ext_deps", true, "Run the command once before measuring and read its canonical form")
	f.Bool("collect_json_profile", false, "Collect a JSON trace profile for every run")
	f.Bool("aggregate_json_profiles", false, "Aggregate the collected profiles into a CSV file")
	f.String("csv_file_name", "", "Name of the raw data CSV (default is the session uid)")
	f.String("setup_command", "", "Command executed in the project checkout before each unit")
	f.String("metrics_addr", "", "Serve Prometheus metrics on this address while running")

	bindFlags(f, "bazel_commits", "bazel_binaries", "bazel_source", "bazel_bin_dir",
		"project_source", "project_commits", "runs", "bazelrc", "platform",
		"collect_memory", "prefetch_ext_deps", "collect_json_profile", "aggregate_json_profiles",
		"csv_file_name", "setup_command", "metrics_addr")

	rootCmd.AddCommand(runCmd)
}

type unitRunner interface {
	Run(ctx context.Context, u benchmark.Unit) ([]benchmark.RunRecord, bazelargs.InvocationSpec, error)
}

// app is one benchmark session with its collaborators.
type app struct {
	cfg    *config.Config
	git    git.IClient
	out    io.Writer
	logger *slog.Logger
	color  bool
	now    func() time.Time

	newRunner   func(uid string) unitRunner
	buildBinary func(ctx context.Context, commit string) (string, error)
	openStore   func(db.StoreConfig) (db.Store, error)
	notifier    *notify.Manager
	metrics     *telemetry.Metrics
}

func newApp(cfg *config.Config, out io.Writer, logger *slog.Logger) *app {
	gc := git.NewClient()
	gc.Logger = logger
	builder := bazel.NewBuilder(cfg.BazelClonePath(), cfg.BinaryDir(), gc, logger)

	a := &app{
		cfg:         cfg,
		git:         gc,
		out:         out,
		logger:      logger,
		color:       colorOutput(),
		now:         time.Now,
		buildBinary: builder.Build,
		openStore:   db.NewStore,
		notifier: notify.NewManager(notify.Settings{
			Enabled:    cfg.Notifications.Slack.Enabled,
			Channel:    cfg.Notifications.Slack.Channel,
			BotToken:   os.Getenv("SLACK_BOT_USER_TOKEN"),
			WebhookURL: cfg.Notifications.Slack.WebhookURL,
		}, logger),
	}
	a.newRunner = func(uid string) unitRunner {
		r := benchmark.NewRunner(uid, cfg.OutDir(), cfg.DataDir(), logger)
		if a.metrics != nil {
			r.Observer = a.metrics
		}
		return r
	}
	return a
}

// execute benchmarks every unit and reports whatever finished, even when a
// unit aborted.
func (a *app) execute(ctx context.Context) error {
	session, results, runErr := a.benchmark(ctx)
	if session == nil {
		return runErr
	}
	if results.Len() == 0 {
		return runErr
	}
	return errors.Join(runErr, a.report(ctx, session, results))
}

// benchmark prepares the checkouts and binaries and runs the units in order.
func (a *app) benchmark(ctx context.Context) (*benchmark.Session, *report.Results, error) {
	cfg := a.cfg
	started := a.now().UTC()
	session := &benchmark.Session{
		UID:           benchmark.NewUID(started),
		StartedAt:     started,
		ProjectSource: cfg.ProjectSource,
		Platform:      cfg.Platform,
	}
	results := report.NewResults()

	projectPath := git.CloneDir(cfg.ProjectCloneRoot(), cfg.ProjectSource)
	if err := a.git.EnsureRepo(ctx, cfg.ProjectSource, projectPath); err != nil {
		return nil, nil, fmt.Errorf("failed to prepare project repository: %w", err)
	}
	projectCommits, err := a.resolveCommits(ctx, projectPath, cfg.ProjectCommits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve project commits: %w", err)
	}

	bazelCommits, err := a.bazelCommits(ctx)
	if err != nil {
		return nil, nil, err
	}

	setupArgv, err := cfg.SetupArgv()
	if err != nil {
		return nil, nil, err
	}

	units, err := a.units(ctx, cfg.Matrix(bazelCommits, projectCommits), projectPath, setupArgv)
	if err != nil {
		return nil, nil, err
	}

	runner := a.newRunner(session.UID)
	for i, u := range units {
		a.logger.Info("starting unit", "unit", fmt.Sprintf("%d/%d", i+1, len(units)),
			"bazel", u.Tool.Identifier(), "project_commit", u.ProjectCommit)

		if err := a.git.Checkout(ctx, projectPath, u.ProjectCommit); err != nil {
			return session, results, fmt.Errorf("failed to check out project commit %s: %w", u.ProjectCommit, err)
		}
		runs, inv, err := runner.Run(ctx, u)
		if a.metrics != nil {
			a.metrics.UnitFinished(err)
		}
		if err != nil {
			return session, results, fmt.Errorf("unit %s on %s failed: %w", u.Tool.Identifier(), u.ProjectCommit, err)
		}
		session.Units = append(session.Units, benchmark.UnitResult{
			Tool:          u.Tool,
			ProjectCommit: u.ProjectCommit,
			Invocation:    inv,
			Runs:          runs,
		})
		results.Add(u.Tool, u.ProjectCommit, inv, runs)
	}
	return session, results, nil
}

// resolveCommits orders the given commits topologically, or returns HEAD
// when none are given.
func (a *app) resolveCommits(ctx context.Context, dir string, shas []string) ([]string, error) {
	if len(shas) == 0 {
		head, err := a.git.HeadCommit(ctx, dir)
		if err != nil {
			return nil, err
		}
		a.logger.Info("no commits given, using HEAD", "repo", dir, "commit", head)
		return []string{head}, nil
	}
	return a.git.SortTopological(ctx, dir, shas)
}

// bazelCommits prepares the Bazel clone when any binary must be built. With
// neither commits nor binaries configured, Bazel at HEAD is benchmarked.
func (a *app) bazelCommits(ctx context.Context) ([]string, error) {
	cfg := a.cfg
	needsClone := len(cfg.BazelCommits) > 0 || len(cfg.ExplicitBazelCommits()) > 0 ||
		(!cfg.HasExplicitUnits() && len(cfg.BazelBinaries) == 0)
	if !needsClone {
		return nil, nil
	}

	if err := a.git.EnsureRepo(ctx, cfg.BazelSource, cfg.BazelClonePath()); err != nil {
		return nil, fmt.Errorf("failed to prepare bazel repository: %w", err)
	}
	if cfg.HasExplicitUnits() {
		return nil, nil
	}
	if len(cfg.BazelCommits) == 0 && len(cfg.BazelBinaries) > 0 {
		return nil, nil
	}
	commits, err := a.resolveCommits(ctx, cfg.BazelClonePath(), cfg.BazelCommits)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bazel commits: %w", err)
	}
	return commits, nil
}

// units turns the unit configs into validated units, building the Bazel
// binaries they need up front.
func (a *app) units(ctx context.Context, configs []config.UnitConfig, projectPath string, setupArgv []string) ([]benchmark.Unit, error) {
	cfg := a.cfg
	units := make([]benchmark.Unit, 0, len(configs))
	for _, uc := range configs {
		var tool benchmark.Tool
		if uc.BazelCommit != "" {
			path, err := a.buildBinary(ctx, uc.BazelCommit)
			if err != nil {
				return nil, fmt.Errorf("failed to build bazel at %s: %w", uc.BazelCommit, err)
			}
			tool = benchmark.CommitTool(uc.BazelCommit, path)
		} else {
			tool = benchmark.BinaryTool(uc.BazelBinary)
		}

		args, err := cfg.UnitArgs(uc)
		if err != nil {
			return nil, err
		}
		collectProfile := cfg.CollectJSONProfile
		if uc.CollectProfile != nil {
			collectProfile = *uc.CollectProfile
		}

		u := benchmark.Unit{
			Tool:            tool,
			ProjectSource:   cfg.ProjectSource,
			ProjectCommit:   uc.ProjectCommit,
			ProjectPath:     projectPath,
			Runs:            uc.Runs,
			CollectMemory:   cfg.ShouldCollectMemory(),
			CollectProfile:  collectProfile,
			PrefetchExtDeps: cfg.PrefetchExtDeps,
			RawArgs:         args,
			Bazelrc:         cfg.Bazelrc,
			SetupCommand:    setupArgv,
		}
		if err := u.Validate(); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// report renders the results and writes the configured outputs.
func (a *app) report(ctx context.Context, session *benchmark.Session, results *report.Results) error {
	cfg := a.cfg
	summaries := report.Aggregate(results)
	if err := report.Render(a.out, summaries, cfg.ProjectSource, a.color); err != nil {
		return err
	}

	var errs []error
	if cfg.DataDirectory != "" {
		errs = append(errs, a.writeData(session))
	}
	if cfg.AggregateJSONProfiles {
		errs = append(errs, a.aggregateProfiles(session))
	}
	if cfg.DB.Type != "" {
		errs = append(errs, a.upload(ctx, session))
	}
	if err := a.notifier.NotifySummaries(ctx, session.UID, cfg.ProjectSource, summaries); err != nil {
		errs = append(errs, fmt.Errorf("failed to send notification: %w", err))
	}
	return errors.Join(errs...)
}

func (a *app) writeData(session *benchmark.Session) error {
	cfg := a.cfg
	dir := cfg.DataDir()

	store, err := benchmark.NewFileStore(dir)
	if err != nil {
		return err
	}
	if err := store.Save(*session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	name := strings.TrimSuffix(cfg.CSVFileName, ".csv")
	if name == "" {
		name = session.UID
	}
	_, err = report.ExportCSV(dir, name, session)
	return err
}

func (a *app) aggregateProfiles(session *benchmark.Session) error {
	dir := a.cfg.DataDir()
	out := filepath.Join(dir, profiles.DefaultFileName)
	a.logger.Info("aggregating json profiles", "path", out)
	if err := profiles.WriteSessionCSV(session, dir, out); err != nil {
		return fmt.Errorf("failed to aggregate json profiles: %w", err)
	}
	return nil
}

func (a *app) upload(ctx context.Context, session *benchmark.Session) error {
	store, err := a.openStore(db.StoreConfig{Type: a.cfg.DB.Type, ConnectionString: a.cfg.DB.DSN})
	if err != nil {
		return fmt.Errorf("failed to open result store: %w", err)
	}
	defer store.Close()

	id, err := store.SaveSession(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to upload results: %w", err)
	}
	a.logger.Info("uploaded results", "session_id", id, "uid", session.UID)
	return nil
}
