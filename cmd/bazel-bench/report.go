package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bazelbuild/bazel-bench/internal/benchmark"
	"github.com/bazelbuild/bazel-bench/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [session.json]",
	Short: "Print the result table of a saved session",
	Long: `Report re-renders a session saved by "run" in the data directory. Without an
argument the session given by --uid, or the most recent one, is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil, false)
		if err != nil {
			return err
		}
		uid, _ := cmd.Flags().GetString("uid")
		csvOut, _ := cmd.Flags().GetBool("csv")

		session, err := loadSession(cfg.DataDir(), uid, args)
		if err != nil {
			return err
		}
		if csvOut {
			return report.WriteCSV(cmd.OutOrStdout(), session)
		}
		return renderSession(cmd.OutOrStdout(), session, colorOutput())
	},
}

func init() {
	reportCmd.Flags().String("uid", "", "Session uid to report (default is the latest)")
	reportCmd.Flags().Bool("csv", false, "Print the raw runs as CSV instead of the table")
	rootCmd.AddCommand(reportCmd)
}

// loadSession reads the session file given in args, or looks the session up
// in dir by uid, or takes the latest one.
func loadSession(dir, uid string, args []string) (*benchmark.Session, error) {
	if len(args) == 1 {
		return benchmark.LoadSessionFile(args[0])
	}
	store, err := benchmark.NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	if uid != "" {
		return store.Load(uid)
	}
	s, err := store.LoadLatest()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("no saved session in %s", dir)
	}
	return s, nil
}

func renderSession(w io.Writer, s *benchmark.Session, color bool) error {
	fmt.Fprintf(w, "Session %s (started %s)\n", s.UID, s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	return report.Render(w, report.Aggregate(report.FromSession(s)), s.ProjectSource, color)
}
