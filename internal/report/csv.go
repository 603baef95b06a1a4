package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bazelbuild/bazel-bench/internal/benchmark"
)

var csvHeader = []string{
	"bazel_commit", "project_source", "project_commit", "run",
	"cpu", "wall", "system", "memory",
	"command", "expressions", "options",
	"exit_status", "started_at", "platform",
}

// WriteCSV writes one row per run of every unit in the session, in order.
func WriteCSV(w io.Writer, s *benchmark.Session) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, u := range s.Units {
		for i, run := range u.Runs {
			memory := ""
			if run.Memory != nil {
				memory = strconv.FormatInt(*run.Memory, 10)
			}
			row := []string{
				u.Tool.Identifier(),
				s.ProjectSource,
				u.ProjectCommit,
				strconv.Itoa(i + 1),
				formatFloat(run.CPU),
				formatFloat(run.Wall),
				formatFloat(run.System),
				memory,
				u.Invocation.Command,
				strings.Join(u.Invocation.Targets, " "),
				strings.Join(u.Invocation.Options, " "),
				strconv.Itoa(run.ExitStatus),
				run.StartedAt.UTC().Format(time.RFC3339Nano),
				s.Platform,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the session to <dir>/<name>.csv and returns the path.
func ExportCSV(dir, name string, s *benchmark.Session) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".csv")
	slog.Info("writing raw data into csv file", "path", path)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, s); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
