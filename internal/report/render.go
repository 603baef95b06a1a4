package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bazelbuild/bazel-bench/internal/stats"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

// Render writes the summary table. Headers are bold when color is set.
func Render(w io.Writer, summaries []Summary, projectSource string, color bool) error {
	var b strings.Builder
	b.WriteString("\nRESULTS:\n")

	for _, s := range summaries {
		header := fmt.Sprintf("Bazel commit: %s, Project commit: %s, Project source: %s",
			s.Key.Tool, s.Key.Project, projectSource)
		if color {
			header = headerStyle.Render(header)
		}
		b.WriteString(header + "\n")

		fmt.Fprintf(&b, "%8s  %s %s %s %s\n",
			"metric", center("mean", 20), center("median", 20), center("stddev", 10), center("pval", 10))

		for _, m := range s.Metrics {
			unit := "s"
			if m.Name == MetricMemory {
				unit = "MB"
			}
			meanDiff, medianDiff, pval := strings.Repeat(" ", 9), strings.Repeat(" ", 9), ""
			if m.HasBaseline {
				meanDiff = formatDiff(m.MeanDiff)
				medianDiff = formatDiff(m.MedianDiff)
				pval = formatPVal(m.PVal)
			}
			fmt.Fprintf(&b, "%8s: %s %s %s %s\n",
				m.Name,
				center(fmt.Sprintf("% 8.3f%s %s", m.Mean, unit, meanDiff), 20),
				center(fmt.Sprintf("% 8.3f%s %s", m.Median, unit, medianDiff), 20),
				center(fmt.Sprintf("% 7.3f%s", m.StdDev, unit), 10),
				center(pval, 10))
		}

		if len(s.Failures) > 0 {
			b.WriteString("The following runs contain non-zero exit code(s):\n")
			for _, f := range s.Failures {
				fmt.Fprintf(&b, " - run: %d/%d, exit_code: %d\n", f.Run, f.Total, f.ExitCode)
			}
			b.WriteString("Please check the full log for more details. These runs are excluded from the above result table.\n")
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatDiff(d float64) string {
	if math.IsNaN(d) {
		return strings.Repeat(" ", 9)
	}
	return fmt.Sprintf("(% +6.2f%%)", d)
}

func formatPVal(p float64) string {
	if p == stats.NotComputable || math.IsNaN(p) {
		return "n/a"
	}
	return fmt.Sprintf("% 7.5f", p)
}

func center(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	// Odd padding goes left only when width is odd too.
	left := pad/2 + (pad & width & 1)
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}
