package report

import (
	"math"

	"github.com/bazelbuild/bazel-bench/internal/benchmark"
	"github.com/bazelbuild/bazel-bench/internal/stats"
)

// Metric names in report order.
const (
	MetricWall   = "wall"
	MetricCPU    = "cpu"
	MetricSystem = "system"
	MetricMemory = "memory"
)

var metrics = []string{MetricWall, MetricCPU, MetricSystem, MetricMemory}

// MetricSummary holds the statistics of one metric for one key, computed
// over the runs that exited successfully.
type MetricSummary struct {
	Name   string
	Sample *stats.Sample
	Mean   float64
	Median float64
	StdDev float64

	// Set only when HasBaseline. PVal is 1 − p of a two-sample KS test and
	// may be stats.NotComputable. The diffs are percentages and NaN when
	// the baseline is zero.
	HasBaseline bool
	PVal        float64
	MeanDiff    float64
	MedianDiff  float64
}

// Failure is a run that exited with a non-zero status.
type Failure struct {
	Run      int // 1-based
	Total    int
	ExitCode int
}

// Summary is the aggregate of one key.
type Summary struct {
	Key      Key
	Metrics  []MetricSummary
	Failures []Failure
}

// Aggregate computes a Summary per key in insertion order. Runs with a
// non-zero exit status are excluded from every metric, and each key is
// compared against the key processed just before it.
func Aggregate(r *Results) []Summary {
	summaries := make([]Summary, 0, r.Len())
	var baseline map[string]*stats.Sample

	for _, e := range r.Entries() {
		sum := Summary{Key: e.Key}

		var failed []int
		for i, run := range e.Runs {
			if run.ExitStatus != 0 {
				failed = append(failed, i)
				sum.Failures = append(sum.Failures, Failure{Run: i + 1, Total: len(e.Runs), ExitCode: run.ExitStatus})
			}
		}

		samples := metricSamples(e.Runs)
		excluded := make(map[string]*stats.Sample, len(samples))
		for _, name := range metrics {
			s, ok := samples[name]
			if !ok {
				continue
			}
			s = s.ExcludeIndices(failed)
			if s.Len() == 0 {
				continue
			}
			excluded[name] = s

			ms := MetricSummary{
				Name:   name,
				Sample: s,
				Mean:   s.Mean(),
				Median: s.Median(),
				StdDev: s.StdDev(),
			}
			if base, ok := baseline[name]; ok {
				ms.HasBaseline = true
				ms.PVal = s.Compare(base)
				ms.MeanDiff = PercentChange(base.Mean(), ms.Mean)
				ms.MedianDiff = PercentChange(base.Median(), ms.Median)
			}
			sum.Metrics = append(sum.Metrics, ms)
		}

		baseline = excluded
		summaries = append(summaries, sum)
	}
	return summaries
}

// metricSamples splits runs into one positionally aligned sample per
// metric. Memory is only present when every run collected it.
func metricSamples(runs []benchmark.RunRecord) map[string]*stats.Sample {
	out := map[string]*stats.Sample{
		MetricWall:   stats.NewSample(),
		MetricCPU:    stats.NewSample(),
		MetricSystem: stats.NewSample(),
	}
	memory := stats.NewSample()
	for _, run := range runs {
		out[MetricWall].Add(run.Wall)
		out[MetricCPU].Add(run.CPU)
		out[MetricSystem].Add(run.System)
		if run.Memory != nil {
			memory.Add(float64(*run.Memory))
		}
	}
	if len(runs) > 0 && memory.Len() == len(runs) {
		out[MetricMemory] = memory
	}
	return out
}

// PercentChange returns 100 × (cur − base) / base, or NaN for a zero or
// undefined baseline.
func PercentChange(base, cur float64) float64 {
	if base == 0 || math.IsNaN(base) {
		return math.NaN()
	}
	return 100 * (cur - base) / base
}
