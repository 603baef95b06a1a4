// Package stats holds the per-metric samples collected across benchmark runs
// and the statistics reported for them.
package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// NotComputable is returned by Compare when either sample is too small for
// the test to be defined.
const NotComputable = -1.0

// Sample is an ordered list of observations of one metric. The position of an
// observation is the index of the run that produced it.
type Sample struct {
	values []float64
}

// NewSample creates a sample holding the given observations in order.
func NewSample(values ...float64) *Sample {
	s := &Sample{values: make([]float64, 0, len(values))}
	s.values = append(s.values, values...)
	return s
}

// Add appends one observation.
func (s *Sample) Add(x float64) {
	s.values = append(s.values, x)
}

// Len returns the number of observations.
func (s *Sample) Len() int {
	return len(s.values)
}

// Values returns a copy of the observations in run order.
func (s *Sample) Values() []float64 {
	return slices.Clone(s.values)
}

// Mean returns the arithmetic mean, or NaN for an empty sample.
func (s *Sample) Mean() float64 {
	if len(s.values) == 0 {
		return math.NaN()
	}
	return stat.Mean(s.values, nil)
}

// Median returns the middle order statistic, or the mean of the two middle
// ones for an even-length sample. NaN for an empty sample.
func (s *Sample) Median() float64 {
	n := len(s.values)
	if n == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(s.values)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdDev returns the population standard deviation, or NaN for an empty sample.
func (s *Sample) StdDev() float64 {
	if len(s.values) == 0 {
		return math.NaN()
	}
	_, std := stat.PopMeanStdDev(s.values, nil)
	return std
}

// Compare returns 1 - p, where p is the two-sided p-value of a two-sample
// Kolmogorov-Smirnov test between s and base. Larger values mean stronger
// evidence that the distribution shifted. Returns NotComputable when either
// sample has fewer than two observations.
func (s *Sample) Compare(base *Sample) float64 {
	if base == nil || s.Len() < 2 || base.Len() < 2 {
		return NotComputable
	}
	return 1 - KSPValue(s.values, base.values)
}

// ExcludeIndices returns a new sample without the observations at the given
// zero-based positions. Out of range indices are ignored.
func (s *Sample) ExcludeIndices(indices []int) *Sample {
	skip := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		skip[i] = struct{}{}
	}
	out := &Sample{values: make([]float64, 0, len(s.values))}
	for i, v := range s.values {
		if _, ok := skip[i]; ok {
			continue
		}
		out.values = append(out.values, v)
	}
	return out
}
