package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bazelbuild/bazel-bench/internal/bazelargs"
	"github.com/bazelbuild/bazel-bench/internal/benchmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r := NewResults()
	r.Add(benchmark.CommitTool("abc", "/a"), "p1", bazelargs.InvocationSpec{}, runs([]float64{10, 99, 10}, []int{0, 1, 0}))
	r.Add(benchmark.CommitTool("def", "/d"), "p1", bazelargs.InvocationSpec{}, runs([]float64{10, 10}, []int{0, 0}))

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Aggregate(r), "https://example.com/p.git", false))
	out := buf.String()

	assert.Contains(t, out, "RESULTS:")
	assert.Contains(t, out, "Bazel commit: abc, Project commit: p1, Project source: https://example.com/p.git")
	assert.Contains(t, out, "  metric")
	assert.Contains(t, out, "    wall:")
	assert.Contains(t, out, "10.000s")
	assert.Contains(t, out, " - run: 2/3, exit_code: 1")
	assert.Contains(t, out, "( +0.00%)")
	assert.NotContains(t, out, "\x1b[")

	// The failure list belongs to the first key only.
	first, second, ok := strings.Cut(out, "Bazel commit: def")
	require.True(t, ok)
	assert.Contains(t, first, "exit_code")
	assert.NotContains(t, second, "exit_code")
	// The first key has no comparison.
	assert.NotContains(t, first, "%)")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "  ab  ", center("ab", 6))
	assert.Equal(t, "toolong", center("toolong", 3))
	assert.Equal(t, " abc  ", center("abc", 6))
	assert.Equal(t, "  ab ", center("ab", 5))
	assert.Equal(t, "  a  ", center("a", 5))
	assert.Equal(t, "n/a", formatPVal(-1))
	assert.Equal(t, " 0.50000", formatPVal(0.5))
	assert.Equal(t, "(+12.50%)", formatDiff(12.5))
}
