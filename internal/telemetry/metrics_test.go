package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	m.ObserveRun("abc", 12.5, 30, 2, 0)
	m.ObserveRun("abc", 11, 29, 2, 1)
	m.UnitFinished(nil)
	m.UnitFinished(errors.New("launch failed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("abc", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("abc", "1")))
	assert.Equal(t, 11.0, testutil.ToFloat64(m.lastWall.WithLabelValues("abc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unitsFinished.WithLabelValues("error")))

	expected := `
# HELP bazel_bench_units_total Benchmark units by result.
# TYPE bazel_bench_units_total counter
bazel_bench_units_total{result="error"} 1
bazel_bench_units_total{result="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "bazel_bench_units_total"))
}

func TestStartMetricsServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMetrics()
	m.ObserveRun("/usr/bin/bazel", 1, 1, 1, 0)

	addr, err := StartMetricsServer(ctx, "127.0.0.1:0", m)
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `bazel_bench_runs_total{exit_status="0",tool="/usr/bin/bazel"} 1`)
}

func TestStartMetricsServer_BadAddr(t *testing.T) {
	_, err := StartMetricsServer(context.Background(), "not-an-address", NewMetrics())
	assert.Error(t, err)
}
