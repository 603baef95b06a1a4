package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes benchmark progress to Prometheus.
type Metrics struct {
	Registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runSeconds    *prometheus.HistogramVec
	unitsFinished *prometheus.CounterVec
	lastWall      *prometheus.GaugeVec
}

// NewMetrics registers the bazel-bench collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazel_bench_runs_total",
			Help: "Measured runs by tool and exit status.",
		}, []string{"tool", "exit_status"}),
		runSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bazel_bench_run_seconds",
			Help:    "Time of measured runs by tool and kind (wall, cpu, system).",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"tool", "kind"}),
		unitsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bazel_bench_units_total",
			Help: "Benchmark units by result.",
		}, []string{"result"}),
		lastWall: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bazel_bench_last_wall_seconds",
			Help: "Wall time of the latest run per tool.",
		}, []string{"tool"}),
	}
	m.Registry.MustRegister(m.runs, m.runSeconds, m.unitsFinished, m.lastWall)
	return m
}

// ObserveRun records one measured repetition.
func (m *Metrics) ObserveRun(tool string, wall, cpu, system float64, exitStatus int) {
	m.runs.WithLabelValues(tool, strconv.Itoa(exitStatus)).Inc()
	m.runSeconds.WithLabelValues(tool, "wall").Observe(wall)
	m.runSeconds.WithLabelValues(tool, "cpu").Observe(cpu)
	m.runSeconds.WithLabelValues(tool, "system").Observe(system)
	m.lastWall.WithLabelValues(tool).Set(wall)
}

// UnitFinished counts a completed or aborted unit.
func (m *Metrics) UnitFinished(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.unitsFinished.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// StartMetricsServer serves /metrics on addr until ctx is done. It returns
// once the listener is bound.
func StartMetricsServer(ctx context.Context, addr string, m *Metrics) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()

	slog.Info("starting metrics server", "addr", ln.Addr().String())
	return ln.Addr(), nil
}
