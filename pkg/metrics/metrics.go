// Package metrics exposes scan counters for Prometheus scraping.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/logging"
)

// Recorder owns a private registry. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	toolRuns         *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	analyzerFindings *prometheus.CounterVec
	scans            *prometheus.CounterVec
	findings         *prometheus.CounterVec
}

func New() (*Recorder, error) {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.toolRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_tool_runs_total",
			Help: "External tool invocations by outcome",
		},
		[]string{"tool", "outcome"},
	)
	r.toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_tool_duration_seconds",
			Help:    "Wall time of external tool invocations",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"tool"},
	)
	r.analyzerFindings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_analyzer_findings_total",
			Help: "Findings emitted per analyzer before deduplication",
		},
		[]string{"analyzer"},
	)
	r.scans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_scans_total",
			Help: "Scans by terminal status",
		},
		[]string{"status"},
	)
	r.findings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_findings_total",
			Help: "Persisted findings by severity",
		},
		[]string{"severity"},
	)

	collectors := []prometheus.Collector{
		r.toolRuns,
		r.toolDuration,
		r.analyzerFindings,
		r.scans,
		r.findings,
	}
	for _, c := range collectors {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveToolRun satisfies runner.Observer.
func (r *Recorder) ObserveToolRun(tool string, success bool, d time.Duration) {
	if r == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.toolRuns.WithLabelValues(tool, outcome).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (r *Recorder) ObserveAnalyzer(name string, findings int) {
	if r == nil || findings <= 0 {
		return
	}
	r.analyzerFindings.WithLabelValues(name).Add(float64(findings))
}

func (r *Recorder) ObserveScan(status string) {
	if r == nil {
		return
	}
	r.scans.WithLabelValues(status).Inc()
}

func (r *Recorder) ObserveFindings(findings []engine.Finding) {
	if r == nil {
		return
	}
	for _, f := range findings {
		r.findings.WithLabelValues(f.Severity.String()).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve starts a metrics server on addr in the background. The returned
// function shuts it down.
func (r *Recorder) Serve(addr string) (func(context.Context) error, error) {
	if r == nil {
		return nil, errors.New("metrics recorder not initialized")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Warnw("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logging.L().Infow("serving metrics", "addr", addr, "path", "/metrics")
	return srv.Shutdown, nil
}
