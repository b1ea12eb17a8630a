package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for OpenForge.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Description unit metrics
	unitsParsed       *prometheus.CounterVec
	unitParseDuration *prometheus.HistogramVec

	// Graph metrics
	itemsDeclared   *prometheus.CounterVec
	edgesAdded      prometheus.Counter
	recordsResolved *prometheus.CounterVec
	graphStalls     *prometheus.CounterVec

	// Synthesis metrics
	edgesSynthesized  *prometheus.CounterVec
	synthesisDuration *prometheus.HistogramVec

	// Policy metrics
	policyViolations *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// System metrics
	activeRuns        prometheus.Gauge
	unresolvedRecords prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Run metrics
		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of generation runs started",
			},
			[]string{"root"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of generation runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of generation runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Description unit metrics
		unitsParsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_parsed_total",
				Help:      "Total number of description units parsed",
			},
			[]string{"format", "status"},
		),
		unitParseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_parse_duration_seconds",
				Help:      "Duration of description unit parsing in seconds",
				Buckets:   buckets,
			},
			[]string{"format"},
		),

		// Graph metrics
		itemsDeclared: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_declared_total",
				Help:      "Total number of graph items declared",
			},
			[]string{"kind"},
		),
		edgesAdded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_edges_added_total",
				Help:      "Total number of dependency edges registered",
			},
		),
		recordsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_resolved_total",
				Help:      "Total number of graph records resolved",
			},
			[]string{"kind"},
		),
		graphStalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_stalls_total",
				Help:      "Total number of stalled-graph diagnostics by reason",
			},
			[]string{"reason"},
		),

		// Synthesis metrics
		edgesSynthesized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_synthesized_total",
				Help:      "Total number of build edges synthesized",
			},
			[]string{"artifact"},
		),
		synthesisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "edge_synthesis_duration_seconds",
				Help:      "Duration of per-target edge synthesis in seconds",
				Buckets:   buckets,
			},
			[]string{"artifact"},
		),

		// Policy metrics
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations",
			},
			[]string{"policy", "severity"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		// System metrics
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active generation runs",
			},
		),
		unresolvedRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "unresolved_records",
				Help:      "Current number of unresolved graph records",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.unitsParsed,
		m.unitParseDuration,
		m.itemsDeclared,
		m.edgesAdded,
		m.recordsResolved,
		m.graphStalls,
		m.edgesSynthesized,
		m.synthesisDuration,
		m.policyViolations,
		m.errorsByClass,
		m.errorsByCode,
		m.activeRuns,
		m.unresolvedRecords,
	)

	return m, nil
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(root string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(root).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// Description Unit Metrics

// RecordUnitParsed records a parsed description unit.
func (m *Metrics) RecordUnitParsed(format, status string, duration time.Duration) {
	if m.unitsParsed == nil {
		return
	}
	m.unitsParsed.WithLabelValues(format, status).Inc()
	m.unitParseDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// Graph Metrics

// RecordItemDeclared increments the declared-item counter for a kind.
func (m *Metrics) RecordItemDeclared(kind string) {
	if m.itemsDeclared == nil {
		return
	}
	m.itemsDeclared.WithLabelValues(kind).Inc()
}

// RecordEdgesAdded adds n to the dependency-edge counter.
func (m *Metrics) RecordEdgesAdded(n int64) {
	if m.edgesAdded == nil {
		return
	}
	m.edgesAdded.Add(float64(n))
}

// RecordRecordResolved increments the resolved-record counter for a kind.
func (m *Metrics) RecordRecordResolved(kind string) {
	if m.recordsResolved == nil {
		return
	}
	m.recordsResolved.WithLabelValues(kind).Inc()
}

// RecordGraphStall records a stalled-graph diagnostic.
func (m *Metrics) RecordGraphStall(reason string) {
	if m.graphStalls == nil {
		return
	}
	m.graphStalls.WithLabelValues(reason).Inc()
}

// SetUnresolvedRecords sets the current number of unresolved records.
func (m *Metrics) SetUnresolvedRecords(count float64) {
	if m.unresolvedRecords == nil {
		return
	}
	m.unresolvedRecords.Set(count)
}

// Synthesis Metrics

// RecordEdgeSynthesized records one synthesized build edge.
func (m *Metrics) RecordEdgeSynthesized(artifact string, duration time.Duration) {
	if m.edgesSynthesized == nil {
		return
	}
	m.edgesSynthesized.WithLabelValues(artifact).Inc()
	m.synthesisDuration.WithLabelValues(artifact).Observe(duration.Seconds())
}

// Policy Metrics

// RecordPolicyViolation records a policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// System Metrics

// SetActiveRuns sets the current number of active runs.
func (m *Metrics) SetActiveRuns(count float64) {
	if m.activeRuns == nil {
		return
	}
	m.activeRuns.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
