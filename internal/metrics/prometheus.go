// Package metrics exposes Prometheus collectors for the daily leaderboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	submissions      *prometheus.CounterVec
	trimRuns         *prometheus.CounterVec
	trimDeletedRows  prometheus.Counter
	cleanupRuns      *prometheus.CounterVec
	cleanupSkipped   *prometheus.CounterVec
	purgedRows       prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpRequestDurMs *prometheus.HistogramVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithHistogramBuckets overrides the HTTP latency buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers collectors on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

var defaultBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "leaderboard",
		histogramBuckets: defaultBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "submissions_total",
		Help:      "Score submissions by outcome",
	}, []string{"outcome"})

	m.trimRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "trim_runs_total",
		Help:      "Top-N trim passes by trigger",
	}, []string{"source"})

	m.trimDeletedRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "trim_deleted_rows_total",
		Help:      "Rows removed because they fell out of the top-N window",
	})

	m.cleanupRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cleanup_runs_total",
		Help:      "Scheduler passes by kind and result",
	}, []string{"kind", "result"})

	m.cleanupSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cleanup_skipped_total",
		Help:      "Scheduler ticks dropped because a pass was already running",
	}, []string{"kind"})

	m.purgedRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "purged_rows_total",
		Help:      "Rows removed by the stale-day purge",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDurMs = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// Registry is the gatherer /metrics serves.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) RecordSubmission(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Manager) RecordTrim(source string, deleted int64) {
	m.trimRuns.WithLabelValues(source).Inc()
	if deleted > 0 {
		m.trimDeletedRows.Add(float64(deleted))
	}
}

func (m *Manager) RecordCleanup(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cleanupRuns.WithLabelValues(kind, result).Inc()
}

func (m *Manager) RecordCleanupSkipped(kind string) {
	m.cleanupSkipped.WithLabelValues(kind).Inc()
}

func (m *Manager) RecordPurged(rows int64) {
	if rows > 0 {
		m.purgedRows.Add(float64(rows))
	}
}

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDurMs.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}
