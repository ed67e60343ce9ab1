// Package metrics defines the Prometheus collectors used by the evaluator and
// the search service, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	EvaluationsTotal     *prometheus.CounterVec
	EvaluationLatency    *prometheus.HistogramVec
	ResultsCount         *prometheus.HistogramVec
	BatchQueriesTotal    *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	StoreRequestsTotal   *prometheus.CounterVec
	StoreRetriesTotal    *prometheus.CounterVec
	DocumentsLoaded      prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_evaluations_total",
				Help: "Total query evaluations by retrieval model and outcome (ok, empty, error).",
			},
			[]string{"model", "outcome"},
		),
		EvaluationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "query_evaluation_seconds",
				Help:    "Time to parse, evaluate and sort one query.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
			[]string{"model"},
		),
		ResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "query_matched_documents",
				Help:    "Number of documents matched per evaluated query.",
				Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
			},
			[]string{"model"},
		),
		BatchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batch_queries_total",
				Help: "Queries processed from query files by status.",
			},
			[]string{"status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		StoreRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_requests_total",
				Help: "Posting store reads by operation and status.",
			},
			[]string{"operation", "status"},
		),
		StoreRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_retries_total",
				Help: "Posting store attempts that failed and were retried, by operation.",
			},
			[]string{"operation"},
		),
		DocumentsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "store_documents",
				Help: "Number of documents visible through the posting store.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.EvaluationsTotal,
		m.EvaluationLatency,
		m.ResultsCount,
		m.BatchQueriesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.StoreRequestsTotal,
		m.StoreRetriesTotal,
		m.DocumentsLoaded,
		m.CircuitBreakerState,
	)

	return m
}

// Handler serves the collectors of m's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
