// Package metrics defines the Prometheus collectors used by the planner
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PlansTotal           *prometheus.CounterVec
	PlanLatency          *prometheus.HistogramVec
	ChunkBuildsTotal     prometheus.Counter
	ChunkGroups          prometheus.Histogram
	SearchIterations     *prometheus.HistogramVec
	SearchDiff           prometheus.Histogram
	SourceFetchDuration  *prometheus.HistogramVec
	SourceUnits          prometheus.Gauge
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	ExportsTotal         *prometheus.CounterVec
	RateLimitedTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
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
		PlansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plans_total",
				Help: "Total reading plans generated by outcome (converged, best_effort, error).",
			},
			[]string{"outcome"},
		),
		PlanLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plan_latency_seconds",
				Help:    "Plan generation latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"cache_status"},
		),
		ChunkBuildsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunk_builds_total",
				Help: "Total greedy chunk passes executed by the partition search.",
			},
		),
		ChunkGroups: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chunk_groups",
				Help:    "Number of groups produced per chunk pass.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		SearchIterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_iterations",
				Help:    "Iterations used per partition search.",
				Buckets: []float64{1, 2, 5, 10, 50, 100, 500, 1000, 2500, 5000},
			},
			[]string{"converged"},
		),
		SearchDiff: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_group_diff",
				Help:    "Absolute difference between achieved and requested group count.",
				Buckets: []float64{0, 1, 2, 5, 10, 50, 100},
			},
		),
		SourceFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "source_fetch_duration_seconds",
				Help:    "Chapter source fetch latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"status"},
		),
		SourceUnits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "source_units",
				Help: "Number of chapters returned by the last successful fetch.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of plan cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of plan cache misses.",
			},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exports_total",
				Help: "Total schedule exports by status.",
			},
			[]string{"status"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limited_total",
				Help: "Total requests rejected by the rate limiter.",
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
		m.PlansTotal,
		m.PlanLatency,
		m.ChunkBuildsTotal,
		m.ChunkGroups,
		m.SearchIterations,
		m.SearchDiff,
		m.SourceFetchDuration,
		m.SourceUnits,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ExportsTotal,
		m.RateLimitedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveChunks records one greedy chunk pass.
func (m *Metrics) ObserveChunks(groups int) {
	m.ChunkBuildsTotal.Inc()
	m.ChunkGroups.Observe(float64(groups))
}

// ObserveSearch records the outcome of one partition search.
func (m *Metrics) ObserveSearch(iterations, diff int, converged bool) {
	m.SearchIterations.WithLabelValues(strconv.FormatBool(converged)).Observe(float64(iterations))
	m.SearchDiff.Observe(float64(diff))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
