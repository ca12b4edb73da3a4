// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recommend outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeNoMatch      = "no_match"
	OutcomeInvalid      = "invalid"
	OutcomeEmptyCatalog = "empty_catalog"
	OutcomeError        = "error"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RecommendTotal       *prometheus.CounterVec
	RecommendLatency     *prometheus.HistogramVec
	RecommendResults     prometheus.Histogram
	ResolveScore         prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	ModelBuildDuration   *prometheus.GaugeVec
	CatalogItems         prometheus.Gauge
	VocabularySize       prometheus.Gauge
	PosterFetchesTotal   *prometheus.CounterVec
	RateLimitedTotal     prometheus.Counter
	AnalyticsEvents      *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
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
		RecommendTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recommend_requests_total",
				Help: "Recommendation requests by outcome (ok, no_match, invalid, empty_catalog, error).",
			},
			[]string{"outcome"},
		),
		RecommendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recommend_latency_seconds",
				Help:    "Recommendation latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		RecommendResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recommend_results_count",
				Help:    "Number of items returned per recommendation.",
				Buckets: []float64{0, 1, 5, 10, 20, 50},
			},
		),
		ResolveScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "title_resolve_score",
				Help:    "Similarity ratio of accepted title matches.",
				Buckets: []float64{0.6, 0.7, 0.8, 0.9, 0.95, 0.99, 1},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		ModelBuildDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "model_build_stage_seconds",
				Help: "Duration of each stage of the last model build.",
			},
			[]string{"stage"},
		),
		CatalogItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_items",
				Help: "Number of items in the loaded catalog.",
			},
		),
		VocabularySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "model_vocabulary_size",
				Help: "Number of distinct terms in the model vocabulary.",
			},
		),
		PosterFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poster_fetches_total",
				Help: "Poster lookups by outcome (ok, request, status, decode, not_found, circuit_open).",
			},
			[]string{"outcome"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Requests rejected by the rate limiter.",
			},
		),
		AnalyticsEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_total",
				Help: "Analytics events by status (published, dropped, failed, consumed).",
			},
			[]string{"status"},
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
		m.RecommendTotal,
		m.RecommendLatency,
		m.RecommendResults,
		m.ResolveScore,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ModelBuildDuration,
		m.CatalogItems,
		m.VocabularySize,
		m.PosterFetchesTotal,
		m.RateLimitedTotal,
		m.AnalyticsEvents,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveModel records the size and stage timings of a freshly built model.
func (m *Metrics) ObserveModel(items, vocabulary int, stages map[string]time.Duration) {
	m.CatalogItems.Set(float64(items))
	m.VocabularySize.Set(float64(vocabulary))
	for stage, d := range stages {
		m.ModelBuildDuration.WithLabelValues(stage).Set(d.Seconds())
	}
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
