package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// SKUOutcomes counts migrated SKUs by outcome
	SKUOutcomes *prometheus.CounterVec
	// ImagesDownloaded counts image files fetched from the origin account
	ImagesDownloaded prometheus.Counter
	// ImagesUploaded counts image files attached in the destination account
	ImagesUploaded prometheus.Counter
	// DownloadCacheHits counts downloads skipped because the file already existed
	DownloadCacheHits prometheus.Counter
	// VariantFetchSkips counts variant detail fetches that were skipped after failure
	VariantFetchSkips prometheus.Counter
	// TokenRefreshes counts token refresh attempts by account and result
	TokenRefreshes *prometheus.CounterVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		SKUOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sku_outcomes_total",
				Help:      "Total number of migrated SKUs by outcome",
			},
			[]string{"outcome"},
		),
		ImagesDownloaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "images_downloaded_total",
				Help:      "Total number of images downloaded from the origin account",
			},
		),
		ImagesUploaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "images_uploaded_total",
				Help:      "Total number of images uploaded to the destination account",
			},
		),
		DownloadCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_cache_hits_total",
				Help:      "Total number of downloads skipped because the file was already present",
			},
		),
		VariantFetchSkips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "variant_fetch_skips_total",
				Help:      "Total number of variant detail fetches skipped after failure",
			},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Total number of OAuth token refresh attempts",
			},
			[]string{"account", "status"},
		),
	}

	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.SKUOutcomes,
		m.ImagesDownloaded,
		m.ImagesUploaded,
		m.DownloadCacheHits,
		m.VariantFetchSkips,
		m.TokenRefreshes,
	)

	return m
}

// Handler returns an http.Handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequestLatency records a request latency observation.
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest increments the request counter.
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight gauge.
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight gauge.
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordSKUOutcome increments the outcome counter for one migrated SKU.
func (m *Metrics) RecordSKUOutcome(outcome string) {
	m.SKUOutcomes.WithLabelValues(outcome).Inc()
}

// RecordTokenRefresh records a refresh attempt result.
func (m *Metrics) RecordTokenRefresh(account, status string) {
	m.TokenRefreshes.WithLabelValues(account, status).Inc()
}
