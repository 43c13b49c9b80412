// Package metrics provides the Prometheus collectors for scans, the
// translator and the catalog server.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Translator outcomes.
const (
	OutcomeTranslated = "translated"
	OutcomeCached     = "cached"
	OutcomeFallback   = "fallback"
)

//nolint:gochecknoglobals // Package-level registry and metrics required by Prometheus
var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// KeysExtracted counts raw keys found per scan root.
	KeysExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transcan_keys_extracted_total",
			Help: "Total number of distinct translation keys extracted from source roots",
		},
	)

	// KeysWritten counts keys added or updated in a store.
	KeysWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcan_keys_written_total",
			Help: "Total number of translation keys added or updated",
		},
		[]string{"locale", "store"},
	)

	// TranslatorRequests counts translator adapter outcomes.
	TranslatorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcan_translator_requests_total",
			Help: "Translator adapter calls by outcome",
		},
		[]string{"outcome"},
	)

	// RequestsTotal counts the HTTP requests served by the catalog server.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcan_http_requests_total",
			Help: "Total number of HTTP requests received",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDurationSeconds measures the duration of HTTP requests.
	RequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transcan_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Registry returns the registry holding every transcan collector.
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			KeysExtracted,
			KeysWritten,
			TranslatorRequests,
			RequestsTotal,
			RequestDurationSeconds,
		)
	})
	return registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}

// StatusClass turns an HTTP status code into its class label ("2xx").
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
