// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Shorten outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeExhausted = "exhausted"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

var (
	// Prometheus panics on duplicate registration.
	once sync.Once

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ShortenTotal counts Shorten calls by outcome.
	ShortenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_shorten_total",
			Help: "Shorten operations by outcome.",
		},
		[]string{"outcome"},
	)

	// ShortenRetriesTotal counts attempts repeated after a storage fault.
	ShortenRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shortener_shorten_retries_total",
			Help: "Shorten attempts repeated after a transient storage fault.",
		},
	)

	// CacheOperations labels: layer is l1 or l2, result is hit, miss or error.
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_cache_operations_total",
			Help: "Lookup cache operations by layer and result.",
		},
		[]string{"layer", "result"},
	)
)

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			ShortenTotal,
			ShortenRetriesTotal,
			CacheOperations,
		)
	})
}
