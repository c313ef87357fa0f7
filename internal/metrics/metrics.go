// Package metrics exposes Prometheus collectors for the fetch layer.
// Collectors register with the default registry on import.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	// Upstream metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamecompat_upstream_requests_total",
			Help: "Total number of upstream fetches by outcome",
		},
		[]string{"upstream", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamecompat_upstream_duration_seconds",
			Help:    "Duration of upstream fetches including rate gate waits and retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"upstream"},
	)

	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamecompat_upstream_retries_total",
			Help: "Total number of upstream request retries",
		},
		[]string{"upstream"},
	)

	// 0 closed, 1 half-open, 2 open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gamecompat_circuit_breaker_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)",
		},
		[]string{"upstream"},
	)

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamecompat_cache_lookups_total",
			Help: "Total number of cache lookups by namespace and result",
		},
		[]string{"namespace", "result"}, // result: hit, miss
	)

	WarmItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamecompat_warm_items_total",
			Help: "Total number of ids processed by cache warm-up",
		},
		[]string{"source"}, // source: cache, network
	)
)

// ObserveFetch records one finished upstream fetch.
func ObserveFetch(upstream, outcome string, elapsed time.Duration) {
	UpstreamRequests.WithLabelValues(upstream, outcome).Inc()
	UpstreamDuration.WithLabelValues(upstream).Observe(elapsed.Seconds())
}

// ObserveRetry counts a retry against upstream.
func ObserveRetry(upstream string) {
	UpstreamRetries.WithLabelValues(upstream).Inc()
}

// SetBreakerState publishes the breaker state of upstream.
func SetBreakerState(upstream string, state gobreaker.State) {
	BreakerState.WithLabelValues(upstream).Set(float64(state))
}

// ObserveLookup counts a cache lookup.
func ObserveLookup(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(namespace, result).Inc()
}
