// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus collectors for the gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractionTotal counts extraction attempts by platform and outcome.
	// outcome is "success" or the error code (e.g. "PRIVATE_CONTENT").
	ExtractionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagate_extraction_total",
		Help: "Total number of extraction attempts by platform and outcome",
	}, []string{"platform", "outcome"})

	// ExtractionDuration tracks end-to-end extraction latency per platform.
	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediagate_extraction_duration_seconds",
		Help:    "Extraction latency by platform",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30},
	}, []string{"platform"})

	// ExtractionTierTotal counts which authentication tier produced the result.
	ExtractionTierTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagate_extraction_tier_total",
		Help: "Authentication tier used for successful extractions",
	}, []string{"platform", "tier"})

	// ExtractionItems tracks how many media items an extraction yields.
	ExtractionItems = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediagate_extraction_items",
		Help:    "Number of media items per successful extraction",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
	}, []string{"platform"})

	// WrapperRequestsTotal counts calls into the wrapper extractor service.
	WrapperRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagate_wrapper_requests_total",
		Help: "Requests forwarded to the wrapper extractor service by outcome",
	}, []string{"outcome"})

	// BreakerState exposes circuit breaker states as one-hot gauges.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mediagate_breaker_state",
		Help: "Circuit breaker state (1 for the active state, 0 otherwise)",
	}, []string{"name", "state"})

	// BreakerTrips counts transitions to the open state by reason.
	BreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagate_breaker_trips_total",
		Help: "Circuit breaker transitions to open by reason",
	}, []string{"name", "reason"})
)

// ObserveExtraction records one finished extraction attempt.
func ObserveExtraction(platform, outcome string, duration time.Duration) {
	ExtractionTotal.WithLabelValues(platform, outcome).Inc()
	ExtractionDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// IncExtractionTier records the tier that produced a successful extraction.
func IncExtractionTier(platform, tier string) {
	ExtractionTierTotal.WithLabelValues(platform, tier).Inc()
}

// ObserveExtractionItems records the item count of a successful extraction.
func ObserveExtractionItems(platform string, n int) {
	ExtractionItems.WithLabelValues(platform).Observe(float64(n))
}

// SetBreakerState marks the active state of a circuit breaker.
func SetBreakerState(name, state string) {
	for _, s := range []string{"closed", "open", "half-open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		BreakerState.WithLabelValues(name, s).Set(v)
	}
}

// IncBreakerTrip counts one transition of a breaker to open.
func IncBreakerTrip(name, reason string) {
	BreakerTrips.WithLabelValues(name, reason).Inc()
}
