// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeliveryTotal counts delivery requests by endpoint and outcome.
	DeliveryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagate_delivery_total",
		Help: "Delivery requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	// DeliveryBytes counts bytes relayed to clients per endpoint.
	DeliveryBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagate_delivery_bytes_total",
		Help: "Bytes relayed to clients by endpoint",
	}, []string{"endpoint"})

	// MuxerRunsTotal counts muxer subprocess invocations by mode and outcome.
	MuxerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagate_muxer_runs_total",
		Help: "Muxer subprocess invocations by mode and outcome",
	}, []string{"mode", "outcome"})

	// MuxerDuration tracks muxer subprocess wall-clock time.
	MuxerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediagate_muxer_duration_seconds",
		Help:    "Muxer subprocess wall-clock duration",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60},
	})

	// RegistryEntries reports the current number of live registry entries.
	RegistryEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediagate_registry_entries",
		Help: "Current number of live URL registry entries",
	})

	// RegistryLookupsTotal counts registry lookups by result.
	RegistryLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagate_registry_lookups_total",
		Help: "URL registry lookups by result (hit/miss)",
	}, []string{"result"})

	// RateLimitedTotal counts requests rejected by a limiter.
	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagate_rate_limited_total",
		Help: "Requests rejected by rate limiting, by scope",
	}, []string{"scope"})

	// BlockedRequestsTotal counts requests rejected by the input filters.
	BlockedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagate_blocked_requests_total",
		Help: "Requests rejected by security filtering, by rule",
	}, []string{"rule"})
)

// IncDelivery records a delivery request outcome.
func IncDelivery(endpoint, outcome string) {
	DeliveryTotal.WithLabelValues(endpoint, outcome).Inc()
}

// AddDeliveryBytes accumulates relayed bytes for an endpoint.
func AddDeliveryBytes(endpoint string, n int64) {
	if n > 0 {
		DeliveryBytes.WithLabelValues(endpoint).Add(float64(n))
	}
}

// IncRegistryLookup records a registry hit or miss.
func IncRegistryLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	RegistryLookupsTotal.WithLabelValues(result).Inc()
}
