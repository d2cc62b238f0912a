package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RouteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_route_requests_total",
			Help: "Total routed generation requests by category and outcome",
		},
		[]string{"category", "status"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_provider_calls_total",
			Help: "Provider adapter calls by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "forge_provider_call_seconds",
			Help: "Provider adapter call latency in seconds",
		},
		[]string{"provider"},
	)

	FallbackDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forge_route_fallback_depth",
			Help:    "Number of candidates tried or skipped before a route resolved",
			Buckets: prometheus.LinearBuckets(0, 1, 8),
		},
	)

	ActiveObservers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forge_hub_observers",
			Help: "Number of connected event observers",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_hub_events_total",
			Help: "Events fanned out by frame type",
		},
		[]string{"type"},
	)

	QuotaResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_quota_resets_total",
			Help: "Administrative quota resets by period",
		},
		[]string{"period"},
	)
)
