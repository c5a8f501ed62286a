package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentwatch_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentwatch_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Sync engine metrics
	SyncMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentwatch_sync_mode",
			Help: "Current data-source mode (1 for the active mode)",
		},
		[]string{"mode"},
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_backend_fetches_total",
			Help: "Total number of backend bulk fetches",
		},
		[]string{"dataset", "status"},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_realtime_events_total",
			Help: "Total number of realtime events received per feed",
		},
		[]string{"feed"},
	)

	RealtimeEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_realtime_events_dropped_total",
			Help: "Realtime events dropped before processing",
		},
		[]string{"feed", "reason"},
	)

	SnapshotSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentwatch_snapshot_size",
			Help: "Number of records held per snapshot collection",
		},
		[]string{"collection"},
	)

	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_refreshes_total",
			Help: "Total number of snapshot refreshes",
		},
		[]string{"trigger", "status"},
	)

	// Stream hub metrics
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentwatch_stream_subscribers",
			Help: "Number of connected live-stream subscribers",
		},
	)

	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_stream_events_total",
			Help: "Total number of events fanned out to stream subscribers",
		},
		[]string{"kind"},
	)

	StreamEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentwatch_stream_events_dropped_total",
			Help: "Stream events dropped because a subscriber channel was full",
		},
		[]string{"reason"},
	)

	// Build info
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentwatch_build_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)
