package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan run metrics
var (
	// ScanRunsTotal tracks finished runs by scan type and result
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_runs_total",
			Help: "Total number of scan runs by scan type and result",
		},
		[]string{"scan_type", "result"},
	)

	// ScanRunDuration tracks run duration
	ScanRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan_run_duration_seconds",
			Help:    "Scan run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"scan_type"},
	)

	// ScanRunsInProgress tracks currently running scans
	ScanRunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scan_runs_in_progress",
			Help: "Number of scan runs currently in progress",
		},
	)

	// ScanRunsSupersededTotal counts runs canceled by a newer run on the same sink
	ScanRunsSupersededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_runs_superseded_total",
			Help: "Total number of scan runs superseded by a newer run",
		},
	)

	// SourceOutcomesTotal tracks per-source outcomes
	SourceOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_source_outcomes_total",
			Help: "Total number of source outcomes by capability and outcome",
		},
		[]string{"capability", "outcome"},
	)

	// ProgressEventsTotal counts events pushed to sinks
	ProgressEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scan_progress_events_total",
			Help: "Total number of progress events pushed to sinks",
		},
	)
)

// Provider metrics
var (
	// ProviderRequestsTotal tracks upstream calls by provider and status
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of upstream provider requests",
		},
		[]string{"provider", "operation", "status"},
	)

	// ProviderRequestDuration tracks upstream latency
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Upstream provider request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	// ProviderRetriesTotal tracks retried upstream calls
	ProviderRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Total number of retried upstream provider requests",
		},
		[]string{"provider"},
	)
)

// Proxy metrics
var (
	// ProxyResponsesTotal tracks proxy responses by endpoint and data source
	ProxyResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_responses_total",
			Help: "Total number of proxy responses by endpoint and data source",
		},
		[]string{"endpoint", "source"},
	)

	// ProxyRefreshTotal tracks scheduled cache refreshes
	ProxyRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_cache_refresh_total",
			Help: "Total number of scheduled proxy cache refreshes",
		},
		[]string{"endpoint", "result"},
	)
)

// Websocket metrics
var (
	// WebSocketConnections tracks connected websocket clients
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Number of connected websocket clients",
		},
	)

	// WebSocketSlowClients counts clients disconnected for falling behind
	WebSocketSlowClients = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_client_disconnects_total",
			Help: "Total number of websocket clients disconnected for falling behind",
		},
	)
)
