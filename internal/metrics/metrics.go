package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for monitoring the fleet dashboard

var (
	// Upstream Matrack API
	MatrackAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matrack_api_request_duration_seconds",
		Help:    "Matrack API request latency",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"endpoint", "status_code"})

	MatrackServiceBlocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matrack_service_blocked",
		Help: "Matrack service block status (0=unblocked, 1=blocked by X-Blocked header)",
	})

	MatrackTokenRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matrack_token_requests_total",
		Help: "Matrack OAuth token requests by grant type and result",
	}, []string{"grant_type", "result"})

	// Ingest workers
	IngestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_runs_total",
		Help: "Ingest job runs by job and result",
	}, []string{"job", "result"}) // result: success|error|skipped

	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_run_duration_seconds",
		Help:    "Time taken by an ingest job run",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"job"})

	IngestRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_records_total",
		Help: "Records written by ingest, by kind",
	}, []string{"kind"}) // kind: device|location|trip|alarm

	// Dashboard views
	DashboardFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_fetches_total",
		Help: "REST fetches issued by dashboard views, by view and result",
	}, []string{"view", "result"})

	DashboardStaleResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_stale_responses_total",
		Help: "Responses discarded because a newer request superseded them",
	}, []string{"view"})

	WebSocketViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_viewers",
		Help: "Live map viewers connected to this instance",
	})

	// Cache metrics
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_operations_total",
		Help: "Cache operations by operation type and result",
	}, []string{"operation", "result"}) // operation: get|set|invalidate, result: hit|miss|error|ok

	SignedURLs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_signed_urls_total",
		Help: "Signed media URL issue and verification results",
	}, []string{"operation", "result"})

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method, route, and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route, and status",
	}, []string{"method", "path", "status"})

	HTTPPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_panics_total",
		Help: "Handler panics caught by the recovery middleware",
	})
)
