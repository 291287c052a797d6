package matrack

import (
	"context"
	"strconv"
	"time"

	"github.com/edgetensor/fleetdash/internal/metrics"
)

// PrometheusBlockDecorator is a decorator for BlockStore that records block metrics to Prometheus.
type PrometheusBlockDecorator struct {
	next BlockStore
}

func NewPrometheusBlockDecorator(next BlockStore) *PrometheusBlockDecorator {
	return &PrometheusBlockDecorator{next: next}
}

func (p *PrometheusBlockDecorator) MarkServiceBlocked(ctx context.Context) {
	p.next.MarkServiceBlocked(ctx)
	metrics.MatrackServiceBlocked.Set(1)
}

func (p *PrometheusBlockDecorator) IsServiceBlocked(ctx context.Context) bool {
	return p.next.IsServiceBlocked(ctx)
}

func (p *PrometheusBlockDecorator) MarkTemporarilyBlocked(ctx context.Context, blockedUntil time.Time) {
	p.next.MarkTemporarilyBlocked(ctx, blockedUntil)
}

func (p *PrometheusBlockDecorator) BlockedUntil(ctx context.Context) time.Time {
	return p.next.BlockedUntil(ctx)
}

// PrometheusLatencyRecorder is LatencyRecorder that records metrics to Prometheus.
type PrometheusLatencyRecorder struct {
}

func NewPrometheusLatencyRecorder() *PrometheusLatencyRecorder {
	return &PrometheusLatencyRecorder{}
}

func (p *PrometheusLatencyRecorder) RecordLatency(endpoint string, statusCode int, latency time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	metrics.MatrackAPILatency.WithLabelValues(endpoint, status).Observe(latency.Seconds())

	// A 2xx means someone cleared the block by hand.
	if statusCode >= 200 && statusCode < 300 {
		metrics.MatrackServiceBlocked.Set(0)
	}
}

func (p *PrometheusLatencyRecorder) RecordTokenRequest(grantType string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.MatrackTokenRequests.WithLabelValues(grantType, result).Inc()
}
