// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "content_engine"

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by type and outcome",
		},
		[]string{"webhook_type", "outcome"},
	)

	WebhookDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "delivery_duration_seconds",
			Help:      "Webhook delivery duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 15},
		},
		[]string{"webhook_type"},
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "retries_total",
			Help:      "Retry requests by entity kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	TimedOutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "timed_out_total",
			Help:      "Entities moved from processing to failed by the timeout checker",
		},
		[]string{"kind"},
	)

	CleanedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "rows_deleted_total",
			Help:      "Rows deleted by historical cleanup per collection",
		},
		[]string{"collection"},
	)

	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Query cache invalidations by origin",
		},
		[]string{"origin"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "upload_bytes_total",
			Help:      "Total bytes uploaded per bucket",
		},
		[]string{"bucket"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "MCP tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_call_duration_seconds",
			Help:      "MCP tool call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"tool"},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, route string, status int, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordWebhookDelivery records one webhook POST.
func RecordWebhookDelivery(webhookType string, ok bool, durationSec float64) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	WebhookDeliveriesTotal.WithLabelValues(webhookType, outcome).Inc()
	WebhookDeliveryDuration.WithLabelValues(webhookType).Observe(durationSec)
}

// RecordRetry records a retry attempt outcome ("accepted", "rejected", "dispatch_failed").
func RecordRetry(kind, outcome string) {
	RetriesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordTimedOut adds n timed-out entities of kind.
func RecordTimedOut(kind string, n int) {
	if n > 0 {
		TimedOutTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordCleaned adds n deleted rows for collection.
func RecordCleaned(collection string, n int) {
	if n > 0 {
		CleanedTotal.WithLabelValues(collection).Add(float64(n))
	}
}

// RecordInvalidation counts a cache invalidation ("local" or "remote").
func RecordInvalidation(origin string) {
	CacheInvalidationsTotal.WithLabelValues(origin).Inc()
}

// RecordUpload adds uploaded bytes for bucket.
func RecordUpload(bucket string, size int64) {
	UploadBytesTotal.WithLabelValues(bucket).Add(float64(size))
}

// RecordToolCall records one MCP tool invocation.
func RecordToolCall(tool string, ok bool, durationSec float64) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	ToolCallDuration.WithLabelValues(tool).Observe(durationSec)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
