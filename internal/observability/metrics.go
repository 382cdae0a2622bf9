// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// PostOperations counts post writes by operation (create, update, delete).
	PostOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_post_operations_total",
		Help: "Total number of post writes by operation",
	}, []string{"operation"})

	// LikeToggles counts like toggles by resulting state.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_like_toggles_total",
		Help: "Total number of like toggles by outcome",
	}, []string{"outcome"})

	// Uploads counts image uploads by outcome (stored, rejected, failed).
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_uploads_total",
		Help: "Total number of image uploads by outcome",
	}, []string{"outcome"})

	// LoginAttempts counts login attempts by outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})

	// EventPublishFailures counts post events that a sink failed to accept.
	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_event_publish_failures_total",
		Help: "Total number of post events a sink failed to publish",
	}, []string{"sink"})

	// WebSocketConnections is the gauge of open live feed connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_websocket_connections",
		Help: "Number of open live feed WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
