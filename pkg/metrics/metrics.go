package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler tick duration (milliseconds).
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_tick_duration_ms",
			Help:    "Reminder scheduler tick duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
	)

	// Fired reminders, labelled by delivery mode.
	ReminderFiredCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_fired_count",
			Help: "Total number of reminders fired",
		},
		[]string{"mode"}, // mode: single, grouped
	)

	// Ticks skipped because the previous tick was still running.
	TickSkippedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_tick_skipped_count",
			Help: "Total number of scheduler ticks skipped due to overlap",
		},
	)

	// Materialization outcomes.
	MaterializedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_materialized_count",
			Help: "Total number of materializer invocations by outcome",
		},
		[]string{"outcome"}, // outcome: created, finished, capped, duplicate
	)

	// Database query latency (seconds).
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// HTTP request latency (seconds).
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Outbox publish attempts.
	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_count",
			Help: "Total number of outbox events published",
		},
		[]string{"routing_key", "status"}, // status: success, failed
	)
)

// RecordTickDuration records one scheduler tick.
func RecordTickDuration(duration time.Duration) {
	TickDuration.Observe(float64(duration.Milliseconds()))
}

// IncrementReminderFired counts a fired reminder batch by mode.
func IncrementReminderFired(mode string, n int) {
	ReminderFiredCount.WithLabelValues(mode).Add(float64(n))
}

// IncrementMaterialized counts a materializer outcome.
func IncrementMaterialized(outcome string) {
	MaterializedCount.WithLabelValues(outcome).Inc()
}

// RecordDBQueryDuration records a database query.
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration records an HTTP request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementOutboxPublish counts an outbox publish attempt.
func IncrementOutboxPublish(routingKey, status string) {
	OutboxPublishCount.WithLabelValues(routingKey, status).Inc()
}
