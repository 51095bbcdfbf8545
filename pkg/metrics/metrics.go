// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileEventsTotal tracks connection events processed by class and outcome
	ReconcileEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "reconcile",
			Name:      "events_total",
			Help:      "Total number of connection events processed by class and outcome",
		},
		[]string{"class", "outcome"},
	)

	// ReconcileMatches tracks how many rows each token lookup matched
	ReconcileMatches = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "reconcile",
			Name:      "matched_rows",
			Help:      "Number of integration rows matched per connection event",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		},
		[]string{"strategy"},
	)

	// ReconcileRowUpdates tracks per-row update outcomes during fan-out
	ReconcileRowUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "reconcile",
			Name:      "row_updates_total",
			Help:      "Total number of per-row update attempts by outcome",
		},
		[]string{"status", "outcome"},
	)

	// ForwardAttemptsTotal tracks delivery forward attempts by outcome
	ForwardAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "forward",
			Name:      "attempts_total",
			Help:      "Total number of delivery forward attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ForwardDeliveriesTotal tracks completed deliveries by final outcome
	ForwardDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "forward",
			Name:      "deliveries_total",
			Help:      "Total number of completed deliveries by final outcome",
		},
		[]string{"outcome"},
	)

	// ForwardDuration tracks total delivery duration including backoff
	ForwardDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "forward",
			Name:      "duration_seconds",
			Help:      "Duration of deliveries in seconds including backoff waits",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordReconcileEvent records a processed connection event
func RecordReconcileEvent(class, outcome string) {
	ReconcileEventsTotal.WithLabelValues(class, outcome).Inc()
}

// RecordReconcileMatch records the match count for a lookup strategy
func RecordReconcileMatch(strategy string, matched int) {
	ReconcileMatches.WithLabelValues(strategy).Observe(float64(matched))
}

// RecordRowUpdate records a per-row update outcome
func RecordRowUpdate(status, outcome string) {
	ReconcileRowUpdates.WithLabelValues(status, outcome).Inc()
}

// RecordForwardAttempt records a single delivery attempt
func RecordForwardAttempt(outcome string) {
	ForwardAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordForwardDelivery records a completed delivery
func RecordForwardDelivery(outcome string, durationSeconds float64) {
	ForwardDeliveriesTotal.WithLabelValues(outcome).Inc()
	ForwardDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(method, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
