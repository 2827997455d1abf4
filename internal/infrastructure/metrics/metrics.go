package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "chat_turns_total",
			Help:      "Chat turns by model and outcome",
		},
		[]string{"model_name", "outcome"},
	)

	ConversationsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "conversations_started_total",
			Help:      "Conversations created by model",
		},
		[]string{"model_name"},
	)

	// Inference round trip histogram
	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "chat_api",
			Name:      "inference_duration_seconds",
			Help:      "Inference backend round trip in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model_name", "status"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordChatTurn records the outcome of a chat turn ("success", "not_found", "error").
func RecordChatTurn(modelName, outcome string) {
	ChatTurnsTotal.WithLabelValues(modelName, outcome).Inc()
}

// RecordConversationStarted records a newly created conversation.
func RecordConversationStarted(modelName string) {
	ConversationsStartedTotal.WithLabelValues(modelName).Inc()
}

// RecordInference records one inference backend call.
func RecordInference(modelName, status string, durationSec float64) {
	InferenceDuration.WithLabelValues(modelName, status).Observe(durationSec)
}
