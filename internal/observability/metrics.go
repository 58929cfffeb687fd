package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	lifecycleTransitions *prometheus.CounterVec
	chatMessagesSent     *prometheus.CounterVec
	chatConnections      prometheus.Gauge
	notificationsEmitted *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		lifecycleTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surplus_lifecycle_transitions_total",
			Help: "Total number of successful surplus lifecycle transitions.",
		}, []string{"transition"})

		chatMessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of chat messages accepted by the gate.",
		}, []string{"sender_role"})

		chatConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_websocket_connections",
			Help: "Number of currently attached chat websocket clients.",
		})

		notificationsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_emitted_total",
			Help: "Total number of lifecycle notifications persisted.",
		}, []string{"type"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			lifecycleTransitions,
			chatMessagesSent,
			chatConnections,
			notificationsEmitted,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// LifecycleTransitions exposes the counter for surplus state transitions.
func LifecycleTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleTransitions
}

// ChatMessagesSent exposes the counter for accepted chat messages.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesSent
}

// ChatConnections exposes the gauge of attached websocket clients.
func ChatConnections() prometheus.Gauge {
	RegisterMetrics()
	return chatConnections
}

// NotificationsEmitted exposes the counter for persisted notifications.
func NotificationsEmitted() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsEmitted
}
