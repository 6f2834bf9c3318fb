package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autobook"

var (
	RideDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_decisions_total", Help: "Ride decisions by status and rejection reason"},
		[]string{"status", "reason"},
	)
	ConflictCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "conflict_check_duration_seconds",
		Help:      "Time spent querying conflict sources",
		Buckets:   prometheus.DefBuckets,
	})
	CalendarQueryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "calendar_query_failures_total", Help: "Busy calendar queries that failed and were skipped",
	})
	IntegrationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "integration_failures_total", Help: "Best-effort integration calls that failed"},
		[]string{"kind"},
	)
	ConversationMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "conversation_messages_total", Help: "Inbound conversation messages by step and outcome"},
		[]string{"step", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Integration failure kinds.
const (
	KindCalendarEvent = "calendar_event"
	KindNotification  = "notification"
	KindEventPublish  = "event_publish"
)
