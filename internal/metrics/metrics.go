package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heartwise_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heartwise_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Session engine metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartwise_sessions_created_total",
			Help: "Total chat sessions created",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartwise_sessions_evicted_total",
			Help: "Total chat sessions removed after their idle TTL",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heartwise_active_sessions",
			Help: "Chat sessions currently held in memory",
		},
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heartwise_messages_posted_total",
			Help: "User messages accepted, by reply category",
		},
		[]string{"category"},
	)

	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heartwise_messages_rejected_total",
			Help: "User messages rejected before any append",
		},
		[]string{"reason"}, // "not_found", "invalid_input", "internal"
	)

	CrisisEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartwise_crisis_escalations_total",
			Help: "Turns answered with the crisis escalation script",
		},
	)

	// Archive metrics
	ArchiveLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heartwise_archive_latency_seconds",
			Help:    "Transcript archive write latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1},
		},
		[]string{"driver", "op"},
	)

	ArchiveErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heartwise_archive_errors_total",
			Help: "Failed transcript archive writes",
		},
		[]string{"driver", "op"},
	)
)
