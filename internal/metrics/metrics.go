package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trust_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Skill metrics
	SkillRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_skill_requests_total",
			Help: "Total skill dispatches by outcome",
		},
		[]string{"skill", "outcome"}, // outcome is "ok" or an error kind
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trust_auth_failures_total",
			Help: "Total challenge signature verification failures",
		},
	)

	// Business metrics
	FeedbackRequested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trust_feedback_requested_total",
			Help: "Total feedback requests created",
		},
	)

	FeedbackAuthorized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trust_feedback_authorized_total",
			Help: "Total feedback authorizations issued",
		},
	)

	ValidationsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trust_validations_submitted_total",
			Help: "Total validation responses submitted",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_messages_sent_total",
			Help: "Total thread messages sent",
		},
		[]string{"type"},
	)

	// Cache metrics
	TrendCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_trend_cache_total",
			Help: "Trend snapshot lookups by result",
		},
		[]string{"result"}, // "hit", "miss" or "forced"
	)

	// Upstream metrics
	RegistryCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_registry_calls_total",
			Help: "Outbound registry calls by target and outcome",
		},
		[]string{"target", "outcome"},
	)
)
