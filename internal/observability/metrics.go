package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_http_requests_total",
		Help: "HTTP requests served, by method and status code.",
	}, []string{"method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	OrdersIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_orders_ingested_total",
		Help: "Orders added to the collection, by source.",
	}, []string{"source"})

	SyncSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_sync_sessions_total",
		Help: "Sync attempts started, by mode.",
	}, []string{"mode"})

	SyncTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_sync_transitions_total",
		Help: "Sync state machine transitions, by target phase.",
	}, []string{"phase"})

	NarrativeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_narrative_requests_total",
		Help: "Narrative generation requests, by outcome.",
	}, []string{"outcome"})
)
