// Package metrics exposes the Prometheus instruments for the service.
// All collectors register on the default registry via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RouteDecisions counts access router outcomes, labelled allow/redirect.
	RouteDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shepherd_route_decisions_total",
		Help: "Access router decisions by outcome.",
	}, []string{"outcome"})

	// PolicyDenials counts role mutation denials by reason code.
	PolicyDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shepherd_policy_denials_total",
		Help: "Role mutation requests denied by the policy engine, by reason.",
	}, []string{"reason"})

	// AuditEventsAppended counts audit events durably appended.
	AuditEventsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shepherd_audit_events_appended_total",
		Help: "Audit events appended to the store.",
	})

	// AuditEventsDropped counts audit events discarded because the async
	// publisher buffer was full.
	AuditEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shepherd_audit_events_dropped_total",
		Help: "Audit events dropped due to publisher backpressure.",
	})

	// OutboxPending gauges unprocessed outbox rows, sampled by the relay worker.
	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shepherd_outbox_pending",
		Help: "Outbox entries awaiting publication to Kafka.",
	})

	// OutboxPublished counts outbox entries successfully relayed to Kafka.
	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shepherd_outbox_published_total",
		Help: "Outbox entries published to Kafka.",
	})

	// HTTPDuration observes request latency by route and status class.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shepherd_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
