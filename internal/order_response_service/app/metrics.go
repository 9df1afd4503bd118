package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookPayloadsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_response",
			Name:      "webhook_payloads_total",
			Help:      "Total webhook payloads received, by classified kind.",
		},
		[]string{"kind"}, // "incoming_sms", "delivery_report", "unknown"
	)

	commandsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_response",
			Name:      "commands_processed_total",
			Help:      "Total inbound supplier commands processed, by action and outcome.",
		},
		[]string{"action", "outcome"}, // outcome: "applied", "noop", "resolution_failed", "guard_failed", "error"
	)

	resolutionFailuresCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_response",
			Name:      "resolution_failures_total",
			Help:      "Total commands that could not be matched to an order, by reason.",
		},
		[]string{"reason"},
	)

	ambiguousResolutionCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "order_response",
			Name:      "ambiguous_resolutions_total",
			Help:      "Short-code commands resolved by recency tie-break among multiple pending orders.",
		},
	)

	processingDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "order_response",
			Name:      "processing_duration_seconds",
			Help:      "Duration of inbound message processing.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

// CountWebhookPayload records one classified webhook body. The transport
// layer reports through this instead of owning its own collectors.
func CountWebhookPayload(kind string) {
	webhookPayloadsCounter.WithLabelValues(kind).Inc()
}
