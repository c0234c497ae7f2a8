package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pkgconfig "harvester/internal/pkg/config"
)

// Metrics provides Prometheus metrics for the consumer engine, mirroring
// internal/infra/worker.WorkerMetrics's embedding of ConfigMetrics plus
// component-specific series.
type Metrics struct {
	*pkgconfig.ConfigMetrics

	MessagesReceivedTotal  prometheus.Counter
	MessagesDeletedTotal   *prometheus.CounterVec
	MessagesRequeuedTotal  *prometheus.CounterVec
	HandlerDurationSeconds prometheus.Histogram
	InFlightMessages       prometheus.Gauge
	HeartbeatsSentTotal    prometheus.Counter
	DuplicatesSkippedTotal prometheus.Counter
}

// NewMetrics creates consumer metrics, auto-registered via promauto.
func NewMetrics() *Metrics {
	return &Metrics{
		ConfigMetrics: pkgconfig.NewConfigMetrics("consumer"),

		MessagesReceivedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consumer_messages_received_total",
			Help: "Total number of messages received from the queue",
		}),

		MessagesDeletedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consumer_messages_deleted_total",
			Help: "Total number of messages deleted, by outcome (success, non_retryable, duplicate)",
		}, []string{"outcome"}),

		MessagesRequeuedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consumer_messages_requeued_total",
			Help: "Total number of messages re-enqueued for retry, by reason",
		}, []string{"reason"}),

		HandlerDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "consumer_handler_duration_seconds",
			Help:    "Duration of message handler execution in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		InFlightMessages: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "consumer_in_flight_messages",
			Help: "Number of messages currently being processed",
		}),

		HeartbeatsSentTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consumer_heartbeats_sent_total",
			Help: "Total number of visibility-extension heartbeats sent",
		}),

		DuplicatesSkippedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consumer_duplicates_skipped_total",
			Help: "Total number of messages skipped as duplicates by the idempotency store",
		}),
	}
}

func (m *Metrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto.
}
