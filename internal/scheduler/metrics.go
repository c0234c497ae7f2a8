package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pkgconfig "harvester/internal/pkg/config"
)

// Metrics provides Prometheus metrics for the RSS scheduler, mirroring
// internal/consumer.Metrics's embedding of ConfigMetrics plus
// component-specific series.
type Metrics struct {
	*pkgconfig.ConfigMetrics

	CyclesTotal        prometheus.Counter
	FeedFetchErrors     *prometheus.CounterVec
	ItemsEnqueuedTotal  prometheus.Counter
	ItemsSkippedTotal    *prometheus.CounterVec
	EnqueueErrorsTotal  prometheus.Counter
	CycleDurationSeconds prometheus.Histogram
}

// NewMetrics creates scheduler metrics, auto-registered via promauto.
func NewMetrics() *Metrics {
	return &Metrics{
		ConfigMetrics: pkgconfig.NewConfigMetrics("scheduler"),

		CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_cycles_total",
			Help: "Total number of scheduler cycles run",
		}),

		FeedFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_feed_fetch_errors_total",
			Help: "Total number of feed fetch/parse failures, by task_id",
		}, []string{"task_id"}),

		ItemsEnqueuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_items_enqueued_total",
			Help: "Total number of crawl-single-url envelopes enqueued",
		}),

		ItemsSkippedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_items_skipped_total",
			Help: "Total number of feed items skipped, by reason (already_processed, enqueue_failed)",
		}, []string{"reason"}),

		EnqueueErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_enqueue_errors_total",
			Help: "Total number of single-item enqueue failures",
		}),

		CycleDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_cycle_duration_seconds",
			Help:    "Duration of a full scheduler cycle across all feed tasks",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto.
}
