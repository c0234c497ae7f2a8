package worker

import (
	"harvester/internal/pkg/config"
)

// WorkerMetrics embeds the standard ConfigMetrics for the harvester
// binary's own liveness-server configuration load. Job-execution metrics
// (cron runs, duration, items processed) now live on internal/scheduler's
// and internal/vacuum's own Metrics types, since those are the
// components that actually run periodic jobs in this binary.
type WorkerMetrics struct {
	*config.ConfigMetrics
}

func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),
	}
}

func (m *WorkerMetrics) MustRegister() {}
