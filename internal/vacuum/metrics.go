package vacuum

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pkgconfig "harvester/internal/pkg/config"
)

// Metrics embeds the standard ConfigMetrics and adds run/deletion
// counters for the vacuum job, mirroring internal/infra/worker's
// WorkerMetrics.
type Metrics struct {
	*pkgconfig.ConfigMetrics

	RunsTotal    *prometheus.CounterVec
	DeletedTotal *prometheus.CounterVec
	RunDuration  prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		ConfigMetrics: pkgconfig.NewConfigMetrics("vacuum"),

		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vacuum_run_total",
			Help: "Total vacuum runs by status (success/failure)",
		}, []string{"status"}),

		DeletedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vacuum_deleted_total",
			Help: "Total records deleted by the vacuum job, by kind (marker/crawl_state)",
		}, []string{"kind"}),

		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vacuum_run_duration_seconds",
			Help:    "Duration of a single vacuum run",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60},
		}),
	}
}

func (m *Metrics) MustRegister() {}
