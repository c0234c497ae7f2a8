package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pkgconfig "harvester/internal/pkg/config"
)

// Metrics provides Prometheus metrics for the crawl handler, mirroring
// internal/consumer.Metrics's embedding of ConfigMetrics plus
// component-specific series.
type Metrics struct {
	*pkgconfig.ConfigMetrics

	CrawlsTotal          *prometheus.CounterVec
	ExtractionFallbacks  prometheus.Counter
	PDFCaptureFailures   prometheus.Counter
	CrawlDurationSeconds prometheus.Histogram
	SingleFlightWaitSeconds prometheus.Histogram
}

// NewMetrics creates crawl handler metrics, auto-registered via promauto.
func NewMetrics() *Metrics {
	return &Metrics{
		ConfigMetrics: pkgconfig.NewConfigMetrics("crawl_handler"),

		CrawlsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crawl_handler_crawls_total",
			Help: "Total number of crawl attempts, by outcome (success, failure)",
		}, []string{"outcome"}),

		ExtractionFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crawl_handler_extraction_fallbacks_total",
			Help: "Total number of times the readability fallback extractor was used instead of the LLM extractor",
		}),

		PDFCaptureFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crawl_handler_pdf_capture_failures_total",
			Help: "Total number of PDF capture failures (non-fatal; crawl still succeeds)",
		}),

		CrawlDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawl_handler_crawl_duration_seconds",
			Help:    "Duration of a full single-URL crawl, including the single-flight wait",
			Buckets: prometheus.DefBuckets,
		}),

		SingleFlightWaitSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawl_handler_single_flight_wait_seconds",
			Help:    "Time spent waiting to acquire the single-flight extraction gate",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto.
}
