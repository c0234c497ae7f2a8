package crawl

import (
	"fmt"
	"log/slog"
	"time"

	pkgconfig "harvester/internal/pkg/config"
)

// Config controls the crawl handler's storage layout and record TTL.
type Config struct {
	ObjectStoreBase string
	RecordTTL       time.Duration
	PDFTimeout      time.Duration
}

// DefaultConfig mirrors dynamodb.py's processed-record TTL and
// crawler.py's save_location base prefix.
func DefaultConfig() Config {
	return Config{
		ObjectStoreBase: "crawled",
		RecordTTL:       90 * 24 * time.Hour,
		PDFTimeout:      30 * time.Second,
	}
}

func (c Config) Validate() error {
	var problems []string
	if c.ObjectStoreBase == "" {
		problems = append(problems, "object_store_base must be non-empty")
	}
	if c.RecordTTL <= 0 {
		problems = append(problems, "record_ttl must be positive")
	}
	if c.PDFTimeout <= 0 {
		problems = append(problems, "pdf_timeout must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid crawl handler config: %v", problems)
	}
	return nil
}

// LoadConfigFromEnv loads Config from the environment, fail-open with a
// logged warning on any invalid value, matching the rest of the ambient
// config stack (internal/consumer.LoadConfigFromEnv,
// internal/scheduler.LoadConfigFromEnv).
func LoadConfigFromEnv(logger *slog.Logger, metrics *Metrics) Config {
	cfg := DefaultConfig()

	applyResult := func(field string, result pkgconfig.ConfigLoadResult) {
		if result.FallbackApplied {
			for _, w := range result.Warnings {
				logger.Warn("crawl handler config fallback", slog.String("field", field), slog.String("warning", w))
			}
			if metrics != nil {
				metrics.ConfigMetrics.RecordFallback(field, "env")
			}
		}
	}

	baseResult := pkgconfig.LoadEnvWithFallback("HARVESTER_CRAWL_OBJECT_STORE_BASE", cfg.ObjectStoreBase, func(v string) error {
		if v == "" {
			return fmt.Errorf("must be non-empty")
		}
		return nil
	})
	applyResult("object_store_base", baseResult)
	cfg.ObjectStoreBase = baseResult.Value.(string)

	ttlResult := pkgconfig.LoadEnvDuration("HARVESTER_CRAWL_RECORD_TTL", cfg.RecordTTL, pkgconfig.ValidatePositiveDuration)
	applyResult("record_ttl", ttlResult)
	cfg.RecordTTL = ttlResult.Value.(time.Duration)

	pdfResult := pkgconfig.LoadEnvDuration("HARVESTER_CRAWL_PDF_TIMEOUT", cfg.PDFTimeout, pkgconfig.ValidatePositiveDuration)
	applyResult("pdf_timeout", pdfResult)
	cfg.PDFTimeout = pdfResult.Value.(time.Duration)

	if metrics != nil {
		metrics.ConfigMetrics.RecordLoadTimestamp()
	}

	return cfg
}
