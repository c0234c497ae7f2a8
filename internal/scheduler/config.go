// Package scheduler implements the periodic RSS fan-out loop: pull every
// configured feed task, parse its feed, de-duplicate against processed-URL
// markers, and enqueue a crawl-single-url envelope per new item (spec §4.4),
// grounded on harvester/app/rss_processor.py and adapted from
// internal/infra/scraper.RSSFetcher.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	pkgconfig "harvester/internal/pkg/config"
)

// Config controls the scheduler loop's interval and marker TTL.
type Config struct {
	Interval       time.Duration
	MarkerTTL      time.Duration
	OuterRetryWait time.Duration
}

// DefaultConfig mirrors rss_processor.py's default 600s cycle and the
// processed-URL table's TTL column (spec §3, §4.4).
func DefaultConfig() Config {
	return Config{
		Interval:       600 * time.Second,
		MarkerTTL:      30 * 24 * time.Hour,
		OuterRetryWait: 60 * time.Second,
	}
}

func (c Config) Validate() error {
	var problems []string
	if c.Interval <= 0 {
		problems = append(problems, "interval must be positive")
	}
	if c.MarkerTTL <= 0 {
		problems = append(problems, "marker_ttl must be positive")
	}
	if c.OuterRetryWait <= 0 {
		problems = append(problems, "outer_retry_wait must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid scheduler config: %v", problems)
	}
	return nil
}

// LoadConfigFromEnv loads Config from the environment, falling back to
// defaults with a logged warning on any invalid value, matching
// internal/consumer.LoadConfigFromEnv's fail-open pattern.
func LoadConfigFromEnv(logger *slog.Logger, metrics *Metrics) Config {
	cfg := DefaultConfig()

	applyResult := func(field string, result pkgconfig.ConfigLoadResult) {
		if result.FallbackApplied {
			for _, w := range result.Warnings {
				logger.Warn("scheduler config fallback", slog.String("field", field), slog.String("warning", w))
			}
			if metrics != nil {
				metrics.ConfigMetrics.RecordFallback(field, "env")
			}
		}
	}

	intervalResult := pkgconfig.LoadEnvDuration("HARVESTER_SCHEDULER_INTERVAL", cfg.Interval, pkgconfig.ValidatePositiveDuration)
	applyResult("interval", intervalResult)
	cfg.Interval = intervalResult.Value.(time.Duration)

	ttlResult := pkgconfig.LoadEnvDuration("HARVESTER_SCHEDULER_MARKER_TTL", cfg.MarkerTTL, pkgconfig.ValidatePositiveDuration)
	applyResult("marker_ttl", ttlResult)
	cfg.MarkerTTL = ttlResult.Value.(time.Duration)

	retryResult := pkgconfig.LoadEnvDuration("HARVESTER_SCHEDULER_OUTER_RETRY_WAIT", cfg.OuterRetryWait, pkgconfig.ValidatePositiveDuration)
	applyResult("outer_retry_wait", retryResult)
	cfg.OuterRetryWait = retryResult.Value.(time.Duration)

	if metrics != nil {
		metrics.ConfigMetrics.RecordLoadTimestamp()
	}

	return cfg
}
