// Package vacuum runs an hourly cron job that deletes expired
// processed-URL markers and crawl-state records from adapters without
// native TTL expiry, grounded on cmd/worker's startCronWorker and
// internal/infra/worker's config/metrics pattern.
package vacuum

import (
	"fmt"
	"log/slog"

	pkgconfig "harvester/internal/pkg/config"
)

// Config controls the vacuum cron job's schedule and timezone.
type Config struct {
	CronSchedule string
	Timezone     string
}

func DefaultConfig() Config {
	return Config{
		CronSchedule: "0 * * * *", // every hour, on the hour
		Timezone:     "UTC",
	}
}

func (c *Config) Validate() error {
	var problems []error
	if err := pkgconfig.ValidateCronSchedule(c.CronSchedule); err != nil {
		problems = append(problems, fmt.Errorf("cron schedule: %w", err))
	}
	if err := pkgconfig.ValidateTimezone(c.Timezone); err != nil {
		problems = append(problems, fmt.Errorf("timezone: %w", err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("validation failed: %v", problems)
	}
	return nil
}

// LoadConfigFromEnv loads the vacuum schedule with the teacher's fail-open
// strategy: invalid values fall back to the default and are logged, never
// returned as an error.
func LoadConfigFromEnv(logger *slog.Logger, metrics *Metrics) Config {
	cfg := DefaultConfig()
	fallback := false

	result := pkgconfig.LoadEnvWithFallback("HARVESTER_VACUUM_CRON_SCHEDULE", cfg.CronSchedule, pkgconfig.ValidateCronSchedule)
	cfg.CronSchedule = result.Value.(string)
	if result.FallbackApplied {
		fallback = true
		metrics.RecordValidationError("cron_schedule")
		metrics.RecordFallback("cron_schedule", "default")
		for _, w := range result.Warnings {
			logger.Warn("vacuum configuration fallback applied", slog.String("field", "CronSchedule"), slog.String("warning", w))
		}
	}

	result = pkgconfig.LoadEnvWithFallback("HARVESTER_VACUUM_TIMEZONE", cfg.Timezone, pkgconfig.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	if result.FallbackApplied {
		fallback = true
		metrics.RecordValidationError("timezone")
		metrics.RecordFallback("timezone", "default")
		for _, w := range result.Warnings {
			logger.Warn("vacuum configuration fallback applied", slog.String("field", "Timezone"), slog.String("warning", w))
		}
	}

	metrics.SetFallbackActive("", fallback)
	metrics.RecordLoadTimestamp()
	return cfg
}
