package worker

import (
	"fmt"
	"log/slog"

	"harvester/internal/pkg/config"
)

// WorkerConfig holds the process-level configuration for the harvester
// binary's own liveness server. The cron schedule and timezone that used
// to live here belong to internal/scheduler (RSS polling) and
// internal/vacuum (marker/crawl-state cleanup) instead, since this
// process runs a long-lived consumer loop rather than a single daily
// cron job.
type WorkerConfig struct {
	// HealthPort is the port number for the health check HTTP server.
	// Range: 1024-65535 (avoid privileged ports)
	// Default: 9091
	HealthPort int
}

// DefaultConfig returns a WorkerConfig with sensible default values.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		HealthPort: 9091,
	}
}

// Validate checks if the configuration values are valid.
func (c *WorkerConfig) Validate() error {
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		return fmt.Errorf("health port: %w", err)
	}
	return nil
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to default values on failure,
// following the teacher's fail-open strategy.
//
// Environment variables:
//   - HARVESTER_HEALTH_PORT: Integer 1024-65535 (default: 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	result := config.LoadEnvInt("HARVESTER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("health_port")
		metrics.RecordFallback("health_port", "default")
		for _, warning := range result.Warnings {
			logger.Warn("worker configuration fallback applied",
				slog.String("field", "HealthPort"),
				slog.String("warning", warning))
		}
	}

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()
	return &cfg, nil
}
