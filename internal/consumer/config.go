// Package consumer implements the long-polling SQS consumer engine:
// concurrency-gated message dispatch, visibility heartbeats, idempotency,
// and retry/backoff/DLQ semantics (spec §2), grounded on
// core/sqs_consumer.py's SQSConsumer and harvester/app/message_processor.py.
package consumer

import (
	"fmt"
	"log/slog"
	"time"

	pkgconfig "harvester/internal/pkg/config"
)

// Config controls the consumer engine's polling and concurrency behavior,
// mirroring the fail-open env-driven pattern of
// internal/infra/worker.WorkerConfig.
type Config struct {
	Concurrency       int
	MaxNumberOfMessages int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	HeartbeatEvery    time.Duration
	HealthPort        int
}

// DefaultConfig mirrors core/sqs_consumer.py's constructor defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:         5,
		MaxNumberOfMessages: 10,
		WaitTime:            20 * time.Second,
		VisibilityTimeout:   30 * time.Second,
		HeartbeatEvery:      15 * time.Second,
		HealthPort:          8081,
	}
}

// Validate aggregates every configuration problem instead of stopping at
// the first one, matching internal/infra/worker.WorkerConfig.Validate.
func (c Config) Validate() error {
	var problems []string
	if c.Concurrency < 1 {
		problems = append(problems, "concurrency must be >= 1")
	}
	if c.MaxNumberOfMessages < 1 || c.MaxNumberOfMessages > 10 {
		problems = append(problems, "max_number_of_messages must be between 1 and 10")
	}
	if c.WaitTime < 0 || c.WaitTime > 20*time.Second {
		problems = append(problems, "wait_time must be between 0 and 20s")
	}
	if c.VisibilityTimeout <= 0 {
		problems = append(problems, "visibility_timeout must be positive")
	}
	if c.HeartbeatEvery <= 0 || c.HeartbeatEvery >= c.VisibilityTimeout {
		problems = append(problems, "heartbeat_every must be positive and less than visibility_timeout")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid consumer config: %v", problems)
	}
	return nil
}

func validatePositiveInt(v int) error {
	if v < 1 {
		return fmt.Errorf("must be >= 1")
	}
	return nil
}

// LoadConfigFromEnv loads Config from the environment, falling back to
// defaults with a logged warning on any invalid value — never returning
// an error, matching internal/infra/worker.LoadConfigFromEnv.
func LoadConfigFromEnv(logger *slog.Logger, metrics *Metrics) Config {
	cfg := DefaultConfig()

	applyResult := func(field string, result pkgconfig.ConfigLoadResult) {
		if result.FallbackApplied {
			for _, w := range result.Warnings {
				logger.Warn("consumer config fallback", slog.String("field", field), slog.String("warning", w))
			}
			if metrics != nil {
				metrics.ConfigMetrics.RecordFallback(field, "env")
			}
		}
	}

	concurrencyResult := pkgconfig.LoadEnvInt("HARVESTER_CONSUMER_CONCURRENCY", cfg.Concurrency, validatePositiveInt)
	applyResult("concurrency", concurrencyResult)
	cfg.Concurrency = concurrencyResult.Value.(int)

	maxNumResult := pkgconfig.LoadEnvInt("HARVESTER_CONSUMER_MAX_MESSAGES", cfg.MaxNumberOfMessages, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 10)
	})
	applyResult("max_number_of_messages", maxNumResult)
	cfg.MaxNumberOfMessages = maxNumResult.Value.(int)

	waitResult := pkgconfig.LoadEnvDuration("HARVESTER_CONSUMER_WAIT_TIME", cfg.WaitTime, func(d time.Duration) error {
		return pkgconfig.ValidateDuration(d, 0, 20*time.Second)
	})
	applyResult("wait_time", waitResult)
	cfg.WaitTime = waitResult.Value.(time.Duration)

	visResult := pkgconfig.LoadEnvDuration("HARVESTER_CONSUMER_VISIBILITY_TIMEOUT", cfg.VisibilityTimeout, pkgconfig.ValidatePositiveDuration)
	applyResult("visibility_timeout", visResult)
	cfg.VisibilityTimeout = visResult.Value.(time.Duration)

	heartbeatResult := pkgconfig.LoadEnvDuration("HARVESTER_CONSUMER_HEARTBEAT_EVERY", cfg.HeartbeatEvery, pkgconfig.ValidatePositiveDuration)
	applyResult("heartbeat_every", heartbeatResult)
	cfg.HeartbeatEvery = heartbeatResult.Value.(time.Duration)

	portResult := pkgconfig.LoadEnvInt("HARVESTER_CONSUMER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 65535)
	})
	applyResult("health_port", portResult)
	cfg.HealthPort = portResult.Value.(int)

	if metrics != nil {
		metrics.ConfigMetrics.RecordLoadTimestamp()
	}

	return cfg
}
