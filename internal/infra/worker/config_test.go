package worker

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// globalTestMetrics is a shared metrics instance for tests to avoid
// duplicate Prometheus registration panics from promauto.
var globalTestMetrics = NewWorkerMetrics()

func TestDefaultConfigHealthPort(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 9091, cfg.HealthPort)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeHealthPort(t *testing.T) {
	cfg := WorkerConfig{HealthPort: 80}
	require.Error(t, cfg.Validate())
}

func TestLoadConfigFromEnvUsesDefaultOnInvalidPort(t *testing.T) {
	t.Setenv("HARVESTER_HEALTH_PORT", "not-a-port")
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	require.NoError(t, err)
	require.Equal(t, 9091, cfg.HealthPort)
}

func TestLoadConfigFromEnvHonorsValidPort(t *testing.T) {
	t.Setenv("HARVESTER_HEALTH_PORT", "9200")
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg, err := LoadConfigFromEnv(logger, globalTestMetrics)
	require.NoError(t, err)
	require.Equal(t, 9200, cfg.HealthPort)
}
