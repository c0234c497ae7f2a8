package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWorkerMetricsInitializesConfigMetrics(t *testing.T) {
	require.NotNil(t, globalTestMetrics.ConfigMetrics)
	globalTestMetrics.MustRegister()
}
