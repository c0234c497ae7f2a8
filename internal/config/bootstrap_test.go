package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleBootstrap = `
queue:
  url: https://sqs.us-east-1.amazonaws.com/123456789012/harvester-jobs
  region: us-east-1
object_store:
  bucket: harvester-crawled
  region: us-east-1
tables:
  feed_tasks: harvester-feed-tasks
  markers: harvester-markers
  crawl_state: harvester-crawl-state
vacuum:
  cron_schedule: "0 * * * *"
  timezone: UTC
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bootstrap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadBootstrapParsesValidFile(t *testing.T) {
	path := writeSample(t, sampleBootstrap)
	cfg, err := LoadBootstrap(path)
	require.NoError(t, err)
	require.Equal(t, "https://sqs.us-east-1.amazonaws.com/123456789012/harvester-jobs", cfg.Queue.URL)
	require.Equal(t, "harvester-crawled", cfg.ObjectStore.Bucket)
	require.Equal(t, "harvester-feed-tasks", cfg.Tables.FeedTasks)
	require.Equal(t, "0 * * * *", cfg.Vacuum.CronSchedule)
}

func TestLoadBootstrapRejectsMissingRequiredField(t *testing.T) {
	path := writeSample(t, `
object_store:
  bucket: harvester-crawled
tables:
  feed_tasks: t
  markers: m
  crawl_state: c
vacuum:
  cron_schedule: "0 * * * *"
`)
	_, err := LoadBootstrap(path)
	require.Error(t, err)
}

func TestLoadBootstrapRejectsMissingFile(t *testing.T) {
	_, err := LoadBootstrap(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
