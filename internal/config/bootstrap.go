// Package config loads the static bootstrap configuration (queue URL,
// object store bucket, DynamoDB table names, vacuum cron schedule) from a
// YAML file, adapted from the teacher's internal/config.LoadSecurityConfig
// YAML-file pattern.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bootstrap holds the handful of deployment-specific identifiers every
// adapter needs at startup: which queue to consume, which bucket to
// write crawl output to, which DynamoDB tables back the feed-task,
// marker, and crawl-state indexes, and the vacuum job's cron schedule.
type Bootstrap struct {
	Queue struct {
		URL    string `yaml:"url"`
		Region string `yaml:"region"`
	} `yaml:"queue"`

	ObjectStore struct {
		Bucket string `yaml:"bucket"`
		Region string `yaml:"region"`
	} `yaml:"object_store"`

	Tables struct {
		FeedTasks  string `yaml:"feed_tasks"`
		Markers    string `yaml:"markers"`
		CrawlState string `yaml:"crawl_state"`
	} `yaml:"tables"`

	Vacuum struct {
		CronSchedule string `yaml:"cron_schedule"`
		Timezone     string `yaml:"timezone"`
	} `yaml:"vacuum"`
}

// LoadBootstrap reads and validates the bootstrap YAML file at path. The
// path is expected to come from a trusted source (a CLI flag or a
// hardcoded default), never from unsanitized user input.
func LoadBootstrap(path string) (*Bootstrap, error) {
	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap config: %w", err)
	}

	var cfg Bootstrap
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse bootstrap config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Bootstrap) Validate() error {
	if c.Queue.URL == "" {
		return fmt.Errorf("queue.url is required")
	}
	if c.ObjectStore.Bucket == "" {
		return fmt.Errorf("object_store.bucket is required")
	}
	if c.Tables.FeedTasks == "" {
		return fmt.Errorf("tables.feed_tasks is required")
	}
	if c.Tables.Markers == "" {
		return fmt.Errorf("tables.markers is required")
	}
	if c.Tables.CrawlState == "" {
		return fmt.Errorf("tables.crawl_state is required")
	}
	if c.Vacuum.CronSchedule == "" {
		return fmt.Errorf("vacuum.cron_schedule is required")
	}
	return nil
}
