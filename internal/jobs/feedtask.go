package jobs

import (
	"encoding/json"
	"errors"
	"time"
)

// Feed task kinds (§3). Only "rss" is exercised by the scheduler;
// "site" and "sitemap" are reserved for future task types.
const (
	TaskTypeRSS     = "rss"
	TaskTypeSite    = "site"
	TaskTypeSitemap = "sitemap"
)

// RSSConfig is the config_data shape for task_type=rss.
type RSSConfig struct {
	FeedURL       string `json:"feed_url"`
	MaxItems      int    `json:"max_items,omitempty"`
	ItemLinkField string `json:"item_link_field,omitempty"`
	SavePDF       bool   `json:"save_pdf"`
}

// LinkField returns the configured link field, defaulting to "link" (§3).
func (c RSSConfig) LinkField() string {
	if c.ItemLinkField == "" {
		return "link"
	}
	return c.ItemLinkField
}

// FeedTask is the persisted configuration for a scheduled crawl source (§3).
type FeedTask struct {
	TaskID     string          `json:"task_id"`
	TaskType   string          `json:"task_type"`
	Tags       []string        `json:"tags,omitempty"`
	ConfigData json.RawMessage `json:"config_data"`
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Validate enforces the one invariant spec.md names explicitly for feed
// tasks beyond table-level uniqueness: a non-empty task id and a known type.
func (t *FeedTask) Validate() error {
	if t.TaskID == "" {
		return errors.New("feed task: task_id is required")
	}
	switch t.TaskType {
	case TaskTypeRSS, TaskTypeSite, TaskTypeSitemap:
	default:
		return errors.New("feed task: unknown task_type")
	}
	return nil
}

// RSSConfig decodes ConfigData as an RSSConfig. Callers should only call
// this when TaskType == TaskTypeRSS.
func (t *FeedTask) RSSConfig() (RSSConfig, error) {
	var cfg RSSConfig
	if len(t.ConfigData) == 0 {
		return cfg, errors.New("feed task: config_data is empty")
	}
	if err := json.Unmarshal(t.ConfigData, &cfg); err != nil {
		return cfg, err
	}
	if cfg.FeedURL == "" {
		return cfg, errors.New("feed task: missing feed_url in config_data")
	}
	return cfg, nil
}
