// Package state defines the persistence contracts for feed tasks,
// processed-URL markers, and crawl-state records (spec §3, §4.6), plus a
// DynamoDB-backed implementation and an in-memory double used by tests.
package state

import (
	"context"
	"errors"

	"harvester/internal/jobs"
)

// ErrNotFound is returned by FeedTaskStore.Get and CrawlStateStore.Get
// when no record exists for the given key, wrapped with store-specific
// context so callers can still log the underlying detail.
var ErrNotFound = errors.New("state: not found")

// ErrAlreadyExists is returned by FeedTaskStore.Create when a task with
// the same task_id already exists. Implementations must detect this
// atomically (a conditional write), not via a separate Get, so that two
// concurrent Create calls for the same task_id can never both succeed.
var ErrAlreadyExists = errors.New("state: already exists")

// FeedTaskStore persists scheduled crawl-source configuration.
type FeedTaskStore interface {
	// ListByType returns every feed task with the given task_type. Callers
	// must tolerate an unbounded number of tasks; implementations paginate
	// internally.
	ListByType(ctx context.Context, taskType string) ([]jobs.FeedTask, error)
	Get(ctx context.Context, taskID string) (jobs.FeedTask, error)
	Put(ctx context.Context, task jobs.FeedTask) error
	// Create inserts task only if no task with the same task_id already
	// exists, returning ErrAlreadyExists otherwise. Unlike a Get-then-Put
	// pair this is atomic: implementations must use a conditional write
	// rather than two round trips.
	Create(ctx context.Context, task jobs.FeedTask) error
}

// MarkerStore tracks which URLs have already been enqueued for a feed
// task, keyed by (task_id, url_hash).
type MarkerStore interface {
	IsProcessed(ctx context.Context, taskID, url string) (bool, error)
	MarkProcessed(ctx context.Context, marker jobs.ProcessedURLMarker) error
	// DeleteExpired removes markers whose TTL has passed, returning the
	// count removed. Used by the vacuum job on adapters without native
	// TTL expiry (e.g. the in-memory double).
	DeleteExpired(ctx context.Context, taskID string, now int64) (int, error)
}

// CrawlStateStore indexes the outcome of each URL crawl.
type CrawlStateStore interface {
	Put(ctx context.Context, record jobs.CrawlStateRecord) error
	Get(ctx context.Context, urlHash string) (jobs.CrawlStateRecord, error)
	DeleteExpired(ctx context.Context, now int64) (int, error)
}
