package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/jobs"
)

func TestMemoryFeedTaskStoreListByType(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFeedTaskStore()

	require.NoError(t, s.Put(ctx, jobs.FeedTask{TaskID: "a", TaskType: jobs.TaskTypeRSS}))
	require.NoError(t, s.Put(ctx, jobs.FeedTask{TaskID: "b", TaskType: jobs.TaskTypeSite}))

	rss, err := s.ListByType(ctx, jobs.TaskTypeRSS)
	require.NoError(t, err)
	require.Len(t, rss, 1)
	assert.Equal(t, "a", rss[0].TaskID)

	_, err = s.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestMemoryFeedTaskStoreCreateRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFeedTaskStore()

	require.NoError(t, s.Create(ctx, jobs.FeedTask{TaskID: "dup", TaskType: jobs.TaskTypeRSS}))

	err := s.Create(ctx, jobs.FeedTask{TaskID: "dup", TaskType: jobs.TaskTypeRSS})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := s.Get(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskTypeRSS, got.TaskType)
}

func TestMemoryMarkerStoreIsProcessedAndExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryMarkerStore()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ok, err := s.IsProcessed(ctx, "task-1", "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, ok)

	marker := jobs.NewProcessedURLMarker("task-1", "https://example.com/a", now, 60)
	require.NoError(t, s.MarkProcessed(ctx, marker))

	ok, err = s.IsProcessed(ctx, "task-1", "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := s.DeleteExpired(ctx, "task-1", now.Unix()+120)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	ok, err = s.IsProcessed(ctx, "task-1", "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCrawlStateStorePutGetExpire(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCrawlStateStore()

	rec := jobs.CrawlStateRecord{URLHash: "abc", URL: "https://example.com/a", Success: true, TTL: 100}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.Success)

	removed, err := s.DeleteExpired(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.Get(ctx, "abc")
	assert.Error(t, err)
}
