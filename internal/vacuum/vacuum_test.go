package vacuum

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harvester/internal/infra/state"
	"harvester/internal/jobs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceDeletesExpiredMarkersAndCrawlState(t *testing.T) {
	feedTasks := state.NewMemoryFeedTaskStore()
	require.NoError(t, feedTasks.Put(context.Background(), jobs.FeedTask{
		TaskID:     "feed-1",
		TaskType:   jobs.TaskTypeRSS,
		ConfigData: mustJSON(t, jobs.RSSConfig{FeedURL: "https://example.com/rss.xml"}),
	}))

	markers := state.NewMemoryMarkerStore()
	past := time.Now().Add(-time.Hour).Unix()
	future := time.Now().Add(time.Hour).Unix()
	require.NoError(t, markers.MarkProcessed(context.Background(), jobs.ProcessedURLMarker{
		TaskID: "feed-1", URLHash: "expired", TTL: past,
	}))
	require.NoError(t, markers.MarkProcessed(context.Background(), jobs.ProcessedURLMarker{
		TaskID: "feed-1", URLHash: "alive", TTL: future,
	}))

	crawlState := state.NewMemoryCrawlStateStore()
	require.NoError(t, crawlState.Put(context.Background(), jobs.CrawlStateRecord{URLHash: "expired-record", TTL: past}))
	require.NoError(t, crawlState.Put(context.Background(), jobs.CrawlStateRecord{URLHash: "alive-record", TTL: future}))

	metrics := NewMetrics()
	v := New(feedTasks, markers, crawlState, metrics, testLogger(), DefaultConfig())
	v.RunOnce(context.Background())

	_, err := crawlState.Get(context.Background(), "expired-record")
	require.ErrorIs(t, err, state.ErrNotFound)

	rec, err := crawlState.Get(context.Background(), "alive-record")
	require.NoError(t, err)
	require.Equal(t, "alive-record", rec.URLHash)
}

func mustJSON(t *testing.T, cfg jobs.RSSConfig) []byte {
	t.Helper()
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	return b
}
