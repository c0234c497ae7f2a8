package scheduler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/infra/queue"
	"harvester/internal/infra/state"
	"harvester/internal/jobs"
)

// testMetrics is shared across tests to avoid promauto's duplicate
// Prometheus collector registration panic.
var testMetrics = NewMetrics()

type stubFetcher struct {
	items map[string][]FeedItem
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, feedURL string) ([]FeedItem, error) {
	f.calls++
	return f.items[feedURL], nil
}

func newTestScheduler(t *testing.T, fetcher Fetcher) (*Scheduler, *state.MemoryFeedTaskStore, *state.MemoryMarkerStore, *queue.MemoryQueue) {
	t.Helper()
	feedTasks := state.NewMemoryFeedTaskStore()
	markers := state.NewMemoryMarkerStore()
	q := queue.NewMemoryQueue("test-queue")
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	s := New(feedTasks, markers, q, fetcher, testMetrics, logger, DefaultConfig())
	return s, feedTasks, markers, q
}

func rssTask(t *testing.T, taskID, feedURL string, maxItems int) jobs.FeedTask {
	t.Helper()
	cfg, err := json.Marshal(jobs.RSSConfig{FeedURL: feedURL, MaxItems: maxItems})
	require.NoError(t, err)
	return jobs.FeedTask{TaskID: taskID, TaskType: jobs.TaskTypeRSS, ConfigData: cfg}
}

func TestRunCycleEnqueuesNewItemsAndWritesMarkers(t *testing.T) {
	fetcher := &stubFetcher{items: map[string][]FeedItem{
		"https://f/": {{Link: "https://example.com/u1"}, {Link: "https://example.com/u2"}},
	}}
	s, feedTasks, markers, q := newTestScheduler(t, fetcher)
	require.NoError(t, feedTasks.Put(context.Background(), rssTask(t, "task-1", "https://f/", 0)))

	require.NoError(t, s.RunCycle(context.Background()))

	attrs, err := q.Attributes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, attrs.ApproximateNumberOfMessages)

	for _, u := range []string{"https://example.com/u1", "https://example.com/u2"} {
		processed, err := markers.IsProcessed(context.Background(), "task-1", u)
		require.NoError(t, err)
		assert.True(t, processed)
	}
}

func TestRunCycleTwiceProducesNoAdditionalEnqueues(t *testing.T) {
	fetcher := &stubFetcher{items: map[string][]FeedItem{
		"https://f/": {{Link: "https://example.com/u1"}},
	}}
	s, feedTasks, _, q := newTestScheduler(t, fetcher)
	require.NoError(t, feedTasks.Put(context.Background(), rssTask(t, "task-1", "https://f/", 0)))

	require.NoError(t, s.RunCycle(context.Background()))
	require.NoError(t, s.RunCycle(context.Background()))

	attrs, err := q.Attributes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, attrs.ApproximateNumberOfMessages)
}

func TestRunCycleTruncatesToMaxItems(t *testing.T) {
	fetcher := &stubFetcher{items: map[string][]FeedItem{
		"https://f/": {
			{Link: "https://example.com/u1"},
			{Link: "https://example.com/u2"},
			{Link: "https://example.com/u3"},
		},
	}}
	s, feedTasks, markers, q := newTestScheduler(t, fetcher)
	require.NoError(t, feedTasks.Put(context.Background(), rssTask(t, "task-1", "https://f/", 2)))

	require.NoError(t, s.RunCycle(context.Background()))

	attrs, err := q.Attributes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, attrs.ApproximateNumberOfMessages)

	processed, err := markers.IsProcessed(context.Background(), "task-1", "https://example.com/u3")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRunCycleSkipsTaskOnFeedFetchError(t *testing.T) {
	fetcher := &stubFetcher{items: map[string][]FeedItem{}}
	s, feedTasks, _, _ := newTestScheduler(t, fetcher)
	require.NoError(t, feedTasks.Put(context.Background(), rssTask(t, "empty-task", "https://missing/", 0)))

	err := s.RunCycle(context.Background())
	assert.NoError(t, err)
}
