package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/consumer/router"
	"harvester/internal/infra/queue"
	"harvester/internal/jobs"
)

// testMetrics is shared across tests to avoid promauto's duplicate
// Prometheus collector registration panic.
var testMetrics = NewMetrics()

func TestComputeBackoffMatchesFormula(t *testing.T) {
	// compute_backoff_seconds(rc) = min(900, 2**min(rc, 8))
	assert.Equal(t, time.Second, ComputeBackoff(0))
	assert.Equal(t, 2*time.Second, ComputeBackoff(1))
	assert.Equal(t, 4*time.Second, ComputeBackoff(2))
	assert.Equal(t, 256*time.Second, ComputeBackoff(8))
	assert.Equal(t, 900*time.Second, ComputeBackoff(9))
	assert.Equal(t, 900*time.Second, ComputeBackoff(100))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Concurrency = 2
	cfg.WaitTime = 0
	cfg.VisibilityTimeout = time.Minute
	cfg.HeartbeatEvery = 10 * time.Millisecond
	return cfg
}

func envelopeBody(t *testing.T, id string) string {
	t.Helper()
	body, err := (&jobs.Envelope{Type: jobs.TypeCrawlSingleURL, ID: id, URL: "https://example.com/a"}).Marshal()
	require.NoError(t, err)
	return string(body)
}

func runEngineUntilDrained(t *testing.T, e *Engine, q *queue.MemoryQueue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		attrs, err := q.Attributes(context.Background())
		require.NoError(t, err)
		if attrs.ApproximateNumberOfMessages == 0 && attrs.ApproximateNumberOfMessagesInFlight == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("engine did not drain queue in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	e.Stop()
	<-done
}

func TestEngineSuccessDeletesMessage(t *testing.T) {
	q := queue.NewMemoryQueue("test")
	r := router.New()
	var handled []string
	r.Register(jobs.TypeCrawlSingleURL, func(ctx context.Context, e *jobs.Envelope) error {
		handled = append(handled, e.ID)
		return nil
	})

	require.NoError(t, q.Send(context.Background(), envelopeBody(t, "job-1"), nil, 0))

	engine := NewEngine(q, r, NewMemoryIdempotencyStore(time.Minute), testMetrics, nil, testConfig())
	runEngineUntilDrained(t, engine, q)

	assert.Equal(t, []string{"job-1"}, handled)
}

func TestEngineDuplicateIsSkipped(t *testing.T) {
	q := queue.NewMemoryQueue("test")
	r := router.New()
	var calls int
	r.Register(jobs.TypeCrawlSingleURL, func(ctx context.Context, e *jobs.Envelope) error {
		calls++
		return nil
	})

	idem := NewMemoryIdempotencyStore(time.Minute)
	idem.Claim("job-1") // pre-claim to simulate an already-processed duplicate

	require.NoError(t, q.Send(context.Background(), envelopeBody(t, "job-1"), nil, 0))

	engine := NewEngine(q, r, idem, testMetrics, nil, testConfig())
	runEngineUntilDrained(t, engine, q)

	assert.Equal(t, 0, calls, "duplicate message should never reach the handler")
}

func TestEngineNonRetryableLeavesMessageForRedrive(t *testing.T) {
	q := queue.NewMemoryQueue("test")
	r := router.New()
	r.Register(jobs.TypeCrawlSingleURL, func(ctx context.Context, e *jobs.Envelope) error {
		return router.NonRetryable(errors.New("permanently broken"))
	})

	require.NoError(t, q.Send(context.Background(), envelopeBody(t, "job-1"), nil, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	engine := NewEngine(q, r, NewMemoryIdempotencyStore(time.Minute), testMetrics, nil, testConfig())
	engine.Run(ctx)

	attrs, err := q.Attributes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, attrs.ApproximateNumberOfMessagesInFlight, "message should remain in flight, not deleted")
}

func TestEngineRetryableRequeuesWithBackoff(t *testing.T) {
	q := queue.NewMemoryQueue("test")
	r := router.New()
	r.Register(jobs.TypeCrawlSingleURL, func(ctx context.Context, e *jobs.Envelope) error {
		return router.Retryable(errors.New("transient"))
	})

	require.NoError(t, q.Send(context.Background(), envelopeBody(t, "job-1"), nil, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	engine := NewEngine(q, r, NewMemoryIdempotencyStore(time.Minute), testMetrics, nil, testConfig())
	engine.Run(ctx)

	// The original was deleted and a new delayed message was sent, invisible
	// until its backoff delay (here, 1s for a first receive) elapses.
	attrs, err := q.Attributes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, attrs.ApproximateNumberOfMessagesInFlight)
	assert.Equal(t, 1, attrs.ApproximateNumberOfMessages, "requeued message should be pending again, delayed by backoff")
}

func TestEnginePauseStopsNewReceives(t *testing.T) {
	q := queue.NewMemoryQueue("test")
	r := router.New()
	var calls int
	r.Register(jobs.TypeCrawlSingleURL, func(ctx context.Context, e *jobs.Envelope) error {
		calls++
		return nil
	})

	engine := NewEngine(q, r, NewMemoryIdempotencyStore(time.Minute), testMetrics, nil, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.Run(ctx)
	time.Sleep(20 * time.Millisecond)
	engine.Pause()
	assert.Equal(t, StatePaused, engine.State())

	require.NoError(t, q.Send(context.Background(), envelopeBody(t, "job-1"), nil, 0))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, calls, "paused engine must not process newly sent messages")

	engine.Resume()
	deadline := time.After(time.Second)
	for calls == 0 {
		select {
		case <-deadline:
			t.Fatal("resumed engine never processed the pending message")
		case <-time.After(5 * time.Millisecond):
		}
	}
	engine.Stop()
}
