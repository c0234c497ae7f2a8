package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueSendReceiveDelete(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue("test")

	require.NoError(t, q.Send(ctx, `{"id":"a"}`, map[string]string{"MessageType": "crawl-single-url"}, 0))

	msgs, err := q.Receive(ctx, 10, 0, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, `{"id":"a"}`, msgs[0].Body)
	assert.Equal(t, 1, msgs[0].ReceiveCount())

	require.NoError(t, q.Delete(ctx, msgs[0].ReceiptHandle))

	attrs, err := q.Attributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, attrs.ApproximateNumberOfMessages)
	assert.Equal(t, 0, attrs.ApproximateNumberOfMessagesInFlight)
}

func TestMemoryQueueVisibilityHidesInFlightMessage(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue("test")
	require.NoError(t, q.Send(ctx, "body", nil, 0))

	msgs, err := q.Receive(ctx, 10, 0, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	again, err := q.Receive(ctx, 10, 0, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMemoryQueueRequeueMakesMessageVisibleAgain(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue("test")
	require.NoError(t, q.Send(ctx, "body", nil, 0))

	msgs, err := q.Receive(ctx, 10, 0, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	q.Requeue(msgs[0].ReceiptHandle, 0)

	again, err := q.Receive(ctx, 10, 0, time.Minute)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 2, again[0].ReceiveCount())
}

func TestMemoryQueueDelaySuppressesVisibility(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue("test")
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q.Now = func() time.Time { return fixed }

	require.NoError(t, q.Send(ctx, "body", nil, 10*time.Second))

	msgs, err := q.Receive(ctx, 10, 0, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	q.Now = func() time.Time { return fixed.Add(11 * time.Second) }
	msgs, err = q.Receive(ctx, 10, 0, time.Minute)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestClampMaxNumberAndWaitTime(t *testing.T) {
	assert.Equal(t, 1, ClampMaxNumber(0))
	assert.Equal(t, 1, ClampMaxNumber(-5))
	assert.Equal(t, 10, ClampMaxNumber(50))
	assert.Equal(t, 7, ClampMaxNumber(7))

	assert.Equal(t, time.Duration(0), ClampWaitTime(-time.Second))
	assert.Equal(t, 20*time.Second, ClampWaitTime(60*time.Second))
	assert.Equal(t, 5*time.Second, ClampWaitTime(5*time.Second))
}
