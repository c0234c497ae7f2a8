package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryQueue is an in-memory Queue used by consumer/scheduler tests. It
// reproduces SQS's at-least-once, visibility-timeout-gated delivery closely
// enough to exercise retry and heartbeat logic without a live queue.
type MemoryQueue struct {
	mu           sync.Mutex
	nextID       int
	pending      []*memoryMessage
	inFlight     map[string]*memoryMessage
	attrs        Attributes
	Now          func() time.Time
}

type memoryMessage struct {
	msg           Message
	visibleAt     time.Time
	receiveCount  int
}

// NewMemoryQueue builds an empty in-memory queue.
func NewMemoryQueue(queueName string) *MemoryQueue {
	return &MemoryQueue{
		inFlight: make(map[string]*memoryMessage),
		attrs:    Attributes{QueueName: queueName, QueueURL: "memory://" + queueName},
		Now:      time.Now,
	}
}

func (q *MemoryQueue) Send(_ context.Context, body string, attrs map[string]string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	id := fmt.Sprintf("msg-%d", q.nextID)
	q.pending = append(q.pending, &memoryMessage{
		msg: Message{
			ID:                id,
			Body:              body,
			ReceiptHandle:     id,
			MessageAttributes: attrs,
		},
		visibleAt: q.Now().Add(delay),
	})
	return nil
}

func (q *MemoryQueue) SendBatch(ctx context.Context, entries []SendEntry) error {
	for _, e := range entries {
		if err := q.Send(ctx, e.Body, e.MessageAttributes, e.Delay); err != nil {
			return err
		}
	}
	return nil
}

func (q *MemoryQueue) Receive(_ context.Context, maxNumber int, _ time.Duration, visibilityTimeout time.Duration) ([]Message, error) {
	maxNumber = ClampMaxNumber(maxNumber)

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.Now()
	var out []Message
	var remaining []*memoryMessage
	for _, m := range q.pending {
		if len(out) >= maxNumber || now.Before(m.visibleAt) {
			remaining = append(remaining, m)
			continue
		}
		m.receiveCount++
		m.msg.Attributes = map[string]string{
			"ApproximateReceiveCount": fmt.Sprintf("%d", m.receiveCount),
		}
		m.visibleAt = now.Add(visibilityTimeout)
		q.inFlight[m.msg.ReceiptHandle] = m
		out = append(out, m.msg)
	}
	q.pending = remaining
	return out, nil
}

func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, receiptHandle)
	return nil
}

func (q *MemoryQueue) DeleteBatch(ctx context.Context, receiptHandles []string) error {
	for _, rh := range receiptHandles {
		if err := q.Delete(ctx, rh); err != nil {
			return err
		}
	}
	return nil
}

func (q *MemoryQueue) ExtendVisibility(_ context.Context, receiptHandle string, timeout time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.inFlight[receiptHandle]
	if !ok {
		return fmt.Errorf("memory queue: unknown receipt handle %q", receiptHandle)
	}
	m.visibleAt = q.Now().Add(timeout)
	return nil
}

func (q *MemoryQueue) Attributes(_ context.Context) (Attributes, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	attrs := q.attrs
	attrs.ApproximateNumberOfMessages = len(q.pending)
	attrs.ApproximateNumberOfMessagesInFlight = len(q.inFlight)
	return attrs, nil
}

// Requeue returns an in-flight message to pending, visible after delay.
// Used by tests to simulate a visibility timeout expiry without waiting.
func (q *MemoryQueue) Requeue(receiptHandle string, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.inFlight[receiptHandle]
	if !ok {
		return
	}
	delete(q.inFlight, receiptHandle)
	m.visibleAt = q.Now().Add(delay)
	q.pending = append(q.pending, m)
}
