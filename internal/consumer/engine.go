package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"harvester/internal/consumer/router"
	"harvester/internal/infra/queue"
	"harvester/internal/jobs"
)

// State is the lifecycle state of an Engine, mirroring
// core/sqs_consumer.py's running/paused booleans as an explicit enum.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// maxBackoffSeconds and receiveCountCap implement message_processor.py's
// compute_backoff_seconds(rc) = min(900, 2**min(rc, 8)).
const (
	maxBackoffSeconds = 900
	receiveCountCap   = 8
)

// ComputeBackoff returns the redelivery delay for a message that has been
// received receiveCount times.
func ComputeBackoff(receiveCount int) time.Duration {
	exp := receiveCount
	if exp > receiveCountCap {
		exp = receiveCountCap
	}
	if exp < 0 {
		exp = 0
	}
	seconds := 1 << uint(exp)
	if seconds > maxBackoffSeconds {
		seconds = maxBackoffSeconds
	}
	return time.Duration(seconds) * time.Second
}

// Status reports the engine's current lifecycle and queue depth, surfaced
// by the /sqs/status control-surface endpoint, mirroring
// SQSConsumer.get_status.
type Status struct {
	State          string
	QueueAttributes queue.Attributes
}

// Engine is the long-polling consumer: it receives messages, enforces a
// concurrency cap, sends visibility heartbeats, dedups via an
// IdempotencyStore, and disposes of each message via delete / re-enqueue
// with backoff / leave-for-DLQ depending on the handler's verdict.
type Engine struct {
	queue       queue.Queue
	router      *router.Router
	idempotency IdempotencyStore
	metrics     *Metrics
	logger      *slog.Logger
	cfg         Config

	sem *semaphore.Weighted

	mu      sync.Mutex
	state   State
	pauseCh chan struct{}

	wg sync.WaitGroup
}

// NewEngine builds a consumer engine. Register handlers on r before
// calling Run.
func NewEngine(q queue.Queue, r *router.Router, idem IdempotencyStore, metrics *Metrics, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		queue:       q,
		router:      r,
		idempotency: idem,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		sem:         semaphore.NewWeighted(int64(cfg.Concurrency)),
		state:       StateIdle,
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pause stops new messages from being received; in-flight messages finish
// normally.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		e.state = StatePaused
		e.pauseCh = make(chan struct{})
	}
}

// Resume allows message receipt to continue after Pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePaused {
		e.state = StateRunning
		close(e.pauseCh)
		e.pauseCh = nil
	}
}

// Status returns the engine's lifecycle state and current queue attributes.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	attrs, err := e.queue.Attributes(ctx)
	return Status{State: e.State().String(), QueueAttributes: attrs}, err
}

// Run executes the receive loop until ctx is cancelled or Stop is called.
// It blocks until every in-flight handler has finished.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()

	defer func() {
		e.wg.Wait()
		e.mu.Lock()
		e.state = StateStopped
		e.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		e.mu.Lock()
		paused := e.state == StatePaused
		pauseCh := e.pauseCh
		stopping := e.state == StateStopping
		e.mu.Unlock()
		if stopping {
			return
		}
		if paused {
			select {
			case <-ctx.Done():
				return
			case <-pauseCh:
			}
			continue
		}

		messages, err := e.queue.Receive(ctx, e.cfg.MaxNumberOfMessages, e.cfg.WaitTime, e.cfg.VisibilityTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("receive failed", slog.String("error", err.Error()))
			continue
		}

		for _, msg := range messages {
			if err := e.sem.Acquire(ctx, 1); err != nil {
				return
			}
			e.metrics.MessagesReceivedTotal.Inc()
			e.metrics.InFlightMessages.Inc()
			e.wg.Add(1)
			go func(m queue.Message) {
				defer e.wg.Done()
				defer e.sem.Release(1)
				defer e.metrics.InFlightMessages.Dec()
				e.handle(ctx, m)
			}(msg)
		}
	}
}

// Stop requests the receive loop to exit after in-flight handlers drain.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StatePaused && e.pauseCh != nil {
		close(e.pauseCh)
		e.pauseCh = nil
	}
	e.state = StateStopping
	e.mu.Unlock()
}

func (e *Engine) handle(ctx context.Context, msg queue.Message) {
	start := time.Now()
	defer func() {
		e.metrics.HandlerDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	heartbeatDone := make(chan struct{})
	if e.cfg.HeartbeatEvery > 0 {
		e.wg.Add(1)
		go e.heartbeat(ctx, msg.ReceiptHandle, heartbeatDone)
	}
	defer close(heartbeatDone)

	var envelopeID string
	if env, parseErr := jobs.ParseEnvelope([]byte(msg.Body)); parseErr == nil {
		envelopeID = env.ID
	}
	if envelopeID == "" {
		envelopeID = msg.ID
	}

	if !e.idempotency.Claim(envelopeID) {
		e.logger.Info("skipping duplicate message", slog.String("envelope_id", envelopeID))
		e.metrics.DuplicatesSkippedTotal.Inc()
		e.deleteMessage(ctx, msg.ReceiptHandle, "duplicate")
		return
	}

	envelope, err := e.router.Dispatch(ctx, []byte(msg.Body))
	switch {
	case err == nil:
		e.deleteMessage(ctx, msg.ReceiptHandle, "success")

	case router.IsNonRetryable(err):
		// Leave the message alone: the queue's own redrive policy moves
		// it to the DLQ once ApproximateReceiveCount exceeds maxReceiveCount.
		e.logger.Warn("non-retryable failure, leaving for redrive policy",
			slog.String("error", err.Error()))

	default:
		e.logger.Warn("retryable failure, re-enqueueing with backoff",
			slog.String("error", err.Error()))
		e.requeueWithBackoff(ctx, msg, envelope)
	}
}

func (e *Engine) deleteMessage(ctx context.Context, receiptHandle, outcome string) {
	if err := e.queue.Delete(ctx, receiptHandle); err != nil {
		e.logger.Error("failed to delete message", slog.String("error", err.Error()))
		return
	}
	e.metrics.MessagesDeletedTotal.WithLabelValues(outcome).Inc()
}

func (e *Engine) requeueWithBackoff(ctx context.Context, msg queue.Message, envelope *jobs.Envelope) {
	delay := ComputeBackoff(msg.ReceiveCount())

	body := msg.Body
	if envelope != nil {
		retried := envelope.WithRetry()
		if marshaled, err := retried.Marshal(); err == nil {
			body = string(marshaled)
		}
	}

	if err := e.queue.Send(ctx, body, msg.MessageAttributes, delay); err != nil {
		e.logger.Error("failed to resend message for retry, extending visibility instead",
			slog.String("error", err.Error()))
		if extErr := e.queue.ExtendVisibility(ctx, msg.ReceiptHandle, delay); extErr != nil {
			e.logger.Error("failed to extend visibility as retry fallback", slog.String("error", extErr.Error()))
		}
		e.metrics.MessagesRequeuedTotal.WithLabelValues("extend_visibility_fallback").Inc()
		return
	}

	e.deleteMessage(ctx, msg.ReceiptHandle, "retry")
	e.metrics.MessagesRequeuedTotal.WithLabelValues("resent").Inc()
}

func (e *Engine) heartbeat(ctx context.Context, receiptHandle string, done <-chan struct{}) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.HeartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.queue.ExtendVisibility(ctx, receiptHandle, e.cfg.VisibilityTimeout); err != nil {
				e.logger.Warn("heartbeat failed to extend visibility", slog.String("error", err.Error()))
				return
			}
			e.metrics.HeartbeatsSentTotal.Inc()
		}
	}
}
