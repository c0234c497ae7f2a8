package router

import (
	"context"
	"errors"
	"fmt"

	"harvester/internal/jobs"
)

// Handler processes one validated envelope. It must return a
// RetryableError or NonRetryableError on failure so Router's caller knows
// how to dispose of the underlying queue message; any other error is
// treated as retryable.
type Handler func(ctx context.Context, envelope *jobs.Envelope) error

// Router dispatches envelopes by Type to a registered Handler, mirroring
// HarvesterSQSConsumer's `self.handlers = {"crawl-single-url": ...}` map.
type Router struct {
	handlers map[string]Handler
}

// New builds an empty Router. Register handlers with Register.
func New() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register binds a Handler to an envelope type. Registering the same type
// twice replaces the previous handler.
func (r *Router) Register(envelopeType string, h Handler) {
	r.handlers[envelopeType] = h
}

// Dispatch parses and validates body, then invokes the handler registered
// for its type. Parse and validation failures, and unknown types, are
// NonRetryableError per message_processor.py's process_message: a
// malformed message can never succeed no matter how many times it's
// retried.
//
// The returned envelope reflects any in-place mutation the handler made
// before failing (e.g. bumping RetryCount) so the caller can re-enqueue it
// as-is.
func (r *Router) Dispatch(ctx context.Context, body []byte) (*jobs.Envelope, error) {
	envelope, err := jobs.ParseEnvelope(body)
	if err != nil {
		return nil, NonRetryable(fmt.Errorf("parse envelope: %w", err))
	}
	if err := envelope.Validate(); err != nil {
		return envelope, NonRetryable(fmt.Errorf("validate envelope: %w", err))
	}

	handler, ok := r.handlers[envelope.Type]
	if !ok {
		return envelope, NonRetryable(fmt.Errorf("no handler registered for type %q", envelope.Type))
	}

	if err := handler(ctx, envelope); err != nil {
		var nonRetryable *NonRetryableError
		if errors.As(err, &nonRetryable) {
			return envelope, err
		}
		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			// Unclassified handler error: default to retryable so a
			// transient failure (network blip, downstream 5xx) gets
			// another attempt, subject to the same retry budget below.
			err = Retryable(err)
		}
		// spec §4.2: a message that has already been retried once
		// (incoming retry_count >= 1) gets no further retries on a
		// second failure, no matter what the handler classified it as.
		if envelope.RetryCount >= 1 {
			return envelope, NonRetryable(fmt.Errorf("retry budget exhausted after %d retries: %w", envelope.RetryCount, err))
		}
		return envelope, err
	}
	return envelope, nil
}
