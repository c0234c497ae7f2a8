package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/jobs"
)

func validBody(t *testing.T) []byte {
	t.Helper()
	body, err := (&jobs.Envelope{Type: jobs.TypeCrawlSingleURL, ID: "x", URL: "https://example.com/a"}).Marshal()
	require.NoError(t, err)
	return body
}

func TestDispatchUnknownTypeIsNonRetryable(t *testing.T) {
	r := New()
	_, err := r.Dispatch(context.Background(), validBody(t))
	var nre *NonRetryableError
	assert.ErrorAs(t, err, &nre)
}

func TestDispatchMalformedBodyIsNonRetryable(t *testing.T) {
	r := New()
	_, err := r.Dispatch(context.Background(), []byte("{not json"))
	var nre *NonRetryableError
	assert.ErrorAs(t, err, &nre)
}

func TestDispatchSuccessRunsHandler(t *testing.T) {
	r := New()
	called := false
	r.Register(jobs.TypeCrawlSingleURL, func(ctx context.Context, e *jobs.Envelope) error {
		called = true
		return nil
	})
	_, err := r.Dispatch(context.Background(), validBody(t))
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestDispatchPropagatesRetryableError(t *testing.T) {
	r := New()
	r.Register(jobs.TypeCrawlSingleURL, func(ctx context.Context, e *jobs.Envelope) error {
		return Retryable(errors.New("try again"))
	})
	_, err := r.Dispatch(context.Background(), validBody(t))
	var re *RetryableError
	assert.ErrorAs(t, err, &re)
}

func TestDispatchUnclassifiedErrorDefaultsRetryable(t *testing.T) {
	r := New()
	r.Register(jobs.TypeCrawlSingleURL, func(ctx context.Context, e *jobs.Envelope) error {
		return errors.New("boom")
	})
	_, err := r.Dispatch(context.Background(), validBody(t))
	var re *RetryableError
	assert.ErrorAs(t, err, &re)
}
