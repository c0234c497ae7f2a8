// Package credential runs a background token refresh loop for the
// Bedrock-backed LLM extractor, grounded on
// harvester/app/bedrock_token.py's BedrockToken.
package credential

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Token is a refreshable bearer credential with an expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Provider fetches a fresh Token, e.g. from Bedrock's runtime API key
// issuance or an STS-backed signer.
type Provider func(ctx context.Context) (Token, error)

// errorRetryDelay is how long Refresher waits after a failed refresh
// before trying again, keeping the previous token live in the meantime
// (bedrock_token.py: "except Exception: await asyncio.sleep(300)").
const errorRetryDelay = 300 * time.Second

// RefreshCadence returns the delay before the next refresh for a token
// with the given time-to-live, following bedrock_token.py's
// REFRESH_SECONDS = floor(expiry - expiry/6) formula: refresh at 5/6 of
// the token's lifetime so a refresh failure still leaves margin before
// the credential actually expires.
func RefreshCadence(ttl time.Duration) time.Duration {
	seconds := ttl.Seconds()
	refreshSeconds := math.Floor(seconds - seconds/6)
	if refreshSeconds < 0 {
		refreshSeconds = 0
	}
	return time.Duration(refreshSeconds) * time.Second
}

// Refresher holds the most recently fetched Token and keeps it current via
// a background loop, lazily fetching on first Token() call.
type Refresher struct {
	provide Provider
	logger  *slog.Logger

	mu      sync.RWMutex
	current Token

	stopOnce sync.Once
	done     chan struct{}
}

// New builds a Refresher around provide. Start must be called to begin the
// background refresh loop; Token works even before Start by lazily
// fetching the first credential.
func New(provide Provider, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		provide: provide,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Token returns the current credential, fetching it synchronously on the
// very first call if the background loop has not started or has not yet
// completed its initial fetch.
func (r *Refresher) Token(ctx context.Context) (Token, error) {
	r.mu.RLock()
	current := r.current
	r.mu.RUnlock()
	if current.Value != "" {
		return current, nil
	}

	tok, err := r.provide(ctx)
	if err != nil {
		return Token{}, err
	}
	r.set(tok)
	return tok, nil
}

func (r *Refresher) set(tok Token) {
	r.mu.Lock()
	r.current = tok
	r.mu.Unlock()
}

// Start runs the refresh loop until ctx is cancelled or Stop is called.
// Call it from a single goroutine; it returns once the loop exits.
func (r *Refresher) Start(ctx context.Context) {
	for {
		tok, err := r.provide(ctx)
		var delay time.Duration
		if err != nil {
			r.logger.Error("credential refresh failed, keeping previous token",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", errorRetryDelay))
			delay = errorRetryDelay
		} else {
			r.set(tok)
			delay = RefreshCadence(time.Until(tok.ExpiresAt))
			r.logger.Info("credential refreshed",
				slog.Time("expires_at", tok.ExpiresAt),
				slog.Duration("next_refresh_in", delay))
		}

		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-time.After(delay):
		}
	}
}

// Stop signals a running Start loop to exit.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}
