package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"harvester/internal/resilience/circuitbreaker"
	"harvester/internal/resilience/retry"
)

// BedrockConfig controls the short-lived credential issued to the LLM
// extractor for bedrock/{model} invocations.
type BedrockConfig struct {
	ModelID string
	TTL     time.Duration
}

// TokenIssuer mints a bearer Token for Bedrock model invocation, e.g. by
// wrapping an STS AssumeRole call or a pre-provisioned API key rotation
// endpoint. It is injected so BedrockProvider stays testable without a
// live AWS account.
type TokenIssuer func(ctx context.Context, modelID string) (string, time.Time, error)

// DefaultTokenIssuer derives a TokenIssuer from the credentials backing an
// existing bedrockruntime.Client, so the extractor's refresher stays bound
// to the same IAM identity and region the client was constructed with
// rather than re-resolving credentials independently.
func DefaultTokenIssuer(client *bedrockruntime.Client) TokenIssuer {
	return func(ctx context.Context, modelID string) (string, time.Time, error) {
		creds, err := client.Options().Credentials.Retrieve(ctx)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("bedrock: retrieve credentials: %w", err)
		}
		expires := creds.Expires
		if expires.IsZero() {
			expires = time.Now().Add(time.Hour)
		}
		return creds.SessionToken, expires, nil
	}
}

// NewBedrockProvider builds a Provider that issues a Token via issue and
// wraps it with the circuit breaker and retry policy the teacher applies
// to every outbound AI call (internal/infra/summarizer.Claude).
func NewBedrockProvider(issue TokenIssuer, cfg BedrockConfig) Provider {
	cb := circuitbreaker.New(circuitbreaker.BedrockTokenConfig())
	retryCfg := retry.AIAPIConfig()

	return func(ctx context.Context) (Token, error) {
		var tok Token
		err := retry.WithBackoff(ctx, retryCfg, func() error {
			_, err := cb.Execute(func() (any, error) {
				value, expiresAt, err := issue(ctx, cfg.ModelID)
				if err != nil {
					return nil, fmt.Errorf("bedrock: issue token: %w", err)
				}
				if cfg.TTL > 0 {
					expiresAt = time.Now().Add(cfg.TTL)
				}
				tok = Token{Value: value, ExpiresAt: expiresAt}
				return nil, nil
			})
			return err
		})
		return tok, err
	}
}
