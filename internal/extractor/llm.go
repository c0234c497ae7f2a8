package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"harvester/internal/credential"
	"harvester/internal/resilience/circuitbreaker"
	"harvester/internal/resilience/retry"
	"harvester/internal/utils/text"
)

// LLMConfig holds extraction-specific tuning, mirroring
// internal/infra/summarizer.ClaudeConfig's env-driven loading.
type LLMConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultLLMConfig mirrors LoadClaudeConfig's defaults, retargeted at
// extraction instead of summarization.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:     string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens: 2048,
		Timeout:   60 * time.Second,
	}
}

// LLMExtractor implements Extractor using Anthropic's Claude API, adapted
// from internal/infra/summarizer.Claude: same circuit breaker, retry, and
// request-id tracing pattern, producing structured article fields instead
// of a prose summary. A credential.Refresher supplies the bearer token the
// way the Python original's BedrockToken fed crawler.py's bedrock/{model}
// provider string.
type LLMExtractor struct {
	client         anthropic.Client
	credentials    *credential.Refresher
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         LLMConfig
}

// NewLLMExtractor builds an extractor with a static API key, for
// deployments that don't route through the Bedrock credential refresher.
func NewLLMExtractor(apiKey string) *LLMExtractor {
	return &LLMExtractor{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(extractorBreakerConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         DefaultLLMConfig(),
	}
}

// NewLLMExtractorWithCredentials builds an extractor whose bearer token is
// refreshed in the background by credentials, for Bedrock-fronted deployments.
func NewLLMExtractorWithCredentials(credentials *credential.Refresher) *LLMExtractor {
	return &LLMExtractor{
		credentials:    credentials,
		circuitBreaker: circuitbreaker.New(extractorBreakerConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         DefaultLLMConfig(),
	}
}

func extractorBreakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.ClaudeAPIConfig()
	cfg.Name = "llm-extractor"
	return cfg
}

// extractionResult is the JSON shape the prompt instructs the model to
// return, matching harvester/app/crawler.py's extraction instruction
// ("plain Latin output, keywords, published_at").
type extractionResult struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	PublishedAt string   `json:"published_at,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

func (e *LLMExtractor) Extract(ctx context.Context, url string, html string) (Article, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	var result Article
	retryErr := retry.WithBackoff(ctx, e.retryConfig, func() error {
		cbResult, err := e.circuitBreaker.Execute(func() (interface{}, error) {
			return e.doExtract(ctx, url, html)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("llm extractor circuit breaker open, request rejected",
					slog.String("service", "llm-extractor"),
					slog.String("state", e.circuitBreaker.State().String()))
				return fmt.Errorf("llm extractor unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(Article)
		return nil
	})
	if retryErr != nil {
		return Article{}, fmt.Errorf("llm extraction failed after retries: %w", retryErr)
	}
	return result, nil
}

const maxExtractionChars = 10000

func (e *LLMExtractor) buildPrompt(url, truncatedHTML string) string {
	return fmt.Sprintf(
		`Extract the article content from this page at %s. Respond with a single JSON object
with keys "title", "body", "published_at" (ISO 8601, or empty if unknown), and
"keywords" (a short array of topical terms). Write title and body in plain
Latin-script text regardless of the source language. Page content:
%s`, url, truncatedHTML)
}

func (e *LLMExtractor) doExtract(ctx context.Context, url, html string) (Article, error) {
	requestID := uuid.New().String()

	truncated := html
	if len(html) > maxExtractionChars {
		truncated = html[:maxExtractionChars]
		slog.Warn("html truncated for llm extractor",
			slog.String("request_id", requestID),
			slog.Int("original_length", len(html)),
			slog.Int("truncated_length", len(truncated)))
	}

	prompt := e.buildPrompt(url, truncated)

	client := e.client
	if e.credentials != nil {
		tok, err := e.credentials.Token(ctx)
		if err != nil {
			return Article{}, fmt.Errorf("llm extractor: refresh credentials: %w", err)
		}
		client = anthropic.NewClient(option.WithAPIKey(tok.Value))
	}

	slog.InfoContext(ctx, "starting extraction",
		slog.String("request_id", requestID),
		slog.String("url", url),
		slog.Int("input_length", text.CountRunes(prompt)))

	start := time.Now()
	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.config.Model),
		MaxTokens: int64(e.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "extraction failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return Article{}, fmt.Errorf("llm extractor api error: %w", err)
	}
	if len(message.Content) == 0 {
		return Article{}, fmt.Errorf("llm extractor returned empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return Article{}, fmt.Errorf("llm extractor returned unexpected response type")
	}

	var parsed extractionResult
	if err := json.Unmarshal([]byte(textBlock.Text), &parsed); err != nil {
		return Article{}, fmt.Errorf("llm extractor returned non-JSON response: %w", err)
	}

	article := Article{
		Title:    parsed.Title,
		Body:     parsed.Body,
		URL:      url,
		Keywords: parsed.Keywords,
	}
	if parsed.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339, parsed.PublishedAt); err == nil {
			article.PublishedAt = &ts
		}
	}

	slog.InfoContext(ctx, "extraction completed",
		slog.String("request_id", requestID),
		slog.Int("body_length", text.CountRunes(article.Body)),
		slog.Duration("duration", duration))

	return article, nil
}
