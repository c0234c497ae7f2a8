// Package extractor turns a fetched page into structured article content.
// The primary path is an LLM-backed extractor (internal/extractor/LLMExtractor,
// adapted from internal/infra/summarizer.Claude); internal/extractor/fallback
// provides a readability-based extractor for when the LLM path is
// unavailable or circuit-broken.
package extractor

import (
	"context"
	"time"
)

// Article is the structured result of extracting content from a crawled
// page, grounded on core/models.py's NewsArticle.
type Article struct {
	Title       string
	Body        string
	URL         string
	PublishedAt *time.Time
	Keywords    []string
}

// Extractor turns raw HTML at url into an Article.
type Extractor interface {
	Extract(ctx context.Context, url string, html string) (Article, error)
}
