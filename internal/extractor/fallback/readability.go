// Package fallback implements a non-LLM Extractor using Mozilla's
// Readability algorithm, adapted from internal/infra/fetcher.ReadabilityFetcher.
// Unlike ReadabilityFetcher, which fetches the page itself, this extractor
// runs over HTML the caller already retrieved, since extractor.Extractor
// operates on a pre-fetched body; it exists for when the LLM path
// (internal/extractor.LLMExtractor) is circuit-broken or unavailable.
package fallback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"harvester/internal/extractor"
	"harvester/internal/resilience/circuitbreaker"
)

// ReadabilityExtractor parses already-fetched HTML with go-readability,
// falling back to the raw article Content when TextContent is empty, and
// supplements the result with keywords pulled from meta tags via goquery.
type ReadabilityExtractor struct {
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// New builds a ReadabilityExtractor with its own circuit breaker so a run
// of malformed pages doesn't keep retrying readability parses indefinitely.
func New() *ReadabilityExtractor {
	cfg := circuitbreaker.DefaultConfig("readability-extractor")
	return &ReadabilityExtractor{circuitBreaker: circuitbreaker.New(cfg)}
}

func (e *ReadabilityExtractor) Extract(ctx context.Context, pageURL string, html string) (extractor.Article, error) {
	result, err := e.circuitBreaker.Execute(func() (interface{}, error) {
		return e.parse(pageURL, html)
	})
	if err != nil {
		return extractor.Article{}, err
	}
	return result.(extractor.Article), nil
}

func (e *ReadabilityExtractor) parse(pageURL, html string) (extractor.Article, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = nil
	}

	htmlReader := io.NopCloser(bytes.NewReader([]byte(html)))
	article, err := readability.FromReader(htmlReader, parsedURL)
	if err != nil {
		return extractor.Article{}, fmt.Errorf("readability extractor: %w", err)
	}

	body := article.TextContent
	if body == "" {
		body = article.Content
	}
	if body == "" {
		return extractor.Article{}, fmt.Errorf("readability extractor: no readable content found")
	}

	title := article.Title
	var publishedAt = article.PublishedTime

	return extractor.Article{
		Title:       title,
		Body:        body,
		URL:         pageURL,
		PublishedAt: publishedAt,
		Keywords:    keywords(html),
	}, nil
}

// keywords pulls a best-effort topic list from <meta name="keywords"> and
// falls back to og:article:tag entries, matching how web pages typically
// expose the tags a readability pass discards.
func keywords(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	if content, ok := doc.Find(`meta[name="keywords"]`).Attr("content"); ok && content != "" {
		parts := strings.Split(content, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	var tags []string
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok && content != "" {
			tags = append(tags, content)
		}
	})
	return tags
}
