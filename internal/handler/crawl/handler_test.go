package crawl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/internal/extractor"
	"harvester/internal/infra/objectstore"
	"harvester/internal/infra/state"
	"harvester/internal/jobs"
)

// testMetrics is shared across tests to avoid promauto's duplicate
// Prometheus collector registration panic.
var testMetrics = NewMetrics()

type stubHTMLFetcher struct {
	html string
	err  error
}

func (f *stubHTMLFetcher) FetchHTML(_ context.Context, _ string) (string, error) {
	return f.html, f.err
}

type stubExtractor struct {
	article extractor.Article
	err     error
	calls   int
}

func (e *stubExtractor) Extract(_ context.Context, url string, _ string) (extractor.Article, error) {
	e.calls++
	e.article.URL = url
	return e.article, e.err
}

func testHandler(t *testing.T, primary, fallback extractor.Extractor, fetcher HTMLFetcher) (*Handler, objectstore.Store, state.CrawlStateStore) {
	t.Helper()
	objStore := objectstore.NewMemoryStore()
	crawlState := state.NewMemoryCrawlStateStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	h := New(fetcher, primary, fallback, objStore, crawlState, nil, testMetrics, logger, DefaultConfig())
	return h, objStore, crawlState
}

func TestHandleSuccessPersistsJSONTextAndIndexesRecord(t *testing.T) {
	primary := &stubExtractor{article: extractor.Article{Title: "T", Body: "body text", Keywords: []string{"a"}}}
	fetcher := &stubHTMLFetcher{html: "<html></html>"}
	h, objStore, crawlState := testHandler(t, primary, nil, fetcher)

	envelope := &jobs.Envelope{
		Type: jobs.TypeCrawlSingleURL,
		ID:   jobs.SingleURLEnvelopeID("task-1", "https://example.com/a"),
		URL:  "https://example.com/a",
	}

	err := h.Handle(context.Background(), envelope)
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)

	record, err := crawlState.Get(context.Background(), jobs.URLHashHex("https://example.com/a"))
	require.NoError(t, err)
	assert.True(t, record.Success)
	assert.Equal(t, "T", record.Title)
	assert.NotEmpty(t, record.Paths.RemoteJSON)
	assert.NotEmpty(t, record.Paths.RemoteText)
	assert.Empty(t, record.Paths.RemotePDF)

	body, err := objStore.GetBytes(context.Background(), record.Paths.RemoteText)
	require.NoError(t, err)
	assert.Equal(t, "body text", string(body))
}

func TestHandleFallsBackToReadabilityOnPrimaryFailure(t *testing.T) {
	primary := &stubExtractor{err: errors.New("llm unavailable")}
	fallback := &stubExtractor{article: extractor.Article{Title: "Fallback", Body: "fallback body"}}
	fetcher := &stubHTMLFetcher{html: "<html></html>"}
	h, _, crawlState := testHandler(t, primary, fallback, fetcher)

	envelope := &jobs.Envelope{Type: jobs.TypeCrawlSingleURL, ID: "adhoc-id", URL: "https://example.com/b"}
	err := h.Handle(context.Background(), envelope)
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.calls)

	record, err := crawlState.Get(context.Background(), jobs.URLHashHex("https://example.com/b"))
	require.NoError(t, err)
	assert.Equal(t, "Fallback", record.Title)
}

func TestHandleReturnsRetryableWhenFetchFails(t *testing.T) {
	primary := &stubExtractor{}
	fetcher := &stubHTMLFetcher{err: errors.New("network down")}
	h, _, _ := testHandler(t, primary, nil, fetcher)

	envelope := &jobs.Envelope{Type: jobs.TypeCrawlSingleURL, ID: "adhoc-id", URL: "https://example.com/c"}
	err := h.Handle(context.Background(), envelope)
	require.Error(t, err)
	var retryable interface{ Unwrap() error }
	assert.ErrorAs(t, err, &retryable)
}

func TestTaskIDFromEnvelopeStripsHashSuffix(t *testing.T) {
	url := "https://example.com/a"
	envelope := &jobs.Envelope{ID: jobs.SingleURLEnvelopeID("my-task", url), URL: url}
	assert.Equal(t, "my-task", taskIDFromEnvelope(envelope))

	adhoc := &jobs.Envelope{ID: "standalone-id", URL: url}
	assert.Equal(t, "standalone-id", taskIDFromEnvelope(adhoc))
}
