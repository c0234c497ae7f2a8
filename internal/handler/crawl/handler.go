// Package crawl implements the crawl-single-url handler: a single-flight
// concurrency gate, deterministic object-store key layout, and
// write-then-index persistence order, grounded on
// harvester/app/crawler.py's crawl_urls and dynamodb.py's
// store_crawled_website_in_dynamodb.
package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"harvester/internal/consumer/router"
	"harvester/internal/extractor"
	"harvester/internal/infra/objectstore"
	"harvester/internal/infra/state"
	"harvester/internal/jobs"
)

// HTMLFetcher retrieves the raw HTML of a page, satisfied by
// internal/infra/fetcher.RawFetcher.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Handler processes crawl-single-url envelopes: fetch, extract (LLM with
// a readability fallback), persist JSON/text/PDF to object storage, then
// index a jobs.CrawlStateRecord. Extraction is serialized process-wide by
// sem since the LLM/browser extractor is stateful and resource-heavy
// (spec §4.3); the fetch and persistence steps are not gated and may run
// concurrently across dispatch slots.
type Handler struct {
	htmlFetcher HTMLFetcher
	primary     extractor.Extractor
	fallback    extractor.Extractor
	objectStore objectstore.Store
	crawlState  state.CrawlStateStore
	pdfCapturer PDFCapturer
	keys        KeyLayout
	metrics     *Metrics
	logger      *slog.Logger
	cfg         Config
	sem         *semaphore.Weighted
}

// New builds a Handler from its collaborators. fallback may be nil if no
// readability fallback is configured, in which case a primary extractor
// failure is always retryable.
func New(htmlFetcher HTMLFetcher, primary, fallback extractor.Extractor, objectStore objectstore.Store, crawlState state.CrawlStateStore, pdfCapturer PDFCapturer, metrics *Metrics, logger *slog.Logger, cfg Config) *Handler {
	return &Handler{
		htmlFetcher: htmlFetcher,
		primary:     primary,
		fallback:    fallback,
		objectStore: objectStore,
		crawlState:  crawlState,
		pdfCapturer: pdfCapturer,
		keys:        KeyLayout{Base: cfg.ObjectStoreBase},
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		sem:         semaphore.NewWeighted(1),
	}
}

// Handle implements router.Handler for jobs.TypeCrawlSingleURL.
func (h *Handler) Handle(ctx context.Context, envelope *jobs.Envelope) error {
	start := time.Now()
	defer func() {
		h.metrics.CrawlDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	article, err := h.extract(ctx, envelope)
	if err != nil {
		h.metrics.CrawlsTotal.WithLabelValues("failure").Inc()
		return router.Retryable(fmt.Errorf("crawl %s: %w", envelope.URL, err))
	}

	taskID := taskIDFromEnvelope(envelope)
	crawledAt := time.Now()

	record, err := h.persist(ctx, envelope, taskID, crawledAt, article)
	if err != nil {
		h.metrics.CrawlsTotal.WithLabelValues("failure").Inc()
		return router.Retryable(fmt.Errorf("persist crawl %s: %w", envelope.URL, err))
	}

	if err := h.crawlState.Put(ctx, record); err != nil {
		h.metrics.CrawlsTotal.WithLabelValues("failure").Inc()
		return router.Retryable(fmt.Errorf("index crawl state %s: %w", envelope.URL, err))
	}

	h.metrics.CrawlsTotal.WithLabelValues("success").Inc()
	return nil
}

// extract fetches the page and runs it through the primary extractor,
// falling back to the readability extractor on failure, gating both the
// fetch and the chosen extraction behind the process-wide single-flight
// semaphore the way crawler.py serializes crawl4ai sessions.
func (h *Handler) extract(ctx context.Context, envelope *jobs.Envelope) (extractor.Article, error) {
	waitStart := time.Now()
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return extractor.Article{}, fmt.Errorf("acquire single-flight gate: %w", err)
	}
	defer h.sem.Release(1)
	h.metrics.SingleFlightWaitSeconds.Observe(time.Since(waitStart).Seconds())

	html, err := h.htmlFetcher.FetchHTML(ctx, envelope.URL)
	if err != nil {
		return extractor.Article{}, fmt.Errorf("fetch html: %w", err)
	}

	article, err := h.primary.Extract(ctx, envelope.URL, html)
	if err == nil {
		return article, nil
	}

	if h.fallback == nil {
		return extractor.Article{}, fmt.Errorf("primary extraction: %w", err)
	}

	h.logger.Warn("primary extractor failed, using readability fallback",
		slog.String("url", envelope.URL), slog.String("error", err.Error()))
	h.metrics.ExtractionFallbacks.Inc()

	article, fallbackErr := h.fallback.Extract(ctx, envelope.URL, html)
	if fallbackErr != nil {
		return extractor.Article{}, fmt.Errorf("primary extraction: %w; fallback extraction: %v", err, fallbackErr)
	}
	return article, nil
}

// persist writes article.json, article.txt, and (if requested) article.pdf
// to object storage in that order, returning the CrawlStateRecord to index.
// A failure writing any file is surfaced to the caller, who converts it to
// retryable (§4.3's "failure in any write is converted to retryable").
func (h *Handler) persist(ctx context.Context, envelope *jobs.Envelope, taskID string, crawledAt time.Time, article extractor.Article) (jobs.CrawlStateRecord, error) {
	var paths jobs.ObjectPaths

	jsonBody, err := json.Marshal(article)
	if err != nil {
		return jobs.CrawlStateRecord{}, fmt.Errorf("marshal article json: %w", err)
	}
	jsonKey := h.keys.JSONKey(taskID, envelope.URL, crawledAt)
	if err := h.objectStore.PutBytes(ctx, jsonKey, jsonBody, "application/json"); err != nil {
		return jobs.CrawlStateRecord{}, fmt.Errorf("upload article json: %w", err)
	}
	paths.RemoteJSON = jsonKey

	textKey := h.keys.TextKey(taskID, envelope.URL, crawledAt)
	if err := h.objectStore.PutBytes(ctx, textKey, []byte(article.Body), "text/plain; charset=utf-8"); err != nil {
		return jobs.CrawlStateRecord{}, fmt.Errorf("upload article text: %w", err)
	}
	paths.RemoteText = textKey

	if envelope.SavePDF && h.pdfCapturer != nil {
		pdfKey := h.keys.PDFKey(taskID, envelope.URL, crawledAt)
		pdfCtx, cancel := context.WithTimeout(ctx, h.cfg.PDFTimeout)
		pdfBytes, pdfErr := h.pdfCapturer.Capture(pdfCtx, envelope.URL)
		cancel()
		if pdfErr != nil {
			h.logger.Warn("pdf capture failed, continuing without it",
				slog.String("url", envelope.URL), slog.String("error", pdfErr.Error()))
			h.metrics.PDFCaptureFailures.Inc()
		} else if err := h.objectStore.PutBytes(ctx, pdfKey, pdfBytes, "application/pdf"); err != nil {
			h.logger.Warn("pdf upload failed, continuing without it",
				slog.String("url", envelope.URL), slog.String("error", err.Error()))
			h.metrics.PDFCaptureFailures.Inc()
		} else {
			paths.RemotePDF = pdfKey
		}
	}

	record := jobs.CrawlStateRecord{
		URLHash:       jobs.URLHashHex(envelope.URL),
		URL:           envelope.URL,
		Title:         article.Title,
		CrawledAt:     crawledAt,
		PublishedAt:   article.PublishedAt,
		HasContent:    article.Body != "",
		ContentLength: len(article.Body),
		Keywords:      article.Keywords,
		Paths:         paths,
		Success:       true,
		TTL:           crawledAt.Unix() + int64(h.cfg.RecordTTL.Seconds()),
	}
	return record, nil
}

// taskIDFromEnvelope recovers the scheduling task id from a
// jobs.SingleURLEnvelopeID-shaped id ("{task_id}-{hash8(url)}"). Ad-hoc
// envelopes built outside the scheduler (e.g. the /crawl/url control
// endpoint) don't carry a separate task id, so their own id is used as
// the object-store scoping segment.
func taskIDFromEnvelope(envelope *jobs.Envelope) string {
	suffix := "-" + jobs.URLHash8(envelope.URL)
	if strings.HasSuffix(envelope.ID, suffix) {
		return strings.TrimSuffix(envelope.ID, suffix)
	}
	return envelope.ID
}
