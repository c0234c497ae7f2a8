package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"harvester/internal/infra/queue"
	"harvester/internal/infra/state"
	"harvester/internal/jobs"
)

// Fetcher retrieves and parses a feed; satisfied by *FeedFetcher and by
// test doubles that avoid real network fetches.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]FeedItem, error)
}

// Scheduler runs the periodic RSS fan-out loop described in spec §4.4: at
// a fixed interval, pull every rss feed task, parse its feed, de-duplicate
// against processed-URL markers, and enqueue one crawl-single-url envelope
// per new item.
type Scheduler struct {
	feedTasks state.FeedTaskStore
	markers   state.MarkerStore
	queue     queue.Queue
	fetcher   Fetcher
	metrics   *Metrics
	logger    *slog.Logger
	cfg       Config
}

// New builds a Scheduler from its collaborators.
func New(feedTasks state.FeedTaskStore, markers state.MarkerStore, q queue.Queue, fetcher Fetcher, metrics *Metrics, logger *slog.Logger, cfg Config) *Scheduler {
	return &Scheduler{
		feedTasks: feedTasks,
		markers:   markers,
		queue:     q,
		fetcher:   fetcher,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run ticks every cfg.Interval, calling RunCycle. An error from RunCycle
// itself (as opposed to the per-task/per-item errors RunCycle already
// isolates) is logged and followed by a cfg.OuterRetryWait sleep before
// the loop resumes ticking, matching rss_processor.py's outer
// try/except/sleep(60) wrapper.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				s.logger.Error("scheduler cycle failed", slog.String("error", err.Error()))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.cfg.OuterRetryWait):
				}
			}
		}
	}
}

// RunCycle fetches every rss feed task once, enqueuing de-duplicated
// items. A feed-parse error skips that task for this cycle; a
// single-item enqueue failure skips that item and continues (§4.4).
func (s *Scheduler) RunCycle(ctx context.Context) error {
	start := time.Now()
	defer func() {
		s.metrics.CycleDurationSeconds.Observe(time.Since(start).Seconds())
		s.metrics.CyclesTotal.Inc()
	}()

	tasks, err := s.feedTasks.ListByType(ctx, jobs.TaskTypeRSS)
	if err != nil {
		return fmt.Errorf("list rss feed tasks: %w", err)
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.runTask(ctx, task)
	}
	return nil
}

func (s *Scheduler) runTask(ctx context.Context, task jobs.FeedTask) {
	cfg, err := task.RSSConfig()
	if err != nil {
		s.logger.Warn("skipping feed task: invalid config",
			slog.String("task_id", task.TaskID), slog.String("error", err.Error()))
		s.metrics.FeedFetchErrors.WithLabelValues(task.TaskID).Inc()
		return
	}

	items, err := s.fetcher.Fetch(ctx, cfg.FeedURL)
	if err != nil {
		s.logger.Warn("skipping feed task: fetch failed",
			slog.String("task_id", task.TaskID), slog.String("feed_url", cfg.FeedURL), slog.String("error", err.Error()))
		s.metrics.FeedFetchErrors.WithLabelValues(task.TaskID).Inc()
		return
	}

	if cfg.MaxItems > 0 && len(items) > cfg.MaxItems {
		items = items[:cfg.MaxItems]
	}

	linkField := cfg.LinkField()
	for _, item := range items {
		url := item.LinkField(linkField)
		if url == "" {
			continue
		}
		s.enqueueItem(ctx, task, cfg, url)
	}
}

func (s *Scheduler) enqueueItem(ctx context.Context, task jobs.FeedTask, cfg jobs.RSSConfig, url string) {
	processed, err := s.markers.IsProcessed(ctx, task.TaskID, url)
	if err != nil {
		s.logger.Warn("skipping item: marker lookup failed",
			slog.String("task_id", task.TaskID), slog.String("url", url), slog.String("error", err.Error()))
		s.metrics.ItemsSkippedTotal.WithLabelValues("marker_lookup_failed").Inc()
		return
	}
	if processed {
		s.metrics.ItemsSkippedTotal.WithLabelValues("already_processed").Inc()
		return
	}

	envelope := jobs.Envelope{
		Type:    jobs.TypeCrawlSingleURL,
		ID:      jobs.SingleURLEnvelopeID(task.TaskID, url),
		URL:     url,
		Tags:    task.Tags,
		SavePDF: cfg.SavePDF,
	}
	body, err := envelope.Marshal()
	if err != nil {
		s.logger.Error("skipping item: envelope marshal failed",
			slog.String("task_id", task.TaskID), slog.String("url", url), slog.String("error", err.Error()))
		s.metrics.ItemsSkippedTotal.WithLabelValues("enqueue_failed").Inc()
		s.metrics.EnqueueErrorsTotal.Inc()
		return
	}

	if err := s.queue.Send(ctx, string(body), nil, 0); err != nil {
		s.logger.Warn("skipping item: enqueue failed",
			slog.String("task_id", task.TaskID), slog.String("url", url), slog.String("error", err.Error()))
		s.metrics.ItemsSkippedTotal.WithLabelValues("enqueue_failed").Inc()
		s.metrics.EnqueueErrorsTotal.Inc()
		return
	}
	s.metrics.ItemsEnqueuedTotal.Inc()

	now := time.Now()
	marker := jobs.NewProcessedURLMarker(task.TaskID, url, now, int64(s.cfg.MarkerTTL.Seconds()))
	if err := s.markers.MarkProcessed(ctx, marker); err != nil {
		s.logger.Error("marker write failed after enqueue; duplicate enqueue possible next cycle",
			slog.String("task_id", task.TaskID), slog.String("url", url), slog.String("error", err.Error()))
	}
}
