package vacuum

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"harvester/internal/infra/state"
	"harvester/internal/jobs"
)

// Vacuum deletes expired markers and crawl-state records from adapters
// that lack native TTL expiry, scheduled with the same cron.New /
// AddFunc pattern cmd/worker uses for its crawl job.
type Vacuum struct {
	feedTasks state.FeedTaskStore
	markers   state.MarkerStore
	crawl     state.CrawlStateStore
	metrics   *Metrics
	logger    *slog.Logger
	cfg       Config
}

func New(feedTasks state.FeedTaskStore, markers state.MarkerStore, crawl state.CrawlStateStore, metrics *Metrics, logger *slog.Logger, cfg Config) *Vacuum {
	return &Vacuum{feedTasks: feedTasks, markers: markers, crawl: crawl, metrics: metrics, logger: logger, cfg: cfg}
}

// Start schedules RunOnce on the configured cron expression and blocks
// until ctx is cancelled, then stops the scheduler.
func (v *Vacuum) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(v.cfg.Timezone)
	if err != nil {
		v.logger.Error("vacuum: invalid timezone, using UTC", slog.String("timezone", v.cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(v.cfg.CronSchedule, func() {
		v.RunOnce(ctx)
	}); err != nil {
		return err
	}

	c.Start()
	v.logger.Info("vacuum started", slog.String("schedule", v.cfg.CronSchedule), slog.String("timezone", v.cfg.Timezone))

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

// RunOnce sweeps every RSS feed task's markers plus the crawl-state
// index once. A failure listing feed tasks aborts the marker sweep but
// the crawl-state sweep still runs, since the two are independent
// stores.
func (v *Vacuum) RunOnce(ctx context.Context) {
	start := time.Now()
	now := time.Now().Unix()
	failed := false

	tasks, err := v.feedTasks.ListByType(ctx, jobs.TaskTypeRSS)
	if err != nil {
		v.logger.Error("vacuum: list feed tasks failed", slog.Any("error", err))
		failed = true
	} else {
		for _, task := range tasks {
			removed, err := v.markers.DeleteExpired(ctx, task.TaskID, now)
			if err != nil {
				v.logger.Error("vacuum: delete expired markers failed", slog.String("task_id", task.TaskID), slog.Any("error", err))
				failed = true
				continue
			}
			if removed > 0 {
				v.metrics.DeletedTotal.WithLabelValues("marker").Add(float64(removed))
			}
		}
	}

	removed, err := v.crawl.DeleteExpired(ctx, now)
	if err != nil {
		v.logger.Error("vacuum: delete expired crawl state failed", slog.Any("error", err))
		failed = true
	} else if removed > 0 {
		v.metrics.DeletedTotal.WithLabelValues("crawl_state").Add(float64(removed))
	}

	v.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if failed {
		v.metrics.RunsTotal.WithLabelValues("failure").Inc()
	} else {
		v.metrics.RunsTotal.WithLabelValues("success").Inc()
		v.logger.Info("vacuum run completed", slog.Duration("duration", time.Since(start)))
	}
}
