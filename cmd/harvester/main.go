// Command harvester runs the long-lived worker process: the SQS consumer
// engine, the RSS polling scheduler, the hourly vacuum cleanup job, the
// Bedrock credential refresher, and the control-surface HTTP API, all under
// one process group so a single SIGINT/SIGTERM drains everything together.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"harvester/internal/config"
	"harvester/internal/consumer"
	"harvester/internal/consumer/router"
	"harvester/internal/credential"
	"harvester/internal/extractor"
	"harvester/internal/extractor/fallback"
	"harvester/internal/handler/crawl"
	"harvester/internal/httpapi"
	"harvester/internal/infra/fetcher"
	worker "harvester/internal/infra/worker"
	"harvester/internal/infra/objectstore"
	"harvester/internal/infra/queue"
	"harvester/internal/infra/state"
	"harvester/internal/jobs"
	"harvester/internal/scheduler"
	"harvester/internal/vacuum"
)

func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func envOr(key, fallbackValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallbackValue
}

func main() {
	logger := initLogger()

	bootstrapPath := envOr("HARVESTER_BOOTSTRAP_CONFIG", "config/bootstrap.yaml")
	boot, err := config.LoadBootstrap(bootstrapPath)
	if err != nil {
		logger.Error("failed to load bootstrap configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS configuration", slog.Any("error", err))
		os.Exit(1)
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	s3Client := s3.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	bedrockClient := bedrockruntime.NewFromConfig(awsCfg)

	q := queue.NewSQSQueue(sqsClient, boot.Queue.URL)
	objectStore := objectstore.NewS3Store(s3Client, boot.ObjectStore.Bucket)
	feedTasks := state.NewDynamoFeedTaskStore(dynamoClient, boot.Tables.FeedTasks)
	markers := state.NewDynamoMarkerStore(dynamoClient, boot.Tables.Markers)
	crawlState := state.NewDynamoCrawlStateStore(dynamoClient, boot.Tables.CrawlState)

	credentials := credential.New(
		credential.NewBedrockProvider(credential.DefaultTokenIssuer(bedrockClient), credential.BedrockConfig{
			ModelID: envOr("HARVESTER_BEDROCK_MODEL_ID", "anthropic.claude-sonnet-4-5-20250929-v1:0"),
			TTL:     55 * time.Minute,
		}),
		logger,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		credentials.Start(groupCtx)
		return nil
	})

	primaryExtractor := extractor.NewLLMExtractorWithCredentials(credentials)
	fallbackExtractor := fallback.New()

	htmlFetcher := fetcher.NewRawFetcher(fetcher.DefaultConfig())

	crawlMetrics := crawl.NewMetrics()
	crawlMetrics.MustRegister()
	crawlCfg := crawl.LoadConfigFromEnv(logger, crawlMetrics)
	pdfCapturer := crawl.NewChromeDPCapturer(crawlCfg.PDFTimeout)
	crawlHandler := crawl.New(htmlFetcher, primaryExtractor, fallbackExtractor, objectStore, crawlState, pdfCapturer, crawlMetrics, logger, crawlCfg)

	msgRouter := router.New()
	msgRouter.Register(jobs.TypeCrawlSingleURL, crawlHandler.Handle)

	consumerMetrics := consumer.NewMetrics()
	consumerMetrics.MustRegister()
	consumerCfg := consumer.LoadConfigFromEnv(logger, consumerMetrics)
	idempotency := consumer.NewMemoryIdempotencyStore(consumerCfg.VisibilityTimeout * 4)
	engine := consumer.NewEngine(q, msgRouter, idempotency, consumerMetrics, logger, consumerCfg)
	group.Go(func() error {
		engine.Run(groupCtx)
		return nil
	})

	feedFetcher := scheduler.NewFeedFetcher(&http.Client{Timeout: 30 * time.Second})
	schedulerMetrics := scheduler.NewMetrics()
	schedulerMetrics.MustRegister()
	schedulerCfg := scheduler.LoadConfigFromEnv(logger, schedulerMetrics)
	sched := scheduler.New(feedTasks, markers, q, feedFetcher, schedulerMetrics, logger, schedulerCfg)
	group.Go(func() error {
		return sched.Run(groupCtx)
	})

	vacuumMetrics := vacuum.NewMetrics()
	vacuumMetrics.MustRegister()
	vacuumCfg := vacuum.Config{CronSchedule: boot.Vacuum.CronSchedule, Timezone: boot.Vacuum.Timezone}
	if err := vacuumCfg.Validate(); err != nil {
		logger.Warn("invalid vacuum configuration in bootstrap file, using defaults", slog.Any("error", err))
		vacuumCfg = vacuum.DefaultConfig()
	}
	vac := vacuum.New(feedTasks, markers, crawlState, vacuumMetrics, logger, vacuumCfg)
	group.Go(func() error {
		return vac.Start(groupCtx)
	})

	apiRouter := httpapi.NewRouter(httpapi.Deps{
		Engine:      engine,
		Queue:       q,
		FeedTasks:   feedTasks,
		HTMLFetcher: htmlFetcher,
		Primary:     primaryExtractor,
		Fallback:    fallbackExtractor,
		Credentials: credentials,
		Logger:      logger,
	})
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", envOr("HARVESTER_HTTP_PORT", "8080")),
		Handler: apiRouter,
	}
	group.Go(func() error {
		return runUntilShutdown(groupCtx, apiServer, logger, "control surface")
	})

	workerMetrics := worker.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerCfg, err := worker.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Warn("invalid worker health-server configuration, using defaults", slog.Any("error", err))
		defaultCfg := worker.DefaultConfig()
		workerCfg = &defaultCfg
	}
	healthServer := worker.NewHealthServer(fmt.Sprintf(":%d", workerCfg.HealthPort), logger)
	healthServer.SetReady(true)
	group.Go(func() error {
		if err := healthServer.Start(groupCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	logger.Info("harvester started",
		slog.String("queue_url", boot.Queue.URL),
		slog.String("bucket", boot.ObjectStore.Bucket),
		slog.Int("health_port", workerCfg.HealthPort))

	if err := group.Wait(); err != nil {
		logger.Error("harvester exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// runUntilShutdown serves srv until ctx is cancelled, then drains active
// connections with a bounded grace period before returning.
func runUntilShutdown(ctx context.Context, srv *http.Server, logger *slog.Logger, name string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down server", slog.String("server", name))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: graceful shutdown: %w", name, err)
		}
		return nil
	}
}
