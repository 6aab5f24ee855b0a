package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/handarchive/video-analysis-service/internal/infra/config"
	"github.com/handarchive/video-analysis-service/internal/infra/email"
	"github.com/handarchive/video-analysis-service/internal/infra/ffmpeg"
	"github.com/handarchive/video-analysis-service/internal/infra/gemini"
	"github.com/handarchive/video-analysis-service/internal/infra/metrics"
	miniostorage "github.com/handarchive/video-analysis-service/internal/infra/minio"
	"github.com/handarchive/video-analysis-service/internal/infra/postgres"
	"github.com/handarchive/video-analysis-service/internal/infra/rabbitmq"
	"github.com/handarchive/video-analysis-service/internal/infra/tracing"
	"github.com/handarchive/video-analysis-service/internal/jobstore"
	"github.com/handarchive/video-analysis-service/internal/orchestrator"
	"github.com/handarchive/video-analysis-service/internal/reaper"
	"github.com/handarchive/video-analysis-service/internal/server"
	"github.com/handarchive/video-analysis-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting video-analysis-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Hand archive database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	archive := postgres.NewHandArchive(pool)
	fatalOnErr(archive.EnsureSchema(ctx), "ensure archive schema")

	// Object storage
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:   cfg.StorageEndpoint,
		AccessKey:  cfg.StorageAccessKey,
		SecretKey:  cfg.StorageSecretKey,
		UseSSL:     cfg.StorageUseSSL,
		ClipBucket: cfg.StorageClipBucket,
		ClipPrefix: cfg.StorageClipPrefix,
	})
	fatalOnErr(err, "create object storage client")
	fatalOnErr(storage.EnsureClipBucket(ctx), "ensure clip bucket")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	extractor := ffmpeg.NewExtractor(log)
	analyzer := gemini.NewAnalyzer(gemini.AnalyzerConfig{
		Endpoint: cfg.GeminiEndpoint,
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
	}, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.OpsEmail, log)

	// Job pipeline
	store := jobstore.New()
	orch := orchestrator.New(
		store, storage, extractor, analyzer, archive,
		statusPub, notifier,
		log,
		orchestrator.Config{
			TempDir:           cfg.TempDir,
			MaxConcurrentJobs: cfg.MaxConcurrentJobs,
			SegmentMaxRetries: cfg.SegmentMaxRetries,
			RetryBaseDelay:    time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
			MaxClipSeconds:    cfg.MaxClipSeconds,
		},
	)

	// Stuck job reaper
	sweeper := reaper.New(store, statusPub, log,
		time.Duration(cfg.StuckAfterSeconds)*time.Second,
		time.Duration(cfg.ReaperIntervalSeconds)*time.Second,
	)
	go sweeper.Run(ctx)

	// HTTP surfaces
	httpSrv := server.New(store, orch, log).Start(ctx, cfg.HTTPPort)
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Queue ingress (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQRequestQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.QueueWorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, orch.QueueHandler(dlqPub), log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("video-analysis-service started, accepting submissions")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown: stop intake first, then let in-flight jobs finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Shutdown(shutdownCtx)
	consumer.Close()

	if err := orch.Close(shutdownCtx); err != nil {
		log.Warn("jobs still in flight at shutdown deadline", zap.Error(err))
	}

	log.Info("video-analysis-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
