package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/config"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/httpapi"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/localfs"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/memory"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-frame-extractor/internal/infra/minio"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/postgres"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/rabbitmq"
	redisstore "github.com/fiapx/fiapx-frame-extractor/internal/infra/redis"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/tracing"
	"github.com/fiapx/fiapx-frame-extractor/internal/usecase"
	"github.com/fiapx/fiapx-frame-extractor/internal/worker"
	"github.com/fiapx/fiapx-frame-extractor/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting frame-extractor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (optional)
	if cfg.JaegerEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	checks := map[string]func(context.Context) error{}

	// Job store
	var store port.JobStore
	switch cfg.JobStore {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		fatalOnErr(err, "connect to postgres")
		defer pool.Close()
		fatalOnErr(postgres.RunMigrations(ctx, pool), "run migrations")
		store = postgres.NewJobRepository(pool)
		checks["postgres"] = pool.Ping
	case "redis":
		repo, err := redisstore.New(ctx, redisstore.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		fatalOnErr(err, "connect to redis")
		defer repo.Close()
		store = repo
		checks["redis"] = repo.HealthCheck
	case "memory":
		store = memory.NewJobRepository()
	default:
		fatalOnErr(fmt.Errorf("unknown JOB_STORE %q", cfg.JobStore), "select job store")
	}

	// Frame storage
	var storage port.FrameStorage
	switch cfg.StorageBackend {
	case "minio":
		s, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:    cfg.MinIOEndpoint,
			AccessKey:   cfg.MinIOAccessKey,
			SecretKey:   cfg.MinIOSecretKey,
			UseSSL:      cfg.MinIOUseSSL,
			FrameBucket: cfg.MinIOFrameBucket,
			StagingDir:  cfg.TempDir,
		})
		fatalOnErr(err, "create minio storage")
		fatalOnErr(s.EnsureBuckets(ctx), "ensure minio buckets")
		storage = s
	case "local":
		storage = localfs.NewLayout(cfg.OutputRoot)
	default:
		fatalOnErr(fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend), "select storage backend")
	}

	// Status events (optional)
	var statusPub port.StatusPublisher
	if cfg.RabbitMQURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		fatalOnErr(err, "create rabbitmq publisher")
		defer pub.Close()
		statusPub = rabbitmq.NewStatusPublisher(pub)
	}

	extractor := ffmpeg.NewExtractor(ffmpeg.ExtractorConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		AllFPS:      cfg.FFmpegAllFPS,
		QScale:      cfg.FFmpegQScale,
	}, log)
	zipper := ffmpeg.NewZipCreator()

	workers := worker.NewPool(cfg.WorkerCount, log)

	// Use cases
	extractUC := usecase.NewExtractFramesUseCase(
		store, storage, extractor, statusPub, workers, log,
		usecase.ExtractFramesConfig{
			TempDir: cfg.TempDir,
			Timeout: cfg.ExtractTimeout,
		},
	)
	queryUC := usecase.NewFrameQueryUseCase(store, storage, usecase.FrameQueryConfig{
		URLPrefix:   cfg.OutputRoute,
		MaxPageSize: cfg.MaxPageSize,
	})
	archiveUC := usecase.NewArchiveUseCase(store, storage, zipper, log)

	reaper := usecase.NewReaper(store, storage, log, usecase.ReaperConfig{
		TempDir:   cfg.TempDir,
		Interval:  cfg.ReaperInterval,
		Retention: cfg.JobRetention,
	})
	go reaper.Run(ctx)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	app := httpapi.NewApp(httpapi.Config{
		MaxUploadMB:     cfg.MaxUploadMB,
		CORSOrigins:     cfg.CORSOrigins,
		OutputRoute:     cfg.OutputRoute,
		DefaultPageSize: cfg.DefaultPageSize,
	}, httpapi.Dependencies{
		Extract: extractUC,
		Query:   queryUC,
		Archive: archiveUC,
		Checks:  checks,
		Logger:  log,
	})

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		_ = app.ShutdownWithTimeout(cfg.ExtractTimeout)
	}()

	log.Info("frame-extractor listening", zap.String("addr", cfg.HTTPAddr))
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Error("http server error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	workers.Close()
	log.Info("frame-extractor stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
