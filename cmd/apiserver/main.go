// API server entry point for Referta.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/referta/referta/internal/application/analysis"
	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/infrastructure/database/postgres"
	"github.com/referta/referta/internal/infrastructure/database/postgres/repositories"
	redisinfra "github.com/referta/referta/internal/infrastructure/database/redis"
	"github.com/referta/referta/internal/infrastructure/messaging/kafka"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	promcollector "github.com/referta/referta/internal/infrastructure/monitoring/prometheus"
	"github.com/referta/referta/internal/infrastructure/storage/minio"
	"github.com/referta/referta/internal/intelligence/classification"
	"github.com/referta/referta/internal/intelligence/comparison"
	"github.com/referta/referta/internal/intelligence/dedup"
	"github.com/referta/referta/internal/intelligence/extraction"
	"github.com/referta/referta/internal/intelligence/inference"
	httpserver "github.com/referta/referta/internal/interfaces/http"
	"github.com/referta/referta/internal/interfaces/http/handlers"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, falling back to environment configuration\n", err)
		cfg, err = config.LoadFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: logger initialization failed: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting referta API server", logging.Int("port", cfg.Server.Port))

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database and schema.
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.MigrationPath != "" {
		if err := postgres.RunMigrations(postgres.URL(cfg.Database), "file://"+cfg.Database.MigrationPath); err != nil {
			return err
		}
		logger.Info("database schema is up to date")
	}

	reportRepo := repositories.NewReportRepository(pool, logger)
	feedbackRepo := repositories.NewFeedbackRepository(pool, logger)

	// Inference backend.  A missing model never blocks startup; the engine
	// runs on its deterministic fallbacks instead.
	var aiClient inference.Client
	if client, err := inference.NewClient(cfg.Inference, logger); err != nil {
		logger.Warn("inference backend unavailable, running with deterministic fallbacks", logging.Err(err))
	} else {
		aiClient = client
	}

	// Redis is optional at runtime: without it the service runs uncached.
	var historyCache analysis.HistoryCache
	rdb, err := redisinfra.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, running without caches", logging.Err(err))
		rdb = nil
	} else {
		defer rdb.Close()
		historyCache = redisinfra.NewHistoryCache(rdb, cfg.Redis.KeyPrefix, cfg.Redis.DefaultTTL, logger)
		if aiClient != nil {
			aiClient = redisinfra.NewCachedInferenceClient(aiClient, rdb, cfg.Redis.KeyPrefix, cfg.Redis.DefaultTTL, logger)
		}
	}

	// Analysis pipeline.
	classifier := classification.NewClassifier(logger)
	extractor, err := extraction.NewExtractor(cfg.Engine.Extraction, classifier, logger)
	if err != nil {
		return err
	}
	comparator, err := comparison.NewComparator(cfg.Engine.Comparison, reportRepo, aiClient, logger)
	if err != nil {
		return err
	}
	detector, err := dedup.NewDetector(cfg.Engine.Dedup, reportRepo, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector := promcollector.NewCollector(registry)

	deps := analysis.Dependencies{
		Extractor:  extractor,
		Comparator: comparator,
		Detector:   detector,
		AI:         aiClient,
		Reports:    reportRepo,
		Feedback:   feedbackRepo,
		Cache:      historyCache,
		Metrics:    collector,
		Logger:     logger,
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return err
		}
		defer producer.Close()
		deps.Publisher = producer
	}

	if cfg.MinIO.Enabled {
		archive, err := minio.NewArchive(ctx, cfg.MinIO, logger)
		if err != nil {
			return err
		}
		deps.Archive = archive
	}

	svc, err := analysis.NewService(cfg.Engine, deps)
	if err != nil {
		return err
	}

	// HTTP surface.
	checks := map[string]handlers.Pinger{
		"postgres": pool.Ping,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if aiClient != nil {
		checks["inference"] = aiClient.Health
	}

	server := httpserver.NewServer(cfg.Server, httpserver.RouterDeps{
		Analysis: handlers.NewAnalysisHandler(svc, analysis.PlainTextSource{}, cfg.Server.MaxBodySize, logger),
		Health:   handlers.NewHealthHandler(checks),
		Metrics:  collector,
		Gatherer: registry,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	if err := server.Stop(context.Background()); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}
