package main

import (
	"context"
	"fmt"

	"github.com/jonathan/smartapply/internal/alert"
	"github.com/jonathan/smartapply/internal/config"
	"github.com/jonathan/smartapply/internal/db"
	"github.com/jonathan/smartapply/internal/embedding"
	"github.com/jonathan/smartapply/internal/ingestion"
	"github.com/jonathan/smartapply/internal/matcher"
	"github.com/jonathan/smartapply/internal/observability"
	"github.com/jonathan/smartapply/internal/pipeline"
	"github.com/jonathan/smartapply/internal/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// loadConfig reads the config selected by the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	logger, err := observability.NewLogger(jsonOutput, debugLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// app holds the long-lived components of one process.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	registry     *prometheus.Registry
	metrics      *observability.Metrics
	db           *db.DB
	redis        *redis.Client
	provider     embedding.Provider
	orchestrator *pipeline.Orchestrator
}

// newApp connects to the database (and Redis when configured) and wires
// the pipeline.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = observability.NewMetrics(a.registry)

	database, err := db.Connect(ctx, cfg.DatabaseURL, cfg.Embedding.Dims())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = database

	var locker pipeline.Locker
	if cfg.RedisURL != "" {
		client, err := pipeline.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		locker = pipeline.NewRedisLocker(client, pipeline.DefaultLockKey)
	} else {
		logger.Info("no redis_url configured; overlapping runs are not prevented")
	}

	provider, err := embedding.New(ctx, cfg.Embedding, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	a.provider = provider

	normalizer := ingestion.NewNormalizer(cfg.Text.MaxEmbedLength, cfg.Text.MaxDisplayLength)
	engine, err := matcher.NewEngine(database, provider, matcher.Options{
		Threshold:   cfg.Matching.Threshold,
		Concurrency: cfg.Matching.Concurrency,
		CacheSize:   cfg.Matching.CacheSize,
		Normalizer:  normalizer,
		Logger:      logger,
		Metrics:     a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	dispatcher := alert.NewDispatcher(alert.NewNotifier(cfg.Email, logger), database, logger, a.metrics).
		WithResendWindow(cfg.Email.ResendWindow)

	a.orchestrator = pipeline.NewOrchestrator(pipeline.Options{
		Scrapers:   scraper.FromConfig(cfg, nil, logger, a.metrics),
		Store:      database,
		Matcher:    engine,
		Dispatcher: dispatcher,
		Locker:     locker,
		LockTTL:    cfg.Pipeline.LockTTL,
		RunTimeout: cfg.Pipeline.RunTimeout,
		Logger:     logger,
		Metrics:    a.metrics,
	})
	return a, nil
}

// Close releases every connection the app opened.
func (a *app) Close() {
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Warn("failed to close embedding provider", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
