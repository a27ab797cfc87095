// Package app wires configuration into a ready extraction service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/product-extractor/internal/archive"
	"github.com/maltedev/product-extractor/internal/config"
	"github.com/maltedev/product-extractor/internal/database"
	"github.com/maltedev/product-extractor/internal/events"
	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/fetch"
	"github.com/maltedev/product-extractor/internal/metrics"
	"github.com/maltedev/product-extractor/internal/ratelimit"
)

type App struct {
	Service *extractor.Service
	Metrics *metrics.Metrics
	// Relay is nil unless events are enabled.
	Relay *database.Relay

	closers []func()
}

// New builds the service graph. With events enabled it connects to Postgres
// and Redis and fails fast if either is unreachable.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Metrics: metrics.New(reg)}

	var pacer, imagePacer ratelimit.Pacer
	if cfg.Fetch.PacingEnabled {
		pacer = ratelimit.NewAdaptiveRateLimiter(cfg.Fetch.PacingMin, cfg.Fetch.PacingMax)
		imagePacer = ratelimit.NewAdaptiveRateLimiter(cfg.Fetch.PacingMin, cfg.Fetch.PacingMax)
	}

	client := fetch.New(fetch.Options{
		Relays:       cfg.Fetch.Relays,
		Timeout:      cfg.Fetch.Timeout,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Pacer:        pacer,
		Logger:       logger,
		Metrics:      a.Metrics,

		AllowPrivateNetworks: cfg.Fetch.AllowPrivateNetworks,
	})

	var imageHeaders http.Header
	if len(cfg.Fetch.UserAgents) > 0 {
		imageHeaders = http.Header{"User-Agent": []string{cfg.Fetch.UserAgents[0]}}
	}

	builder := archive.NewBuilder(archive.Options{
		Concurrency:   cfg.Archive.Concurrency,
		Timeout:       cfg.Archive.Timeout,
		Folder:        cfg.Archive.Folder,
		MaxImageBytes: cfg.Archive.MaxImageBytes,
		Headers:       imageHeaders,
		Pacer:         imagePacer,
		Logger:        logger,
		Metrics:       a.Metrics,

		AllowPrivateNetworks: cfg.Fetch.AllowPrivateNetworks,
	})

	opts := extractor.Options{
		Fetcher:    client,
		Archive:    builder,
		UserAgents: cfg.Fetch.UserAgents,
		Logger:     logger,
		Metrics:    a.Metrics,
	}

	if cfg.Events.Enabled {
		publisher, err := a.connectEvents(ctx, cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts.Publisher = publisher
	}

	a.Service = extractor.NewService(opts)

	logger.Info("extraction service ready",
		"relays", len(cfg.Fetch.Relays),
		"pacing", cfg.Fetch.PacingEnabled,
		"events", cfg.Events.Enabled,
	)

	return a, nil
}

func (a *App) connectEvents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*events.Publisher, error) {
	db, err := database.New(ctx, cfg.Database.Connection())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, func() { redisClient.Close() })

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	a.Relay = database.NewRelay(database.NewOutboxRepository(db), redisClient, logger, database.RelayConfig{
		PollInterval: cfg.Events.PollInterval,
		BatchSize:    cfg.Events.BatchSize,
		StreamMaxLen: cfg.Events.StreamMaxLen,
	})

	return events.NewPublisher(db, cfg.Events.Stream, logger), nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
