package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/journeys/internal/cache"
	"github.com/alfredjeanlab/journeys/internal/config"
	"github.com/alfredjeanlab/journeys/internal/events"
	"github.com/alfredjeanlab/journeys/internal/journey"
	"github.com/alfredjeanlab/journeys/internal/store/postgres"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg       *config.Config
	store     *postgres.PostgresStore
	publisher events.Publisher
	cache     cache.StatsCache
	svc       *journey.Service
}

func openApp(ctx context.Context, path string, logger *slog.Logger) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	st, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a := &app{cfg: cfg, store: st}

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.publisher = pub
		logger.Debug("events enabled", "nats_url", cfg.NATSURL)
	} else {
		a.publisher = &events.NoopPublisher{}
		logger.Debug("events disabled (JOURNEYS_NATS_URL not set)")
	}

	if cfg.RedisURL != "" {
		c, err := cache.NewRedisStatsCache(ctx, cfg.RedisURL, cfg.StatsTTL)
		if err != nil {
			// Stats still work uncached.
			logger.Warn("stats cache disabled", "error", err)
			a.cache = cache.NoopStatsCache{}
		} else {
			a.cache = c
		}
	} else {
		a.cache = cache.NoopStatsCache{}
	}

	a.svc = journey.New(st, a.publisher, a.cache, logger)
	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
