// Package journey implements the journey step-graph engine: the lifecycle of
// journeys, atomic reconciliation of step maps against the stored graph,
// per-user progression tracking and live per-step population counts.
package journey

import (
	"context"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/journeys/internal/cache"
	"github.com/alfredjeanlab/journeys/internal/events"
	"github.com/alfredjeanlab/journeys/internal/idgen"
	"github.com/alfredjeanlab/journeys/internal/store"
)

// Service is the entry point used by the editor and the execution runtime.
type Service struct {
	store     store.Store
	publisher events.Publisher
	cache     cache.StatsCache
	logger    *slog.Logger

	now        func() time.Time
	entranceID func() (string, error)
}

// New returns a Service backed by s. A nil publisher, cache or logger is
// replaced by a no-op publisher, a no-op cache and slog.Default().
func New(s store.Store, p events.Publisher, c cache.StatsCache, logger *slog.Logger) *Service {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	if c == nil {
		c = cache.NoopStatsCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      s,
		publisher:  p,
		cache:      c,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		entranceID: idgen.EntranceID,
	}
}

// publish emits an event. Publishing is best-effort; failures are logged but
// do not fail the caller.
func (s *Service) publish(ctx context.Context, topic string, journeyID int64, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "journey_id", journeyID, "error", err)
	}
}

// invalidateStats drops the cached stats of a journey. Failures are logged;
// the cache TTL bounds staleness.
func (s *Service) invalidateStats(ctx context.Context, journeyID int64) {
	if err := s.cache.Invalidate(ctx, journeyID); err != nil {
		s.logger.Warn("failed to invalidate stats cache", "journey_id", journeyID, "error", err)
	}
}
