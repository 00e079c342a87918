package journey

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/journeys/internal/model"
)

// StepStats returns, for every step of a journey, the number of users whose
// most recent progression record points at it. Steps without users report
// zero. Records pointing at deleted steps are not reported.
//
// The cache generation is read before the aggregation so a result that races
// with a concurrent invalidation is stored under the superseded generation.
func (s *Service) StepStats(ctx context.Context, journeyID int64) (model.StepStats, error) {
	gen, genErr := s.cache.Generation(ctx, journeyID)
	if genErr != nil {
		s.logger.Warn("failed to read stats cache generation", "journey_id", journeyID, "error", genErr)
	} else if stats, ok, err := s.cache.Get(ctx, journeyID, gen); err != nil {
		s.logger.Warn("failed to read stats cache", "journey_id", journeyID, "error", err)
	} else if ok {
		return stats, nil
	}

	steps, err := s.store.GetSteps(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of journey %d: %w", journeyID, err)
	}
	counts, err := s.store.CountLatestUserSteps(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count users of journey %d: %w", journeyID, err)
	}

	stats := make(model.StepStats, len(steps))
	for _, st := range steps {
		stats[st.ExternalID] = model.StepStat{Users: counts[st.ID]}
	}

	if genErr == nil {
		if err := s.cache.Set(ctx, journeyID, gen, stats); err != nil {
			s.logger.Warn("failed to write stats cache", "journey_id", journeyID, "error", err)
		}
	}
	return stats, nil
}
