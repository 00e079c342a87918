package journey

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/journeys/internal/events"
	"github.com/alfredjeanlab/journeys/internal/model"
)

// RecordStep appends a progression record for userID at stepID. The journey
// is taken from the step. A zero at records the current time.
func (s *Service) RecordStep(ctx context.Context, userID, stepID int64, typ model.UserStepType, at time.Time) (*model.UserStep, error) {
	if typ == "" {
		typ = model.UserStepCompleted
	}
	step, err := s.store.GetStep(ctx, stepID)
	if err != nil {
		return nil, notFound(err, "step %d", stepID)
	}
	if at.IsZero() {
		at = s.now()
	}

	us := &model.UserStep{
		UserID:    userID,
		JourneyID: step.JourneyID,
		StepID:    stepID,
		Type:      typ,
		CreatedAt: at.UTC(),
	}
	if err := s.store.RecordUserStep(ctx, us); err != nil {
		return nil, fmt.Errorf("failed to record step %d for user %d: %w", stepID, userID, err)
	}

	s.invalidateStats(ctx, us.JourneyID)
	s.publish(ctx, events.TopicUserStepRecorded, us.JourneyID, events.UserStepRecorded{UserStep: us})
	return us, nil
}

// Latest returns the most recent progression record of a user in a journey.
// Records with the same timestamp are ordered by id.
func (s *Service) Latest(ctx context.Context, userID, journeyID int64) (*model.UserStep, error) {
	us, err := s.store.LastUserStep(ctx, userID, journeyID)
	if err != nil {
		return nil, notFound(err, "latest step of user %d in journey %d", userID, journeyID)
	}
	return us, nil
}

// LatestOfType returns the most recent record of a user at a step with the
// given status tag; an empty tag means completed.
func (s *Service) LatestOfType(ctx context.Context, userID, stepID int64, typ model.UserStepType) (*model.UserStep, error) {
	if typ == "" {
		typ = model.UserStepCompleted
	}
	us, err := s.store.GetUserStep(ctx, userID, stepID, typ)
	if err != nil {
		return nil, notFound(err, "%s record of user %d at step %d", typ, userID, stepID)
	}
	return us, nil
}

// JourneyIDsForUser lists the journeys a user has any progression record in.
func (s *Service) JourneyIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.store.GetUserJourneyIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list journeys of user %d: %w", userID, err)
	}
	return ids, nil
}

// Step returns a single step by id.
func (s *Service) Step(ctx context.Context, id int64) (*model.Step, error) {
	step, err := s.store.GetStep(ctx, id)
	if err != nil {
		return nil, notFound(err, "step %d", id)
	}
	return step, nil
}
