package journey

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/journeys/internal/events"
	"github.com/alfredjeanlab/journeys/internal/model"
	"github.com/alfredjeanlab/journeys/internal/store"
)

// Create validates p, then inserts the journey and its entrance step in one
// transaction. A failure of either write leaves nothing behind.
func (s *Service) Create(ctx context.Context, projectID int64, p model.JourneyParams) (*model.Journey, error) {
	if err := model.ValidateJourneyParams(projectID, p); err != nil {
		return nil, err
	}

	externalID, err := s.entranceID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate entrance id: %w", err)
	}

	j := &model.Journey{
		ProjectID:   projectID,
		Name:        strings.TrimSpace(p.Name),
		Description: p.Description,
	}
	var entrance *model.Step

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateJourney(ctx, j); err != nil {
			return fmt.Errorf("failed to create journey: %w", err)
		}
		entrance = &model.Step{
			JourneyID:  j.ID,
			ExternalID: externalID,
			Type:       model.StepEntrance,
			Data:       model.NormalizeData(nil),
		}
		if err := tx.CreateStep(ctx, entrance); err != nil {
			return fmt.Errorf("failed to create entrance step: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("journey created", "journey_id", j.ID, "project_id", projectID, "entrance_id", entrance.ID)
	s.publish(ctx, events.TopicJourneyCreated, j.ID, events.JourneyCreated{Journey: j, Entrance: entrance})
	return j, nil
}

// Get returns the journey with the given id in project projectID. Missing,
// soft-deleted and foreign journeys all yield ErrNotFound.
func (s *Service) Get(ctx context.Context, id, projectID int64) (*model.Journey, error) {
	j, err := s.store.GetJourney(ctx, id, projectID)
	if err != nil {
		return nil, notFound(err, "journey %d", id)
	}
	return j, nil
}

// Update applies the non-nil fields of p to a live journey.
func (s *Service) Update(ctx context.Context, id int64, p model.UpdateJourneyParams) (*model.Journey, error) {
	if p.Name != nil {
		if err := model.ValidateJourneyName(*p.Name); err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(*p.Name)
		p.Name = &trimmed
	}

	var j *model.Journey
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		j, err = tx.GetJourneyByID(ctx, id)
		if err != nil {
			return notFound(err, "journey %d", id)
		}
		p.Apply(j)
		if err := tx.UpdateJourney(ctx, j); err != nil {
			return fmt.Errorf("failed to update journey %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicJourneyUpdated, id, events.JourneyUpdated{Journey: j, Changes: changes(p)})
	return j, nil
}

func changes(p model.UpdateJourneyParams) map[string]any {
	c := make(map[string]any)
	if p.Name != nil {
		c["name"] = *p.Name
	}
	if p.Description != nil {
		c["description"] = *p.Description
	}
	return c
}

// Delete marks a journey as deleted. Its steps, edges and progression
// records are retained.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.SoftDeleteJourney(ctx, id); err != nil {
		return notFound(err, "journey %d", id)
	}
	s.logger.Info("journey deleted", "journey_id", id)
	s.publish(ctx, events.TopicJourneyDeleted, id, events.JourneyDeleted{JourneyID: id})
	return nil
}

// List returns one page of the journeys of a project and the total number
// of matches. filter.ProjectID is overridden by projectID, which must be
// positive.
func (s *Service) List(ctx context.Context, projectID int64, filter model.JourneyFilter) ([]*model.Journey, int, error) {
	if err := model.ValidateProjectID(projectID); err != nil {
		return nil, 0, err
	}
	filter.ProjectID = projectID
	journeys, total, err := s.store.ListJourneys(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list journeys: %w", err)
	}
	return journeys, total, nil
}

// All returns every live journey of a project, newest first.
func (s *Service) All(ctx context.Context, projectID int64) ([]*model.Journey, error) {
	journeys, _, err := s.List(ctx, projectID, model.JourneyFilter{Sort: "-id"})
	return journeys, err
}

// Entrance returns the entrance step of a journey.
func (s *Service) Entrance(ctx context.Context, journeyID int64) (*model.Step, error) {
	step, err := s.store.GetEntrance(ctx, journeyID)
	if err != nil {
		return nil, notFound(err, "entrance of journey %d", journeyID)
	}
	return step, nil
}
