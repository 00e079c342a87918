package events

import (
	"context"

	"github.com/alfredjeanlab/journeys/internal/model"
)

// Event topic constants
const (
	TopicJourneyCreated = "journeys.journey.created"
	TopicJourneyUpdated = "journeys.journey.updated"
	TopicJourneyDeleted = "journeys.journey.deleted"

	// Emitted after a step map reconciliation commits.
	TopicStepsReconciled = "journeys.steps.reconciled"

	// Emitted after a progression record is appended.
	TopicUserStepRecorded = "journeys.user_step.recorded"

	// TopicAll matches every journeys topic.
	TopicAll = "journeys.>"
)

// Event types

type JourneyCreated struct {
	Journey  *model.Journey `json:"journey"`
	Entrance *model.Step    `json:"entrance"`
}

type JourneyUpdated struct {
	Journey *model.Journey `json:"journey"`
	Changes map[string]any `json:"changes"` // field name -> new value
}

type JourneyDeleted struct {
	JourneyID int64 `json:"journey_id"`
}

// StepsReconciled carries the write counts of a reconciliation pass.
// A pass with no writes is not published.
type StepsReconciled struct {
	JourneyID     int64 `json:"journey_id"`
	StepsInserted int   `json:"steps_inserted"`
	StepsUpdated  int   `json:"steps_updated"`
	StepsDeleted  int   `json:"steps_deleted"`
	EdgesInserted int   `json:"edges_inserted"`
	EdgesUpdated  int   `json:"edges_updated"`
	EdgesDeleted  int   `json:"edges_deleted"`
}

type UserStepRecorded struct {
	UserStep *model.UserStep `json:"user_step"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
