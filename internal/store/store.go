package store

import (
	"context"

	"github.com/alfredjeanlab/journeys/internal/model"
)

// Store defines the persistence interface for journeys and their graphs.
// Lookups that miss return sql.ErrNoRows.
type Store interface {
	// Journeys
	CreateJourney(ctx context.Context, journey *model.Journey) error
	GetJourney(ctx context.Context, id, projectID int64) (*model.Journey, error)
	GetJourneyByID(ctx context.Context, id int64) (*model.Journey, error) // unscoped; still excludes soft-deleted journeys
	ListJourneys(ctx context.Context, filter model.JourneyFilter) ([]*model.Journey, int, error) // returns journeys, total count, error
	UpdateJourney(ctx context.Context, journey *model.Journey) error
	SoftDeleteJourney(ctx context.Context, id int64) error

	// Steps
	CreateStep(ctx context.Context, step *model.Step) error
	UpdateStep(ctx context.Context, step *model.Step) error
	DeleteSteps(ctx context.Context, ids []int64) error
	GetStep(ctx context.Context, id int64) (*model.Step, error)
	GetSteps(ctx context.Context, journeyID int64) ([]*model.Step, error)
	GetEntrance(ctx context.Context, journeyID int64) (*model.Step, error)

	// Step children
	CreateStepChild(ctx context.Context, child *model.StepChild) error
	UpdateStepChild(ctx context.Context, child *model.StepChild) error
	DeleteStepChildren(ctx context.Context, ids []int64) error
	GetStepChildren(ctx context.Context, stepID int64) ([]*model.StepChild, error)
	GetJourneyStepChildren(ctx context.Context, journeyID int64) ([]*model.StepChild, error)

	// Progression
	RecordUserStep(ctx context.Context, us *model.UserStep) error
	LastUserStep(ctx context.Context, userID, journeyID int64) (*model.UserStep, error)
	GetUserStep(ctx context.Context, userID, stepID int64, typ model.UserStepType) (*model.UserStep, error)
	GetUserJourneyIDs(ctx context.Context, userID int64) ([]int64, error)
	CountLatestUserSteps(ctx context.Context, journeyID int64) (map[int64]int, error) // step id -> users whose latest record is that step

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
