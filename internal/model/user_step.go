package model

import "time"

// UserStepType is the status tag of a progression record. Tags are
// extensible; the constants below are the ones the execution runtime writes.
type UserStepType string

const (
	UserStepCompleted UserStepType = "completed"
	UserStepPending   UserStepType = "pending"
	UserStepDelay     UserStepType = "delay"
	UserStepError     UserStepType = "error"
)

// String returns the string representation of the status tag.
func (t UserStepType) String() string {
	return string(t)
}

// UserStep is an append-only record of a user visiting a step. StepID may
// point at a step that has since been removed from the graph.
type UserStep struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	JourneyID int64        `json:"journey_id"`
	StepID    int64        `json:"step_id"`
	Type      UserStepType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// StepStat is the live population of a single step.
type StepStat struct {
	Users int `json:"users"`
}

// StepStats maps step external ids to their live population.
type StepStats map[string]StepStat
