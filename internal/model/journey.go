package model

import "time"

// Journey is a named, project-scoped workflow definition. Its steps live in
// the step store and are only mutated through reconciliation.
type Journey struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the journey has been soft-deleted.
func (j *Journey) IsDeleted() bool {
	return j.DeletedAt != nil
}

// JourneyParams holds the caller-supplied fields for creating a journey.
type JourneyParams struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateJourneyParams holds a field-level update. Nil fields are left untouched.
type UpdateJourneyParams struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Apply copies the non-nil fields of p onto j.
func (p UpdateJourneyParams) Apply(j *Journey) {
	if p.Name != nil {
		j.Name = *p.Name
	}
	if p.Description != nil {
		j.Description = *p.Description
	}
}

// JourneyFilter holds criteria for listing journeys.
type JourneyFilter struct {
	ProjectID      int64  `json:"project_id,omitempty"` // 0 = every project
	Search         string `json:"search,omitempty"`     // case-insensitive match on name
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
	Sort           string `json:"sort,omitempty"` // e.g. "-updated_at", "name"; prefix "-" = descending
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}
