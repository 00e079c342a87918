package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/journeys/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanJourney scans a single row into a model.Journey.
// The row must contain columns in the order defined by journeyColumns.
func scanJourney(row scannable) (*model.Journey, error) {
	var j model.Journey
	var deletedAt sql.NullTime
	err := row.Scan(&j.ID, &j.ProjectID, &j.Name, &j.Description, &j.CreatedAt, &j.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		j.DeletedAt = &t
	}
	return &j, nil
}

// scanJourneyWithTotal scans a row that has a leading total_count column
// followed by the standard journey columns. Used by queryListJourneys with
// COUNT(*) OVER().
func scanJourneyWithTotal(row scannable) (*model.Journey, int, error) {
	var total int
	var j model.Journey
	var deletedAt sql.NullTime
	err := row.Scan(&total, &j.ID, &j.ProjectID, &j.Name, &j.Description, &j.CreatedAt, &j.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, 0, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		j.DeletedAt = &t
	}
	return &j, total, nil
}

// scanStep scans a single row into a model.Step.
func scanStep(row scannable) (*model.Step, error) {
	var s model.Step
	var data []byte
	err := row.Scan(
		&s.ID,
		&s.JourneyID,
		&s.ExternalID,
		&s.Type,
		&data,
		&s.X,
		&s.Y,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Data = jsonData(data)
	return &s, nil
}

// scanSteps scans multiple rows into a slice of model.Step pointers.
func scanSteps(rows *sql.Rows) ([]*model.Step, error) {
	var steps []*model.Step
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

// scanStepChild scans a single row into a model.StepChild.
func scanStepChild(row scannable) (*model.StepChild, error) {
	var c model.StepChild
	var data []byte
	err := row.Scan(&c.ID, &c.StepID, &c.ChildID, &data, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Data = jsonData(data)
	return &c, nil
}

// scanStepChildren scans multiple rows into a slice of model.StepChild pointers.
func scanStepChildren(rows *sql.Rows) ([]*model.StepChild, error) {
	var children []*model.StepChild
	for rows.Next() {
		c, err := scanStepChild(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return children, nil
}

// scanUserStep scans a single row into a model.UserStep.
func scanUserStep(row scannable) (*model.UserStep, error) {
	var us model.UserStep
	err := row.Scan(&us.ID, &us.UserID, &us.JourneyID, &us.StepID, &us.Type, &us.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &us, nil
}

// jsonData copies a JSONB column value; NULL or empty becomes {}.
func jsonData(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage(`{}`)
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}
