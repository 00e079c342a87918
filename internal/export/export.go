// Package export writes journey graphs as JSONL backups and ships them to
// destinations on a schedule.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/journeys/internal/model"
	"github.com/alfredjeanlab/journeys/internal/store"
)

// Version is the format version written in the header record.
const Version = "1"

// Header is the first JSONL record written by ExportJSONL.
type Header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ProjectID    int64     `json:"project_id,omitempty"`
	JourneyCount int       `json:"journey_count"`
	StepCount    int       `json:"step_count"`
	EdgeCount    int       `json:"edge_count"`
}

// Record types following the header.
const (
	RecordJourney   = "journey"
	RecordStep      = "step"
	RecordStepChild = "step_child"
)

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every journey of a project (all projects when
// projectID is 0), including soft-deleted ones, followed by their steps and
// step children. Each group is sorted by id.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer, projectID int64) error {
	journeys, _, err := s.ListJourneys(ctx, model.JourneyFilter{
		ProjectID:      projectID,
		IncludeDeleted: true,
		Sort:           "id",
	})
	if err != nil {
		return fmt.Errorf("list journeys: %w", err)
	}
	sort.Slice(journeys, func(i, j int) bool { return journeys[i].ID < journeys[j].ID })

	var (
		steps    []*model.Step
		children []*model.StepChild
	)
	for _, j := range journeys {
		js, err := s.GetSteps(ctx, j.ID)
		if err != nil {
			return fmt.Errorf("get steps for journey %d: %w", j.ID, err)
		}
		steps = append(steps, js...)

		jc, err := s.GetJourneyStepChildren(ctx, j.ID)
		if err != nil {
			return fmt.Errorf("get step children for journey %d: %w", j.ID, err)
		}
		children = append(children, jc...)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].ID < steps[j].ID })
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(Header{
		Version:      Version,
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		ProjectID:    projectID,
		JourneyCount: len(journeys),
		StepCount:    len(steps),
		EdgeCount:    len(children),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, j := range journeys {
		if err := enc.Encode(record{Type: RecordJourney, Data: j}); err != nil {
			return fmt.Errorf("encode journey %d: %w", j.ID, err)
		}
	}
	for _, st := range steps {
		if err := enc.Encode(record{Type: RecordStep, Data: st}); err != nil {
			return fmt.Errorf("encode step %d: %w", st.ID, err)
		}
	}
	for _, c := range children {
		if err := enc.Encode(record{Type: RecordStepChild, Data: c}); err != nil {
			return fmt.Errorf("encode step child %d: %w", c.ID, err)
		}
	}

	return nil
}
