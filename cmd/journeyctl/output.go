package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/journeys/internal/model"
	"github.com/alfredjeanlab/journeys/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

// listResult is the JSON shape of the list command.
type listResult struct {
	Journeys []*model.Journey `json:"journeys"`
	Total    int              `json:"total"`
}

// journeyDetail is the JSON shape of the show command.
type journeyDetail struct {
	*model.Journey
	Entrance *model.Step `json:"entrance,omitempty"`
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printJourney(w io.Writer, j *model.Journey) {
	fmt.Fprintf(w, "%-12s %d\n", "ID:", j.ID)
	fmt.Fprintf(w, "%-12s %d\n", "Project:", j.ProjectID)
	fmt.Fprintf(w, "%-12s %s\n", "Name:", j.Name)
	if j.Description != "" {
		fmt.Fprintf(w, "%-12s %s\n", "Description:", j.Description)
	}
	fmt.Fprintf(w, "%-12s %s\n", "Created At:", j.CreatedAt.Format(timeLayout))
	fmt.Fprintf(w, "%-12s %s\n", "Updated At:", j.UpdatedAt.Format(timeLayout))
	if j.DeletedAt != nil {
		fmt.Fprintf(w, "%-12s %s\n", "Deleted At:", j.DeletedAt.Format(timeLayout))
	}
}

// nameWidth leaves room for the fixed columns of the journey table.
func nameWidth() int {
	if n := ui.Width(os.Stdout, 100) - 50; n > 20 {
		return n
	}
	return 20
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printJourneyTable(w io.Writer, journeys []*model.Journey, total int) {
	width := nameWidth()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROJECT\tNAME\tUPDATED\tDELETED")
	for _, j := range journeys {
		deleted := ""
		if j.DeletedAt != nil {
			deleted = "yes"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
			j.ID,
			j.ProjectID,
			truncate(j.Name, width),
			j.UpdatedAt.Format(timeLayout),
			deleted,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d journeys (%d total)\n", len(journeys), total)
}

func printStepMap(w io.Writer, m model.StepMap) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tTYPE\tX\tY\tCHILDREN")
	for _, key := range m.Keys() {
		e := m[key]
		children := make([]string, len(e.Children))
		for i, c := range e.Children {
			children[i] = c.ExternalID
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%s\n", key, e.Type, e.X, e.Y, strings.Join(children, ", "))
	}
	tw.Flush()
}

func printStats(w io.Writer, stats model.StepStats) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tUSERS")
	total := 0
	for _, key := range keys {
		fmt.Fprintf(tw, "%s\t%d\n", key, stats[key].Users)
		total += stats[key].Users
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d users in %d steps\n", total, len(stats))
}

func printPositions(w io.Writer, positions []position) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	// Status is last so its color codes do not skew column widths.
	fmt.Fprintln(tw, "JOURNEY\tSTEP\tAT\tSTATUS")
	for _, p := range positions {
		step := fmt.Sprintf("%d (removed)", p.UserStep.StepID)
		if p.Step != nil {
			step = p.Step.ExternalID
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			p.UserStep.JourneyID,
			step,
			p.UserStep.CreatedAt.Format(timeLayout),
			styler.Status(p.UserStep.Type),
		)
	}
	tw.Flush()
}
