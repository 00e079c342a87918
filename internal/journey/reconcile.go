package journey

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/alfredjeanlab/journeys/internal/events"
	"github.com/alfredjeanlab/journeys/internal/model"
	"github.com/alfredjeanlab/journeys/internal/store"
)

// Changes counts the writes issued by one reconciliation pass.
type Changes struct {
	StepsInserted int `json:"steps_inserted"`
	StepsUpdated  int `json:"steps_updated"`
	StepsDeleted  int `json:"steps_deleted"`
	EdgesInserted int `json:"edges_inserted"`
	EdgesUpdated  int `json:"edges_updated"`
	EdgesDeleted  int `json:"edges_deleted"`
}

// Empty reports whether the pass issued no writes.
func (c Changes) Empty() bool {
	return c == Changes{}
}

// SetStepMap replaces the graph of a journey with desired and returns the
// resulting graph. Nodes are matched by external id: new keys are inserted,
// known keys are updated in place and missing keys are deleted together with
// every edge touching them. Edges are then matched by (parent, child); child
// references that name no node of the resulting graph are skipped. All reads
// and writes run in one transaction, and applying the same map twice issues
// no writes the second time.
func (s *Service) SetStepMap(ctx context.Context, journeyID int64, desired model.StepMap) (model.StepMap, error) {
	if err := model.ValidateStepMap(desired); err != nil {
		return nil, err
	}

	var (
		result  model.StepMap
		changes Changes
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetJourneyByID(ctx, journeyID); err != nil {
			return notFound(err, "journey %d", journeyID)
		}
		r := &reconciler{tx: tx, journeyID: journeyID}
		var err error
		result, err = r.run(ctx, desired)
		changes = r.changes
		return err
	})
	if err != nil {
		return nil, err
	}

	if changes.Empty() {
		s.logger.Debug("step map unchanged", "journey_id", journeyID)
		return result, nil
	}

	s.logger.Info("step map reconciled",
		"journey_id", journeyID,
		"steps_inserted", changes.StepsInserted,
		"steps_updated", changes.StepsUpdated,
		"steps_deleted", changes.StepsDeleted,
		"edges_inserted", changes.EdgesInserted,
		"edges_updated", changes.EdgesUpdated,
		"edges_deleted", changes.EdgesDeleted,
	)
	s.invalidateStats(ctx, journeyID)
	s.publish(ctx, events.TopicStepsReconciled, journeyID, events.StepsReconciled{
		JourneyID:     journeyID,
		StepsInserted: changes.StepsInserted,
		StepsUpdated:  changes.StepsUpdated,
		StepsDeleted:  changes.StepsDeleted,
		EdgesInserted: changes.EdgesInserted,
		EdgesUpdated:  changes.EdgesUpdated,
		EdgesDeleted:  changes.EdgesDeleted,
	})
	return result, nil
}

// GetStepMap returns the stored graph of a journey.
func (s *Service) GetStepMap(ctx context.Context, journeyID int64) (model.StepMap, error) {
	steps, err := s.store.GetSteps(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of journey %d: %w", journeyID, err)
	}
	children, err := s.store.GetJourneyStepChildren(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load step children of journey %d: %w", journeyID, err)
	}
	return model.ToStepMap(steps, children), nil
}

// StepChildren returns the outgoing edges of a step, oldest first.
func (s *Service) StepChildren(ctx context.Context, stepID int64) ([]*model.StepChild, error) {
	children, err := s.store.GetStepChildren(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to load children of step %d: %w", stepID, err)
	}
	return children, nil
}

// reconciler holds the working set of one pass. The working set starts as
// the stored graph and is mutated alongside every write, so the final map is
// built from it without reading the store again.
type reconciler struct {
	tx        store.Store
	journeyID int64
	changes   Changes

	steps map[string]*model.Step             // external id -> step
	edges map[int64]map[int64]*model.StepChild // parent id -> child id -> edge
}

// childRef is a resolved, deduplicated child reference of one node.
type childRef struct {
	step *model.Step
	data json.RawMessage
}

func (r *reconciler) run(ctx context.Context, desired model.StepMap) (model.StepMap, error) {
	current, err := r.tx.GetSteps(ctx, r.journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	currentEdges, err := r.tx.GetJourneyStepChildren(ctx, r.journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load step children: %w", err)
	}

	r.steps = make(map[string]*model.Step, len(current))
	for _, st := range current {
		r.steps[st.ExternalID] = st
	}
	r.edges = make(map[int64]map[int64]*model.StepChild)
	for _, c := range currentEdges {
		if r.edges[c.StepID] == nil {
			r.edges[c.StepID] = make(map[int64]*model.StepChild)
		}
		r.edges[c.StepID][c.ChildID] = c
	}

	keys := desired.Keys()
	if err := r.syncSteps(ctx, keys, desired); err != nil {
		return nil, err
	}
	staleEdges, err := r.deleteSteps(ctx, current, desired)
	if err != nil {
		return nil, err
	}
	return r.syncEdges(ctx, keys, desired, staleEdges)
}

// syncSteps inserts new nodes and updates changed ones.
func (r *reconciler) syncSteps(ctx context.Context, keys []string, desired model.StepMap) error {
	for _, key := range keys {
		entry := desired[key]
		data := model.NormalizeData(entry.Data)

		st, ok := r.steps[key]
		if !ok {
			st = &model.Step{
				JourneyID:  r.journeyID,
				ExternalID: key,
				Type:       entry.Type,
				Data:       data,
				X:          entry.X,
				Y:          entry.Y,
			}
			if err := r.tx.CreateStep(ctx, st); err != nil {
				return fmt.Errorf("failed to create step %q: %w", key, err)
			}
			r.steps[key] = st
			r.changes.StepsInserted++
			continue
		}

		if st.Type == entry.Type && st.X == entry.X && st.Y == entry.Y && model.DataEqual(st.Data, data) {
			continue
		}
		st.Type = entry.Type
		st.X = entry.X
		st.Y = entry.Y
		st.Data = data
		if err := r.tx.UpdateStep(ctx, st); err != nil {
			return fmt.Errorf("failed to update step %q: %w", key, err)
		}
		r.changes.StepsUpdated++
	}
	return nil
}

// deleteSteps removes stored nodes absent from desired in one batch and
// returns the ids of the edges that touched them. Those edges are dropped
// from the working set here and deleted with the edge batch.
func (r *reconciler) deleteSteps(ctx context.Context, current []*model.Step, desired model.StepMap) ([]int64, error) {
	var ids []int64
	gone := make(map[int64]bool)
	for _, st := range current {
		if _, ok := desired[st.ExternalID]; ok {
			continue
		}
		ids = append(ids, st.ID)
		gone[st.ID] = true
		delete(r.steps, st.ExternalID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.tx.DeleteSteps(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to delete %d steps: %w", len(ids), err)
	}
	r.changes.StepsDeleted = len(ids)

	var stale []int64
	for parentID, byChild := range r.edges {
		for childID, c := range byChild {
			if gone[parentID] || gone[childID] {
				stale = append(stale, c.ID)
				delete(byChild, childID)
			}
		}
		if gone[parentID] {
			delete(r.edges, parentID)
		}
	}
	return stale, nil
}

// syncEdges inserts and updates the declared edges of every node, then
// deletes every edge that was not declared, together with stale, in one
// batch. It returns the canonical map of the working set.
func (r *reconciler) syncEdges(ctx context.Context, keys []string, desired model.StepMap, stale []int64) (model.StepMap, error) {
	result := make(model.StepMap, len(keys))
	deletes := stale

	for _, key := range keys {
		parent := r.steps[key]
		existing := r.edges[parent.ID]
		if existing == nil {
			existing = make(map[int64]*model.StepChild)
			r.edges[parent.ID] = existing
		}

		refs := r.resolveChildren(desired[key].Children)
		declared := make(map[int64]bool, len(refs))
		entry := model.StepMapEntry{
			Type: parent.Type,
			X:    parent.X,
			Y:    parent.Y,
			Data: model.NormalizeData(parent.Data),
		}

		for _, ref := range refs {
			child := ref.step
			declared[child.ID] = true

			c, ok := existing[child.ID]
			switch {
			case !ok:
				c = &model.StepChild{StepID: parent.ID, ChildID: child.ID, Data: ref.data}
				if err := r.tx.CreateStepChild(ctx, c); err != nil {
					return nil, fmt.Errorf("failed to create edge %q -> %q: %w", key, child.ExternalID, err)
				}
				existing[child.ID] = c
				r.changes.EdgesInserted++
			case !model.DataEqual(c.Data, ref.data):
				c.Data = ref.data
				if err := r.tx.UpdateStepChild(ctx, c); err != nil {
					return nil, fmt.Errorf("failed to update edge %q -> %q: %w", key, child.ExternalID, err)
				}
				r.changes.EdgesUpdated++
			}
			entry.Children = append(entry.Children, model.StepMapChild{
				ExternalID: child.ExternalID,
				Data:       model.NormalizeData(c.Data),
			})
		}

		for childID, c := range existing {
			if !declared[childID] {
				deletes = append(deletes, c.ID)
				delete(existing, childID)
			}
		}

		model.SortChildren(entry.Children)
		result[key] = entry
	}

	if len(deletes) > 0 {
		sort.Slice(deletes, func(i, j int) bool { return deletes[i] < deletes[j] })
		if err := r.tx.DeleteStepChildren(ctx, deletes); err != nil {
			return nil, fmt.Errorf("failed to delete %d edges: %w", len(deletes), err)
		}
		r.changes.EdgesDeleted = len(deletes)
	}
	return result, nil
}

// resolveChildren maps child references to nodes of the working set.
// References to unknown external ids are skipped. When a child is listed
// more than once the last payload wins.
func (r *reconciler) resolveChildren(children []model.StepMapChild) []childRef {
	refs := make([]childRef, 0, len(children))
	index := make(map[int64]int, len(children))
	for _, c := range children {
		st, ok := r.steps[c.ExternalID]
		if !ok {
			continue
		}
		data := model.NormalizeData(c.Data)
		if i, dup := index[st.ID]; dup {
			refs[i].data = data
			continue
		}
		index[st.ID] = len(refs)
		refs = append(refs, childRef{step: st, data: data})
	}
	return refs
}
