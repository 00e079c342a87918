// Package memory is an in-memory store.Store used by package tests. It
// enforces the same uniqueness and cascade rules as the Postgres schema,
// runs transactions on a private copy of the data that replaces the shared
// copy only on commit, and can fail a chosen write to exercise rollback.
package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/journeys/internal/model"
)

// ErrConstraint is returned for writes the Postgres schema would reject.
var ErrConstraint = errors.New("constraint violation")

// ErrInjected is the default error returned by a write chosen with FailOnWrite.
var ErrInjected = errors.New("injected write failure")

// Store is a store.Store holding everything in memory.
type Store struct {
	mu    sync.Mutex
	state *state

	// Now stamps created_at/updated_at; defaults to time.Now().UTC().
	Now func() time.Time

	writes   int
	failAt   int
	failWith error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		state: newState(),
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Writes returns the number of write statements issued so far, including
// writes of transactions that were rolled back.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// FailOnWrite makes the nth write from now (1-based) fail with err, or with
// ErrInjected when err is nil. n <= 0 disables injection.
func (s *Store) FailOnWrite(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	s.failAt = 0
	if n > 0 {
		s.failAt = s.writes + n
	}
	s.failWith = err
}

// write accounts for one write statement. Callers hold mu.
func (s *Store) write(op string) error {
	s.writes++
	if s.failAt > 0 && s.writes == s.failAt {
		s.failAt = 0
		return fmt.Errorf("%s: %w", op, s.failWith)
	}
	return nil
}

// state is one consistent copy of the data.
type state struct {
	seq       int64
	journeys  map[int64]*model.Journey
	steps     map[int64]*model.Step
	children  map[int64]*model.StepChild
	userSteps []*model.UserStep
}

func newState() *state {
	return &state{
		journeys: make(map[int64]*model.Journey),
		steps:    make(map[int64]*model.Step),
		children: make(map[int64]*model.StepChild),
	}
}

func (st *state) clone() *state {
	c := &state{
		seq:       st.seq,
		journeys:  make(map[int64]*model.Journey, len(st.journeys)),
		steps:     make(map[int64]*model.Step, len(st.steps)),
		children:  make(map[int64]*model.StepChild, len(st.children)),
		userSteps: make([]*model.UserStep, len(st.userSteps)),
	}
	for id, j := range st.journeys {
		c.journeys[id] = copyJourney(j)
	}
	for id, s := range st.steps {
		c.steps[id] = copyStep(s)
	}
	for id, ch := range st.children {
		c.children[id] = copyChild(ch)
	}
	for i, us := range st.userSteps {
		cp := *us
		c.userSteps[i] = &cp
	}
	return c
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

func copyJourney(j *model.Journey) *model.Journey {
	cp := *j
	if j.DeletedAt != nil {
		t := *j.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

func copyStep(s *model.Step) *model.Step {
	cp := *s
	cp.Data = append([]byte(nil), s.Data...)
	return &cp
}

func copyChild(c *model.StepChild) *model.StepChild {
	cp := *c
	cp.Data = append([]byte(nil), c.Data...)
	return &cp
}

// view runs store operations against one state. The shared store and each
// transaction get their own view.
type view struct {
	st    *state
	owner *Store
}

func (v *view) now() time.Time { return v.owner.Now() }

// Journeys

func (v *view) createJourney(j *model.Journey) error {
	if err := v.owner.write("create journey"); err != nil {
		return err
	}
	now := v.now()
	j.ID = v.st.nextID()
	j.CreatedAt, j.UpdatedAt = now, now
	v.st.journeys[j.ID] = copyJourney(j)
	return nil
}

func (v *view) liveJourney(id int64) (*model.Journey, bool) {
	j, ok := v.st.journeys[id]
	if !ok || j.DeletedAt != nil {
		return nil, false
	}
	return j, true
}

func (v *view) getJourney(id, projectID int64) (*model.Journey, error) {
	j, ok := v.liveJourney(id)
	if !ok || j.ProjectID != projectID {
		return nil, sql.ErrNoRows
	}
	return copyJourney(j), nil
}

func (v *view) getJourneyByID(id int64) (*model.Journey, error) {
	j, ok := v.liveJourney(id)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyJourney(j), nil
}

func (v *view) listJourneys(filter model.JourneyFilter) ([]*model.Journey, int, error) {
	var matched []*model.Journey
	search := strings.ToLower(filter.Search)
	for _, j := range v.st.journeys {
		if filter.ProjectID > 0 && j.ProjectID != filter.ProjectID {
			continue
		}
		if !filter.IncludeDeleted && j.DeletedAt != nil {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(j.Name), search) {
			continue
		}
		matched = append(matched, copyJourney(j))
	}
	sortJourneys(matched, filter.Sort)

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	if len(matched) == 0 {
		total = 0
	}
	return matched, total, nil
}

// sortJourneys mirrors the column whitelist of the Postgres store; unknown
// columns fall back to newest id first.
func sortJourneys(js []*model.Journey, order string) {
	desc := strings.HasPrefix(order, "-")
	col := strings.TrimPrefix(order, "-")
	less := func(a, b *model.Journey) bool { return a.ID < b.ID }
	switch col {
	case "id":
	case "name":
		less = func(a, b *model.Journey) bool { return a.Name < b.Name }
	case "created_at":
		less = func(a, b *model.Journey) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated_at":
		less = func(a, b *model.Journey) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		desc = true
	}
	sort.SliceStable(js, func(i, j int) bool {
		if desc {
			return less(js[j], js[i])
		}
		return less(js[i], js[j])
	})
}

func (v *view) updateJourney(j *model.Journey) error {
	if err := v.owner.write("update journey"); err != nil {
		return err
	}
	cur, ok := v.liveJourney(j.ID)
	if !ok {
		return sql.ErrNoRows
	}
	cur.Name = j.Name
	cur.Description = j.Description
	cur.UpdatedAt = v.now()
	j.ProjectID, j.CreatedAt, j.UpdatedAt = cur.ProjectID, cur.CreatedAt, cur.UpdatedAt
	return nil
}

func (v *view) softDeleteJourney(id int64) error {
	if err := v.owner.write("soft delete journey"); err != nil {
		return err
	}
	cur, ok := v.liveJourney(id)
	if !ok {
		return sql.ErrNoRows
	}
	now := v.now()
	cur.DeletedAt = &now
	cur.UpdatedAt = now
	return nil
}

// Steps

func (v *view) createStep(s *model.Step) error {
	if err := v.owner.write("create step"); err != nil {
		return err
	}
	if _, ok := v.st.journeys[s.JourneyID]; !ok {
		return fmt.Errorf("journey %d does not exist: %w", s.JourneyID, ErrConstraint)
	}
	for _, other := range v.st.steps {
		if other.JourneyID == s.JourneyID && other.ExternalID == s.ExternalID {
			return fmt.Errorf("duplicate external id %q in journey %d: %w", s.ExternalID, s.JourneyID, ErrConstraint)
		}
	}
	now := v.now()
	s.ID = v.st.nextID()
	s.Data = model.NormalizeData(s.Data)
	s.CreatedAt, s.UpdatedAt = now, now
	v.st.steps[s.ID] = copyStep(s)
	return nil
}

func (v *view) updateStep(s *model.Step) error {
	if err := v.owner.write("update step"); err != nil {
		return err
	}
	cur, ok := v.st.steps[s.ID]
	if !ok {
		return sql.ErrNoRows
	}
	for _, other := range v.st.steps {
		if other.ID != s.ID && other.JourneyID == cur.JourneyID && other.ExternalID == s.ExternalID {
			return fmt.Errorf("duplicate external id %q in journey %d: %w", s.ExternalID, cur.JourneyID, ErrConstraint)
		}
	}
	s.Data = model.NormalizeData(s.Data)
	s.UpdatedAt = v.now()
	cur.ExternalID, cur.Type, cur.Data, cur.X, cur.Y, cur.UpdatedAt = s.ExternalID, s.Type, append([]byte(nil), s.Data...), s.X, s.Y, s.UpdatedAt
	return nil
}

func (v *view) deleteSteps(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := v.owner.write("delete steps"); err != nil {
		return err
	}
	gone := make(map[int64]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
		delete(v.st.steps, id)
	}
	for id, c := range v.st.children {
		if gone[c.StepID] || gone[c.ChildID] {
			delete(v.st.children, id)
		}
	}
	return nil
}

func (v *view) getStep(id int64) (*model.Step, error) {
	s, ok := v.st.steps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyStep(s), nil
}

func (v *view) getSteps(journeyID int64) []*model.Step {
	var out []*model.Step
	for _, s := range v.st.steps {
		if s.JourneyID == journeyID {
			out = append(out, copyStep(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *view) getEntrance(journeyID int64) (*model.Step, error) {
	for _, s := range v.getSteps(journeyID) {
		if s.Type == model.StepEntrance {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

// Step children

func (v *view) createStepChild(c *model.StepChild) error {
	if err := v.owner.write("create step child"); err != nil {
		return err
	}
	parent, ok := v.st.steps[c.StepID]
	if !ok {
		return fmt.Errorf("step %d does not exist: %w", c.StepID, ErrConstraint)
	}
	child, ok := v.st.steps[c.ChildID]
	if !ok {
		return fmt.Errorf("step %d does not exist: %w", c.ChildID, ErrConstraint)
	}
	if parent.JourneyID != child.JourneyID {
		return fmt.Errorf("edge %d -> %d crosses journeys: %w", c.StepID, c.ChildID, ErrConstraint)
	}
	for _, other := range v.st.children {
		if other.StepID == c.StepID && other.ChildID == c.ChildID {
			return fmt.Errorf("duplicate edge %d -> %d: %w", c.StepID, c.ChildID, ErrConstraint)
		}
	}
	now := v.now()
	c.ID = v.st.nextID()
	c.Data = model.NormalizeData(c.Data)
	c.CreatedAt, c.UpdatedAt = now, now
	v.st.children[c.ID] = copyChild(c)
	return nil
}

func (v *view) updateStepChild(c *model.StepChild) error {
	if err := v.owner.write("update step child"); err != nil {
		return err
	}
	cur, ok := v.st.children[c.ID]
	if !ok {
		return sql.ErrNoRows
	}
	c.Data = model.NormalizeData(c.Data)
	c.UpdatedAt = v.now()
	cur.Data = append([]byte(nil), c.Data...)
	cur.UpdatedAt = c.UpdatedAt
	return nil
}

func (v *view) deleteStepChildren(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := v.owner.write("delete step children"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(v.st.children, id)
	}
	return nil
}

func (v *view) getStepChildren(stepID int64) []*model.StepChild {
	var out []*model.StepChild
	for _, c := range v.st.children {
		if c.StepID == stepID {
			out = append(out, copyChild(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *view) getJourneyStepChildren(journeyID int64) []*model.StepChild {
	var out []*model.StepChild
	for _, c := range v.st.children {
		if s, ok := v.st.steps[c.StepID]; ok && s.JourneyID == journeyID {
			out = append(out, copyChild(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Progression

func (v *view) recordUserStep(us *model.UserStep) error {
	if err := v.owner.write("record user step"); err != nil {
		return err
	}
	us.ID = v.st.nextID()
	if us.CreatedAt.IsZero() {
		us.CreatedAt = v.now()
	}
	cp := *us
	v.st.userSteps = append(v.st.userSteps, &cp)
	return nil
}

// newer reports whether a sorts before b in created_at DESC, id DESC order.
func newer(a, b *model.UserStep) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (v *view) latest(match func(*model.UserStep) bool) (*model.UserStep, error) {
	var best *model.UserStep
	for _, us := range v.st.userSteps {
		if match(us) && (best == nil || newer(us, best)) {
			best = us
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	cp := *best
	return &cp, nil
}

func (v *view) getUserJourneyIDs(userID int64) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, us := range v.st.userSteps {
		if us.UserID == userID && !seen[us.JourneyID] {
			seen[us.JourneyID] = true
			ids = append(ids, us.JourneyID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (v *view) countLatestUserSteps(journeyID int64) map[int64]int {
	latest := make(map[int64]*model.UserStep)
	for _, us := range v.st.userSteps {
		if us.JourneyID != journeyID {
			continue
		}
		if cur, ok := latest[us.UserID]; !ok || newer(us, cur) {
			latest[us.UserID] = us
		}
	}
	counts := make(map[int64]int)
	for _, us := range latest {
		counts[us.StepID]++
	}
	return counts
}
