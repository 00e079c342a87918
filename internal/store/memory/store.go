package memory

import (
	"context"

	"github.com/alfredjeanlab/journeys/internal/model"
	"github.com/alfredjeanlab/journeys/internal/store"
)

var (
	_ store.Store = (*Store)(nil)
	_ store.Store = (*txStore)(nil)
)

// RunInTransaction runs fn against a private copy of the data. The copy
// replaces the shared data only if fn returns nil. Transactions are
// serialized with every other operation on the store, so fn must not call
// Writes or FailOnWrite.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txStore{view: view{st: s.state.clone(), owner: s}}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.st
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) view() *view {
	return &view{st: s.state, owner: s}
}

func (s *Store) CreateJourney(_ context.Context, journey *model.Journey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.createJourney(journey)
}

func (s *Store) GetJourney(_ context.Context, id, projectID int64) (*model.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.getJourney(id, projectID)
}

func (s *Store) GetJourneyByID(_ context.Context, id int64) (*model.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.getJourneyByID(id)
}

func (s *Store) ListJourneys(_ context.Context, filter model.JourneyFilter) ([]*model.Journey, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.listJourneys(filter)
}

func (s *Store) UpdateJourney(_ context.Context, journey *model.Journey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.updateJourney(journey)
}

func (s *Store) SoftDeleteJourney(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.softDeleteJourney(id)
}

func (s *Store) CreateStep(_ context.Context, step *model.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.createStep(step)
}

func (s *Store) UpdateStep(_ context.Context, step *model.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.updateStep(step)
}

func (s *Store) DeleteSteps(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.deleteSteps(ids)
}

func (s *Store) GetStep(_ context.Context, id int64) (*model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.getStep(id)
}

func (s *Store) GetSteps(_ context.Context, journeyID int64) ([]*model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.getSteps(journeyID), nil
}

func (s *Store) GetEntrance(_ context.Context, journeyID int64) (*model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.getEntrance(journeyID)
}

func (s *Store) CreateStepChild(_ context.Context, child *model.StepChild) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.createStepChild(child)
}

func (s *Store) UpdateStepChild(_ context.Context, child *model.StepChild) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.updateStepChild(child)
}

func (s *Store) DeleteStepChildren(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.deleteStepChildren(ids)
}

func (s *Store) GetStepChildren(_ context.Context, stepID int64) ([]*model.StepChild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.getStepChildren(stepID), nil
}

func (s *Store) GetJourneyStepChildren(_ context.Context, journeyID int64) ([]*model.StepChild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.getJourneyStepChildren(journeyID), nil
}

func (s *Store) RecordUserStep(_ context.Context, us *model.UserStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.recordUserStep(us)
}

func (s *Store) LastUserStep(_ context.Context, userID, journeyID int64) (*model.UserStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.latest(func(us *model.UserStep) bool {
		return us.UserID == userID && us.JourneyID == journeyID
	})
}

func (s *Store) GetUserStep(_ context.Context, userID, stepID int64, typ model.UserStepType) (*model.UserStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.latest(func(us *model.UserStep) bool {
		return us.UserID == userID && us.StepID == stepID && us.Type == typ
	})
}

func (s *Store) GetUserJourneyIDs(_ context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.getUserJourneyIDs(userID), nil
}

func (s *Store) CountLatestUserSteps(_ context.Context, journeyID int64) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view()
	return v.countLatestUserSteps(journeyID), nil
}

// txStore is the store.Store handed to a transaction function.
type txStore struct {
	view
}

// RunInTransaction reuses the enclosing transaction.
func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txStore) Close() error { return nil }

func (t *txStore) CreateJourney(_ context.Context, journey *model.Journey) error {
	v := &t.view
	return v.createJourney(journey)
}

func (t *txStore) GetJourney(_ context.Context, id, projectID int64) (*model.Journey, error) {
	v := &t.view
	return v.getJourney(id, projectID)
}

func (t *txStore) GetJourneyByID(_ context.Context, id int64) (*model.Journey, error) {
	v := &t.view
	return v.getJourneyByID(id)
}

func (t *txStore) ListJourneys(_ context.Context, filter model.JourneyFilter) ([]*model.Journey, int, error) {
	v := &t.view
	return v.listJourneys(filter)
}

func (t *txStore) UpdateJourney(_ context.Context, journey *model.Journey) error {
	v := &t.view
	return v.updateJourney(journey)
}

func (t *txStore) SoftDeleteJourney(_ context.Context, id int64) error {
	v := &t.view
	return v.softDeleteJourney(id)
}

func (t *txStore) CreateStep(_ context.Context, step *model.Step) error {
	v := &t.view
	return v.createStep(step)
}

func (t *txStore) UpdateStep(_ context.Context, step *model.Step) error {
	v := &t.view
	return v.updateStep(step)
}

func (t *txStore) DeleteSteps(_ context.Context, ids []int64) error {
	v := &t.view
	return v.deleteSteps(ids)
}

func (t *txStore) GetStep(_ context.Context, id int64) (*model.Step, error) {
	v := &t.view
	return v.getStep(id)
}

func (t *txStore) GetSteps(_ context.Context, journeyID int64) ([]*model.Step, error) {
	v := &t.view
	return v.getSteps(journeyID), nil
}

func (t *txStore) GetEntrance(_ context.Context, journeyID int64) (*model.Step, error) {
	v := &t.view
	return v.getEntrance(journeyID)
}

func (t *txStore) CreateStepChild(_ context.Context, child *model.StepChild) error {
	v := &t.view
	return v.createStepChild(child)
}

func (t *txStore) UpdateStepChild(_ context.Context, child *model.StepChild) error {
	v := &t.view
	return v.updateStepChild(child)
}

func (t *txStore) DeleteStepChildren(_ context.Context, ids []int64) error {
	v := &t.view
	return v.deleteStepChildren(ids)
}

func (t *txStore) GetStepChildren(_ context.Context, stepID int64) ([]*model.StepChild, error) {
	v := &t.view
	return v.getStepChildren(stepID), nil
}

func (t *txStore) GetJourneyStepChildren(_ context.Context, journeyID int64) ([]*model.StepChild, error) {
	v := &t.view
	return v.getJourneyStepChildren(journeyID), nil
}

func (t *txStore) RecordUserStep(_ context.Context, us *model.UserStep) error {
	v := &t.view
	return v.recordUserStep(us)
}

func (t *txStore) LastUserStep(_ context.Context, userID, journeyID int64) (*model.UserStep, error) {
	v := &t.view
	return v.latest(func(us *model.UserStep) bool {
		return us.UserID == userID && us.JourneyID == journeyID
	})
}

func (t *txStore) GetUserStep(_ context.Context, userID, stepID int64, typ model.UserStepType) (*model.UserStep, error) {
	v := &t.view
	return v.latest(func(us *model.UserStep) bool {
		return us.UserID == userID && us.StepID == stepID && us.Type == typ
	})
}

func (t *txStore) GetUserJourneyIDs(_ context.Context, userID int64) ([]int64, error) {
	v := &t.view
	return v.getUserJourneyIDs(userID), nil
}

func (t *txStore) CountLatestUserSteps(_ context.Context, journeyID int64) (map[int64]int, error) {
	v := &t.view
	return v.countLatestUserSteps(journeyID), nil
}
