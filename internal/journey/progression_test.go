package journey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alfredjeanlab/journeys/internal/events"
	"github.com/alfredjeanlab/journeys/internal/model"
	"github.com/google/go-cmp/cmp"
)

func TestRecordStep(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	j := env.bareJourney(t)
	mustSet(t, env, j.ID, model.StepMap{"a": {Type: model.StepEntrance}})
	stepID := stepIDs(t, env, j.ID)["a"]
	env.cache.invalidated = nil

	us, err := env.svc.RecordStep(ctx, 42, stepID, "", time.Time{})
	if err != nil {
		t.Fatalf("RecordStep: %v", err)
	}
	want := &model.UserStep{ID: us.ID, UserID: 42, JourneyID: j.ID, StepID: stepID, Type: model.UserStepCompleted, CreatedAt: testNow}
	if diff := cmp.Diff(want, us); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{j.ID}, env.cache.invalidated); diff != "" {
		t.Errorf("invalidations mismatch (-want +got):\n%s", diff)
	}
	last := env.pub.Events[len(env.pub.Events)-1]
	if last.Topic != events.TopicUserStepRecorded {
		t.Errorf("last topic = %q, want %q", last.Topic, events.TopicUserStepRecorded)
	}

	at := testNow.Add(-time.Hour)
	us, err = env.svc.RecordStep(ctx, 42, stepID, model.UserStepDelay, at)
	if err != nil {
		t.Fatal(err)
	}
	if !us.CreatedAt.Equal(at) || us.Type != model.UserStepDelay {
		t.Errorf("explicit time/type not kept: %+v", us)
	}
}

func TestRecordStep_UnknownStep(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.RecordStep(context.Background(), 1, 999, model.UserStepCompleted, time.Time{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if env.store.Writes() != 0 {
		t.Errorf("unknown step issued %d writes", env.store.Writes())
	}
}

func TestLatest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	j := env.bareJourney(t)
	mustSet(t, env, j.ID, model.StepMap{
		"a": {Type: model.StepEntrance},
		"b": {Type: model.StepAction},
		"c": {Type: model.StepAction},
	})
	ids := stepIDs(t, env, j.ID)

	t1 := testNow.Add(-2 * time.Hour)
	t2 := testNow.Add(-time.Hour)
	record := func(step string, at time.Time) {
		t.Helper()
		if _, err := env.svc.RecordStep(ctx, 7, ids[step], model.UserStepCompleted, at); err != nil {
			t.Fatal(err)
		}
	}
	record("b", t2)
	record("a", t1) // appended later but older
	record("c", t2) // same instant as b, recorded after it

	got, err := env.svc.Latest(ctx, 7, j.ID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.StepID != ids["c"] {
		t.Errorf("Latest step = %d, want %d (c)", got.StepID, ids["c"])
	}

	if _, err := env.svc.Latest(ctx, 8, j.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest for user without records: got %v, want ErrNotFound", err)
	}
}

func TestLatestOfType(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	j := env.bareJourney(t)
	mustSet(t, env, j.ID, model.StepMap{"gate": {Type: model.StepGate}})
	stepID := stepIDs(t, env, j.ID)["gate"]

	pending, err := env.svc.RecordStep(ctx, 3, stepID, model.UserStepPending, testNow.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.LatestOfType(ctx, 3, stepID, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no completed record yet: got %v, want ErrNotFound", err)
	}
	got, err := env.svc.LatestOfType(ctx, 3, stepID, model.UserStepPending)
	if err != nil || got.ID != pending.ID {
		t.Fatalf("LatestOfType(pending) = %+v, %v", got, err)
	}

	done, err := env.svc.RecordStep(ctx, 3, stepID, model.UserStepCompleted, testNow)
	if err != nil {
		t.Fatal(err)
	}
	got, err = env.svc.LatestOfType(ctx, 3, stepID, "")
	if err != nil || got.ID != done.ID {
		t.Fatalf("LatestOfType(default) = %+v, %v", got, err)
	}
}

func TestJourneyIDsForUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	var stepOf []int64
	for i := 0; i < 3; i++ {
		j := env.bareJourney(t)
		mustSet(t, env, j.ID, model.StepMap{"a": {Type: model.StepEntrance}})
		stepOf = append(stepOf, stepIDs(t, env, j.ID)["a"])
	}

	for _, s := range []int64{stepOf[2], stepOf[0], stepOf[2]} {
		if _, err := env.svc.RecordStep(ctx, 5, s, "", time.Time{}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := env.svc.JourneyIDsForUser(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	s0, _ := env.svc.Step(ctx, stepOf[0])
	s2, _ := env.svc.Step(ctx, stepOf[2])
	if diff := cmp.Diff([]int64{s0.JourneyID, s2.JourneyID}, got); diff != "" {
		t.Errorf("journey ids mismatch (-want +got):\n%s", diff)
	}
}

func TestProgressionOutlivesStepDeletion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	j := env.bareJourney(t)
	mustSet(t, env, j.ID, model.StepMap{"a": {Type: model.StepEntrance}, "b": {Type: model.StepAction}})
	b := stepIDs(t, env, j.ID)["b"]
	if _, err := env.svc.RecordStep(ctx, 1, b, "", time.Time{}); err != nil {
		t.Fatal(err)
	}

	mustSet(t, env, j.ID, model.StepMap{"a": {Type: model.StepEntrance}})

	got, err := env.svc.Latest(ctx, 1, j.ID)
	if err != nil {
		t.Fatalf("Latest after step deletion: %v", err)
	}
	if got.StepID != b {
		t.Errorf("history rewritten: step %d, want %d", got.StepID, b)
	}
	if _, err := env.svc.Step(ctx, b); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted step lookup: got %v, want ErrNotFound", err)
	}
}
