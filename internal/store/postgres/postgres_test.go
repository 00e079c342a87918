package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/journeys/internal/model"
	"github.com/alfredjeanlab/journeys/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var (
	journeyRowColumns   = []string{"id", "project_id", "name", "description", "created_at", "updated_at", "deleted_at"}
	journeyTotalColumns = append([]string{"total_count"}, journeyRowColumns...)
	stepRowColumns      = []string{"id", "journey_id", "external_id", "type", "data", "x", "y", "created_at", "updated_at"}
	childRowColumns     = []string{"id", "step_id", "child_id", "data", "created_at", "updated_at"}
	userStepRowColumns  = []string{"id", "user_id", "journey_id", "step_id", "type", "created_at"}
)

func TestParseSortClause(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  string
	}{
		{"", "id DESC"},
		{"name", "name ASC"},
		{"-updated_at", "updated_at DESC"},
		{"evil_column", "id DESC"},
		{"-evil; DROP TABLE journeys", "id DESC"},
	} {
		if got := parseSortClause(tc.input); got != tc.want {
			t.Errorf("parseSortClause(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestJSONData(t *testing.T) {
	if string(jsonData(nil)) != `{}` {
		t.Errorf("jsonData(nil) = %s", jsonData(nil))
	}
	in := []byte(`{"k":"v"}`)
	out := jsonData(in)
	in[2] = 'X'
	if string(out) != `{"k":"v"}` {
		t.Errorf("jsonData should copy its input, got %s", out)
	}
}

func TestQueryCreateJourney(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	j := &model.Journey{ProjectID: 3, Name: "Onboarding"}
	mock.ExpectQuery("INSERT INTO journeys").
		WithArgs(int64(3), "Onboarding", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(9), now, now))

	if err := queryCreateJourney(context.Background(), db, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.ID != 9 || j.CreatedAt.IsZero() {
		t.Fatalf("got id=%d created_at=%v", j.ID, j.CreatedAt)
	}
}

func TestQueryGetJourney(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM journeys WHERE id = \\$1 AND project_id = \\$2 AND deleted_at IS NULL").
		WithArgs(int64(9), int64(3)).
		WillReturnRows(sqlmock.NewRows(journeyRowColumns).AddRow(int64(9), int64(3), "Onboarding", "", now, now, nil))

	j, err := queryGetJourney(context.Background(), db, 9, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.ID != 9 || j.ProjectID != 3 || j.Name != "Onboarding" || j.DeletedAt != nil {
		t.Fatalf("unexpected journey: %+v", j)
	}
}

func TestQueryGetJourney_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM journeys").WithArgs(int64(9), int64(4)).WillReturnError(sql.ErrNoRows)

	if _, err := queryGetJourney(context.Background(), db, 9, 4); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryGetJourneyByID(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM journeys WHERE id = \\$1 AND deleted_at IS NULL").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(journeyRowColumns).AddRow(int64(9), int64(3), "Onboarding", "welcome", now, now, nil))

	j, err := queryGetJourneyByID(context.Background(), db, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.ProjectID != 3 || j.Description != "welcome" {
		t.Fatalf("unexpected journey: %+v", j)
	}
}

func TestQueryListJourneys(t *testing.T) {
	now := time.Now().UTC()

	for _, tc := range []struct {
		name      string
		filter    model.JourneyFilter
		queryPat  string
		args      []driver.Value
		wantCount int
		wantTotal int
	}{
		{
			name:      "NoFilter",
			filter:    model.JourneyFilter{},
			queryPat:  "SELECT COUNT\\(\\*\\) OVER\\(\\) AS total_count, .+ FROM journeys WHERE deleted_at IS NULL ORDER BY id DESC",
			wantCount: 2,
			wantTotal: 2,
		},
		{
			name:      "ByProject",
			filter:    model.JourneyFilter{ProjectID: 5},
			queryPat:  "SELECT .+ FROM journeys WHERE project_id = \\$1 AND deleted_at IS NULL ORDER BY",
			args:      []driver.Value{int64(5)},
			wantCount: 1,
			wantTotal: 1,
		},
		{
			name:     "IncludeDeleted",
			filter:   model.JourneyFilter{IncludeDeleted: true},
			queryPat: "SELECT .+ FROM journeys ORDER BY id DESC",
		},
		{
			name:      "Search",
			filter:    model.JourneyFilter{ProjectID: 5, Search: "welcome"},
			queryPat:  "SELECT .+ FROM journeys WHERE project_id = \\$1 AND deleted_at IS NULL AND name ILIKE .+\\$2.+ ORDER BY",
			args:      []driver.Value{int64(5), "welcome"},
			wantCount: 1,
			wantTotal: 1,
		},
		{
			name:      "LimitOffsetSort",
			filter:    model.JourneyFilter{Limit: 10, Offset: 20, Sort: "name"},
			queryPat:  "SELECT .+ FROM journeys WHERE deleted_at IS NULL ORDER BY name ASC LIMIT \\$1 OFFSET \\$2",
			args:      []driver.Value{10, 20},
			wantCount: 1,
			wantTotal: 31,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			eq := mock.ExpectQuery(tc.queryPat)
			if len(tc.args) > 0 {
				eq.WithArgs(tc.args...)
			}
			r := sqlmock.NewRows(journeyTotalColumns)
			for i := range tc.wantCount {
				r.AddRow(tc.wantTotal, int64(i+1), int64(5), "J", "", now, now, nil)
			}
			eq.WillReturnRows(r)

			journeys, total, err := queryListJourneys(context.Background(), db, tc.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(journeys) != tc.wantCount {
				t.Fatalf("expected %d journeys, got %d", tc.wantCount, len(journeys))
			}
			if total != tc.wantTotal {
				t.Fatalf("expected total=%d, got %d", tc.wantTotal, total)
			}
		})
	}
}

func TestQueryUpdateJourney(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	j := &model.Journey{ID: 9, Name: "Renamed", Description: "d"}
	mock.ExpectQuery("UPDATE journeys SET").
		WithArgs(int64(9), "Renamed", "d").
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "created_at", "updated_at"}).AddRow(int64(3), now, now))

	if err := queryUpdateJourney(context.Background(), db, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.ProjectID != 3 {
		t.Fatalf("expected project_id to be populated, got %d", j.ProjectID)
	}
}

func TestQuerySoftDeleteJourney(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE journeys SET deleted_at = NOW\\(\\)").WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := querySoftDeleteJourney(context.Background(), db, 9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuerySoftDeleteJourney_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE journeys SET deleted_at").WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := querySoftDeleteJourney(context.Background(), db, 9); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryCreateStep(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	s := &model.Step{JourneyID: 9, ExternalID: "entry", Type: model.StepEntrance, X: 1.5, Y: -2}
	mock.ExpectQuery("INSERT INTO journey_steps").
		WithArgs(int64(9), "entry", "entrance", []byte(`{}`), 1.5, float64(-2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(41), now, now))

	if err := queryCreateStep(context.Background(), db, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != 41 || string(s.Data) != `{}` {
		t.Fatalf("got id=%d data=%s", s.ID, s.Data)
	}
}

func TestQueryUpdateStep(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	s := &model.Step{ID: 41, ExternalID: "send", Type: model.StepAction, Data: json.RawMessage(`{ "campaign_id": 2 }`)}
	mock.ExpectQuery("UPDATE journey_steps SET").
		WithArgs(int64(41), "send", "action", []byte(`{"campaign_id":2}`), float64(0), float64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	if err := queryUpdateStep(context.Background(), db, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryDeleteSteps(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM journey_steps WHERE id = ANY\\(\\$1\\)").
		WithArgs(pq.Array([]int64{3, 4})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := queryDeleteSteps(context.Background(), db, []int64{3, 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryDeleteSteps_Empty(t *testing.T) {
	db, _ := newMockDB(t)
	// No expectation: an empty id set must not reach the database.
	if err := queryDeleteSteps(context.Background(), db, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := queryDeleteStepChildren(context.Background(), db, []int64{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryGetSteps(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(stepRowColumns).
		AddRow(int64(1), int64(9), "entry", "entrance", []byte(`{}`), 0.0, 0.0, now, now).
		AddRow(int64(2), int64(9), "send", "action", []byte(`{"campaign_id":2}`), 100.0, 40.0, now, now)
	mock.ExpectQuery("SELECT .+ FROM journey_steps WHERE journey_id = \\$1 ORDER BY id").WithArgs(int64(9)).WillReturnRows(rows)

	steps, err := queryGetSteps(context.Background(), db, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[1].Type != model.StepAction || steps[1].X != 100 || string(steps[1].Data) != `{"campaign_id":2}` {
		t.Fatalf("unexpected step: %+v", steps[1])
	}
}

func TestQueryGetEntrance(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM journey_steps WHERE journey_id = \\$1 AND type = \\$2").
		WithArgs(int64(9), "entrance").
		WillReturnRows(sqlmock.NewRows(stepRowColumns).AddRow(int64(1), int64(9), "entry", "entrance", nil, 0.0, 0.0, now, now))

	s, err := queryGetEntrance(context.Background(), db, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Type != model.StepEntrance || string(s.Data) != `{}` {
		t.Fatalf("unexpected entrance: %+v", s)
	}
}

func TestQueryCreateStepChild(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	c := &model.StepChild{StepID: 1, ChildID: 2, Data: json.RawMessage(`{"path":"yes"}`)}
	mock.ExpectQuery("INSERT INTO journey_step_children").
		WithArgs(int64(1), int64(2), []byte(`{"path":"yes"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	if err := queryCreateStepChild(context.Background(), db, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != 7 {
		t.Fatalf("got id=%d", c.ID)
	}
}

func TestQueryUpdateStepChild(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	c := &model.StepChild{ID: 7, StepID: 1, ChildID: 2}
	mock.ExpectQuery("UPDATE journey_step_children SET").
		WithArgs(int64(7), []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	if err := queryUpdateStepChild(context.Background(), db, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryDeleteStepChildren(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM journey_step_children WHERE id = ANY\\(\\$1\\)").
		WithArgs(pq.Array([]int64{7})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryDeleteStepChildren(context.Background(), db, []int64{7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryGetJourneyStepChildren(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(childRowColumns).
		AddRow(int64(7), int64(1), int64(2), []byte(`{}`), now, now).
		AddRow(int64(8), int64(2), int64(2), []byte(`{"loop":true}`), now, now)
	mock.ExpectQuery("SELECT .+ FROM journey_step_children WHERE step_id IN \\(SELECT id FROM journey_steps WHERE journey_id = \\$1\\)").
		WithArgs(int64(9)).WillReturnRows(rows)

	children, err := queryGetJourneyStepChildren(context.Background(), db, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 2 || children[1].StepID != children[1].ChildID {
		t.Fatalf("unexpected children: %+v", children)
	}
}

func TestQueryGetStepChildren(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM journey_step_children WHERE step_id = \\$1").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(childRowColumns).AddRow(int64(7), int64(1), int64(2), []byte(`{}`), now, now))

	children, err := queryGetStepChildren(context.Background(), db, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 1 || children[0].ChildID != 2 {
		t.Fatalf("unexpected children: %+v", children)
	}
}

func TestQueryRecordUserStep(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	us := &model.UserStep{UserID: 100, JourneyID: 9, StepID: 2, Type: model.UserStepCompleted, CreatedAt: at}
	mock.ExpectQuery("INSERT INTO journey_user_steps").
		WithArgs(int64(100), int64(9), int64(2), "completed", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(55)))

	if err := queryRecordUserStep(context.Background(), db, us); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if us.ID != 55 {
		t.Fatalf("got id=%d", us.ID)
	}
}

func TestQueryLastUserStep(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM journey_user_steps WHERE journey_id = \\$1 AND user_id = \\$2 ORDER BY created_at DESC, id DESC LIMIT 1").
		WithArgs(int64(9), int64(100)).
		WillReturnRows(sqlmock.NewRows(userStepRowColumns).AddRow(int64(55), int64(100), int64(9), int64(2), "pending", now))

	us, err := queryLastUserStep(context.Background(), db, 100, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if us.StepID != 2 || us.Type != model.UserStepPending {
		t.Fatalf("unexpected record: %+v", us)
	}
}

func TestQueryGetUserStep(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM journey_user_steps WHERE step_id = \\$1 AND user_id = \\$2 AND type = \\$3").
		WithArgs(int64(2), int64(100), "completed").
		WillReturnError(sql.ErrNoRows)

	if _, err := queryGetUserStep(context.Background(), db, 100, 2, model.UserStepCompleted); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryGetUserJourneyIDs(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT DISTINCT journey_id FROM journey_user_steps WHERE user_id = \\$1").WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"journey_id"}).AddRow(int64(3)).AddRow(int64(9)))

	ids, err := queryGetUserJourneyIDs(context.Background(), db, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 9 {
		t.Fatalf("got ids=%v", ids)
	}
}

func TestQueryCountLatestUserSteps(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("ROW_NUMBER\\(\\) OVER \\(PARTITION BY user_id ORDER BY created_at DESC, id DESC\\).+WHERE rn = 1 GROUP BY step_id").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"step_id", "users"}).AddRow(int64(1), 4).AddRow(int64(2), 1))

	counts, err := queryCountLatestUserSteps(context.Background(), db, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(counts) != 2 || counts[1] != 4 || counts[2] != 1 {
		t.Fatalf("got counts=%v", counts)
	}
}

func TestRunInTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO journeys").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectQuery("INSERT INTO journey_steps").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		j := &model.Journey{ProjectID: 1, Name: "J"}
		if err := tx.CreateJourney(context.Background(), j); err != nil {
			return err
		}
		return tx.CreateStep(context.Background(), &model.Step{JourneyID: j.ID, ExternalID: "e", Type: model.StepEntrance})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunInTransaction_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO journeys").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectQuery("INSERT INTO journey_steps").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		j := &model.Journey{ProjectID: 1, Name: "J"}
		if err := tx.CreateJourney(context.Background(), j); err != nil {
			return err
		}
		return tx.CreateStep(context.Background(), &model.Step{JourneyID: j.ID, ExternalID: "e", Type: model.StepEntrance})
	})
	if err != sql.ErrConnDone {
		t.Fatalf("expected the step error to propagate unchanged, got %v", err)
	}
}

func TestTxStore_NestedTransactionReusesTx(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.RunInTransaction(context.Background(), func(inner store.Store) error {
			calls++
			if inner != tx {
				t.Error("nested RunInTransaction should reuse the outer tx store")
			}
			return nil
		})
	})
	if err != nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
