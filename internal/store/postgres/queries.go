package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/journeys/internal/model"
)

// Column lists used for SELECT / RETURNING clauses. Scan helpers expect
// columns in exactly this order.
const (
	journeyColumns   = `id, project_id, name, description, created_at, updated_at, deleted_at`
	stepColumns      = `id, journey_id, external_id, type, data, x, y, created_at, updated_at`
	stepChildColumns = `id, step_id, child_id, data, created_at, updated_at`
	userStepColumns  = `id, user_id, journey_id, step_id, type, created_at`
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateJourney(ctx context.Context, db executor, j *model.Journey) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO journeys (project_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		j.ProjectID, j.Name, j.Description,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
}

func queryGetJourney(ctx context.Context, db executor, id, projectID int64) (*model.Journey, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+journeyColumns+` FROM journeys
		WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL`,
		id, projectID,
	)
	return scanJourney(row)
}

func queryGetJourneyByID(ctx context.Context, db executor, id int64) (*model.Journey, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+journeyColumns+` FROM journeys
		WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	return scanJourney(row)
}

func queryListJourneys(ctx context.Context, db executor, filter model.JourneyFilter) ([]*model.Journey, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.ProjectID > 0 {
		whereClauses = append(whereClauses, "project_id = "+nextArg())
		args = append(args, filter.ProjectID)
	}

	if !filter.IncludeDeleted {
		whereClauses = append(whereClauses, "deleted_at IS NULL")
	}

	if filter.Search != "" {
		whereClauses = append(whereClauses, "name ILIKE '%' || "+nextArg()+" || '%'")
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + journeyColumns + " FROM journeys" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list journeys: %w", err)
	}
	defer rows.Close()

	var journeys []*model.Journey
	var total int
	for rows.Next() {
		j, t, err := scanJourneyWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan journeys: %w", err)
		}
		total = t
		journeys = append(journeys, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan journeys: %w", err)
	}

	return journeys, total, nil
}

func queryUpdateJourney(ctx context.Context, db executor, j *model.Journey) error {
	return db.QueryRowContext(ctx, `
		UPDATE journeys SET
			name = $2,
			description = $3,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING project_id, created_at, updated_at`,
		j.ID, j.Name, j.Description,
	).Scan(&j.ProjectID, &j.CreatedAt, &j.UpdatedAt)
}

func querySoftDeleteJourney(ctx context.Context, db executor, id int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE journeys SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryCreateStep(ctx context.Context, db executor, s *model.Step) error {
	s.Data = model.NormalizeData(s.Data)
	return db.QueryRowContext(ctx, `
		INSERT INTO journey_steps (journey_id, external_id, type, data, x, y)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		s.JourneyID, s.ExternalID, string(s.Type), []byte(s.Data), s.X, s.Y,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func queryUpdateStep(ctx context.Context, db executor, s *model.Step) error {
	s.Data = model.NormalizeData(s.Data)
	return db.QueryRowContext(ctx, `
		UPDATE journey_steps SET
			external_id = $2,
			type = $3,
			data = $4,
			x = $5,
			y = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.ExternalID, string(s.Type), []byte(s.Data), s.X, s.Y,
	).Scan(&s.UpdatedAt)
}

func queryDeleteSteps(ctx context.Context, db executor, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, `DELETE FROM journey_steps WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

func queryGetStep(ctx context.Context, db executor, id int64) (*model.Step, error) {
	row := db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM journey_steps WHERE id = $1`, id)
	return scanStep(row)
}

func queryGetSteps(ctx context.Context, db executor, journeyID int64) ([]*model.Step, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+stepColumns+` FROM journey_steps
		WHERE journey_id = $1
		ORDER BY id`,
		journeyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSteps(rows)
}

func queryGetEntrance(ctx context.Context, db executor, journeyID int64) (*model.Step, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+stepColumns+` FROM journey_steps
		WHERE journey_id = $1 AND type = $2
		ORDER BY id
		LIMIT 1`,
		journeyID, string(model.StepEntrance),
	)
	return scanStep(row)
}

func queryCreateStepChild(ctx context.Context, db executor, c *model.StepChild) error {
	c.Data = model.NormalizeData(c.Data)
	return db.QueryRowContext(ctx, `
		INSERT INTO journey_step_children (step_id, child_id, data)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		c.StepID, c.ChildID, []byte(c.Data),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func queryUpdateStepChild(ctx context.Context, db executor, c *model.StepChild) error {
	c.Data = model.NormalizeData(c.Data)
	return db.QueryRowContext(ctx, `
		UPDATE journey_step_children SET
			data = $2,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, []byte(c.Data),
	).Scan(&c.UpdatedAt)
}

func queryDeleteStepChildren(ctx context.Context, db executor, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, `DELETE FROM journey_step_children WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

func queryGetStepChildren(ctx context.Context, db executor, stepID int64) ([]*model.StepChild, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+stepChildColumns+` FROM journey_step_children
		WHERE step_id = $1
		ORDER BY id`,
		stepID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStepChildren(rows)
}

func queryGetJourneyStepChildren(ctx context.Context, db executor, journeyID int64) ([]*model.StepChild, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+stepChildColumns+` FROM journey_step_children
		WHERE step_id IN (SELECT id FROM journey_steps WHERE journey_id = $1)
		ORDER BY id`,
		journeyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStepChildren(rows)
}

func queryRecordUserStep(ctx context.Context, db executor, us *model.UserStep) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO journey_user_steps (user_id, journey_id, step_id, type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		us.UserID, us.JourneyID, us.StepID, string(us.Type), us.CreatedAt,
	).Scan(&us.ID)
}

func queryLastUserStep(ctx context.Context, db executor, userID, journeyID int64) (*model.UserStep, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+userStepColumns+` FROM journey_user_steps
		WHERE journey_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		journeyID, userID,
	)
	return scanUserStep(row)
}

func queryGetUserStep(ctx context.Context, db executor, userID, stepID int64, typ model.UserStepType) (*model.UserStep, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+userStepColumns+` FROM journey_user_steps
		WHERE step_id = $1 AND user_id = $2 AND type = $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		stepID, userID, string(typ),
	)
	return scanUserStep(row)
}

func queryGetUserJourneyIDs(ctx context.Context, db executor, userID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT journey_id FROM journey_user_steps
		WHERE user_id = $1
		ORDER BY journey_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// queryCountLatestUserSteps ranks each user's progression records by recency
// and counts, per step, the users whose rank-1 record points at it. Steps
// without current users are absent from the result.
func queryCountLatestUserSteps(ctx context.Context, db executor, journeyID int64) (map[int64]int, error) {
	rows, err := db.QueryContext(ctx, `
		WITH latest_journey_steps AS (
			SELECT step_id,
				ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY created_at DESC, id DESC) AS rn
			FROM journey_user_steps
			WHERE journey_id = $1
		)
		SELECT step_id, COUNT(*) AS users
		FROM latest_journey_steps
		WHERE rn = 1
		GROUP BY step_id`,
		journeyID,
	)
	if err != nil {
		return nil, fmt.Errorf("count latest user steps: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			stepID int64
			users  int
		)
		if err := rows.Scan(&stepID, &users); err != nil {
			return nil, fmt.Errorf("scan user step counts: %w", err)
		}
		counts[stepID] = users
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan user step counts: %w", err)
	}
	return counts, nil
}

func parseSortClause(sort string) string {
	if sort == "" {
		return "id DESC"
	}
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]bool{
		"id": true, "name": true, "created_at": true, "updated_at": true,
	}
	if !allowed[col] {
		return "id DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
