// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/journeys/internal/model"
	"github.com/alfredjeanlab/journeys/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database handle without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateJourney(ctx context.Context, journey *model.Journey) error {
	return queryCreateJourney(ctx, s.db, journey)
}

func (s *PostgresStore) GetJourney(ctx context.Context, id, projectID int64) (*model.Journey, error) {
	return queryGetJourney(ctx, s.db, id, projectID)
}

func (s *PostgresStore) ListJourneys(ctx context.Context, filter model.JourneyFilter) ([]*model.Journey, int, error) {
	return queryListJourneys(ctx, s.db, filter)
}

func (s *PostgresStore) GetJourneyByID(ctx context.Context, id int64) (*model.Journey, error) {
	return queryGetJourneyByID(ctx, s.db, id)
}

func (s *PostgresStore) UpdateJourney(ctx context.Context, journey *model.Journey) error {
	return queryUpdateJourney(ctx, s.db, journey)
}

func (s *PostgresStore) SoftDeleteJourney(ctx context.Context, id int64) error {
	return querySoftDeleteJourney(ctx, s.db, id)
}

func (s *PostgresStore) CreateStep(ctx context.Context, step *model.Step) error {
	return queryCreateStep(ctx, s.db, step)
}

func (s *PostgresStore) UpdateStep(ctx context.Context, step *model.Step) error {
	return queryUpdateStep(ctx, s.db, step)
}

func (s *PostgresStore) DeleteSteps(ctx context.Context, ids []int64) error {
	return queryDeleteSteps(ctx, s.db, ids)
}

func (s *PostgresStore) GetStep(ctx context.Context, id int64) (*model.Step, error) {
	return queryGetStep(ctx, s.db, id)
}

func (s *PostgresStore) GetSteps(ctx context.Context, journeyID int64) ([]*model.Step, error) {
	return queryGetSteps(ctx, s.db, journeyID)
}

func (s *PostgresStore) GetEntrance(ctx context.Context, journeyID int64) (*model.Step, error) {
	return queryGetEntrance(ctx, s.db, journeyID)
}

func (s *PostgresStore) CreateStepChild(ctx context.Context, child *model.StepChild) error {
	return queryCreateStepChild(ctx, s.db, child)
}

func (s *PostgresStore) UpdateStepChild(ctx context.Context, child *model.StepChild) error {
	return queryUpdateStepChild(ctx, s.db, child)
}

func (s *PostgresStore) DeleteStepChildren(ctx context.Context, ids []int64) error {
	return queryDeleteStepChildren(ctx, s.db, ids)
}

func (s *PostgresStore) GetStepChildren(ctx context.Context, stepID int64) ([]*model.StepChild, error) {
	return queryGetStepChildren(ctx, s.db, stepID)
}

func (s *PostgresStore) GetJourneyStepChildren(ctx context.Context, journeyID int64) ([]*model.StepChild, error) {
	return queryGetJourneyStepChildren(ctx, s.db, journeyID)
}

func (s *PostgresStore) RecordUserStep(ctx context.Context, us *model.UserStep) error {
	return queryRecordUserStep(ctx, s.db, us)
}

func (s *PostgresStore) LastUserStep(ctx context.Context, userID, journeyID int64) (*model.UserStep, error) {
	return queryLastUserStep(ctx, s.db, userID, journeyID)
}

func (s *PostgresStore) GetUserStep(ctx context.Context, userID, stepID int64, typ model.UserStepType) (*model.UserStep, error) {
	return queryGetUserStep(ctx, s.db, userID, stepID, typ)
}

func (s *PostgresStore) GetUserJourneyIDs(ctx context.Context, userID int64) ([]int64, error) {
	return queryGetUserJourneyIDs(ctx, s.db, userID)
}

func (s *PostgresStore) CountLatestUserSteps(ctx context.Context, journeyID int64) (map[int64]int, error) {
	return queryCountLatestUserSteps(ctx, s.db, journeyID)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateJourney(ctx context.Context, journey *model.Journey) error {
	return queryCreateJourney(ctx, s.tx, journey)
}

func (s *txStore) GetJourney(ctx context.Context, id, projectID int64) (*model.Journey, error) {
	return queryGetJourney(ctx, s.tx, id, projectID)
}

func (s *txStore) ListJourneys(ctx context.Context, filter model.JourneyFilter) ([]*model.Journey, int, error) {
	return queryListJourneys(ctx, s.tx, filter)
}

func (s *txStore) GetJourneyByID(ctx context.Context, id int64) (*model.Journey, error) {
	return queryGetJourneyByID(ctx, s.tx, id)
}

func (s *txStore) UpdateJourney(ctx context.Context, journey *model.Journey) error {
	return queryUpdateJourney(ctx, s.tx, journey)
}

func (s *txStore) SoftDeleteJourney(ctx context.Context, id int64) error {
	return querySoftDeleteJourney(ctx, s.tx, id)
}

func (s *txStore) CreateStep(ctx context.Context, step *model.Step) error {
	return queryCreateStep(ctx, s.tx, step)
}

func (s *txStore) UpdateStep(ctx context.Context, step *model.Step) error {
	return queryUpdateStep(ctx, s.tx, step)
}

func (s *txStore) DeleteSteps(ctx context.Context, ids []int64) error {
	return queryDeleteSteps(ctx, s.tx, ids)
}

func (s *txStore) GetStep(ctx context.Context, id int64) (*model.Step, error) {
	return queryGetStep(ctx, s.tx, id)
}

func (s *txStore) GetSteps(ctx context.Context, journeyID int64) ([]*model.Step, error) {
	return queryGetSteps(ctx, s.tx, journeyID)
}

func (s *txStore) GetEntrance(ctx context.Context, journeyID int64) (*model.Step, error) {
	return queryGetEntrance(ctx, s.tx, journeyID)
}

func (s *txStore) CreateStepChild(ctx context.Context, child *model.StepChild) error {
	return queryCreateStepChild(ctx, s.tx, child)
}

func (s *txStore) UpdateStepChild(ctx context.Context, child *model.StepChild) error {
	return queryUpdateStepChild(ctx, s.tx, child)
}

func (s *txStore) DeleteStepChildren(ctx context.Context, ids []int64) error {
	return queryDeleteStepChildren(ctx, s.tx, ids)
}

func (s *txStore) GetStepChildren(ctx context.Context, stepID int64) ([]*model.StepChild, error) {
	return queryGetStepChildren(ctx, s.tx, stepID)
}

func (s *txStore) GetJourneyStepChildren(ctx context.Context, journeyID int64) ([]*model.StepChild, error) {
	return queryGetJourneyStepChildren(ctx, s.tx, journeyID)
}

func (s *txStore) RecordUserStep(ctx context.Context, us *model.UserStep) error {
	return queryRecordUserStep(ctx, s.tx, us)
}

func (s *txStore) LastUserStep(ctx context.Context, userID, journeyID int64) (*model.UserStep, error) {
	return queryLastUserStep(ctx, s.tx, userID, journeyID)
}

func (s *txStore) GetUserStep(ctx context.Context, userID, stepID int64, typ model.UserStepType) (*model.UserStep, error) {
	return queryGetUserStep(ctx, s.tx, userID, stepID, typ)
}

func (s *txStore) GetUserJourneyIDs(ctx context.Context, userID int64) ([]int64, error) {
	return queryGetUserJourneyIDs(ctx, s.tx, userID)
}

func (s *txStore) CountLatestUserSteps(ctx context.Context, journeyID int64) (map[int64]int, error) {
	return queryCountLatestUserSteps(ctx, s.tx, journeyID)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
