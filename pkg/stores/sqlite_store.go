package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteJournal implements the Journal interface using SQLite. It lives
// outside the installation temp directory so it survives commit cleanup.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

// JournalConfig holds SQLite journal configuration
type JournalConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// NewSQLiteJournal creates a new SQLite journal instance
func NewSQLiteJournal(cfg JournalConfig) (*SQLiteJournal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteJournal{path: cfg.Path}, nil
}

// Init opens the database connection.
func (s *SQLiteJournal) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Phase processes are short-lived and sequential; a single connection
	// also keeps ":memory:" databases consistent across statements.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteJournal) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteJournal) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SavePhaseRun stores a phase run and its task outcomes in one transaction.
func (s *SQLiteJournal) SavePhaseRun(ctx context.Context, run *PhaseRunRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO phase_runs (id, phase, status, version, trace_id, started_at, completed_at, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Phase,
		run.Status,
		run.Version,
		run.TraceID,
		run.StartedAt,
		run.CompletedAt,
		run.DurationMS,
		run.Error,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save phase run: %w", err)
	}

	for _, task := range run.Tasks {
		if task.ID == "" {
			task.ID = uuid.New().String()
		}
		task.PhaseRunID = run.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_runs (id, phase_run_id, name, position, status, started_at, duration_ms, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			task.ID,
			task.PhaseRunID,
			task.Name,
			task.Position,
			task.Status,
			task.StartedAt,
			task.DurationMS,
			task.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to save task run %s: %w", task.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit phase run: %w", err)
	}
	return nil
}

// GetPhaseRun retrieves a phase run with its tasks by ID
func (s *SQLiteJournal) GetPhaseRun(ctx context.Context, id string) (*PhaseRunRecord, error) {
	query := `
		SELECT id, phase, status, version, trace_id, started_at, completed_at, duration_ms, error, created_at
		FROM phase_runs
		WHERE id = ?
	`

	run, err := scanPhaseRun(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("phase run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get phase run: %w", err)
	}

	tasks, err := s.listTaskRuns(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Tasks = tasks
	return run, nil
}

// ListPhaseRuns lists phase runs newest first, optionally filtered by phase.
func (s *SQLiteJournal) ListPhaseRuns(ctx context.Context, phase *string, limit, offset int) ([]*PhaseRunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, phase, status, version, trace_id, started_at, completed_at, duration_ms, error, created_at
		FROM phase_runs
	`
	args := []interface{}{}
	if phase != nil {
		query += " WHERE phase = ?"
		args = append(args, *phase)
	}
	query += " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list phase runs: %w", err)
	}
	defer rows.Close()

	var runs []*PhaseRunRecord
	for rows.Next() {
		run, err := scanPhaseRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan phase run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating phase runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteJournal) listTaskRuns(ctx context.Context, phaseRunID string) ([]*TaskRunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phase_run_id, name, position, status, started_at, duration_ms, error
		FROM task_runs
		WHERE phase_run_id = ?
		ORDER BY position ASC
	`, phaseRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task runs: %w", err)
	}
	defer rows.Close()

	var tasks []*TaskRunRecord
	for rows.Next() {
		task := &TaskRunRecord{}
		if err := rows.Scan(
			&task.ID,
			&task.PhaseRunID,
			&task.Name,
			&task.Position,
			&task.Status,
			&task.StartedAt,
			&task.DurationMS,
			&task.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task run: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task runs: %w", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPhaseRun(row rowScanner) (*PhaseRunRecord, error) {
	run := &PhaseRunRecord{}
	err := row.Scan(
		&run.ID,
		&run.Phase,
		&run.Status,
		&run.Version,
		&run.TraceID,
		&run.StartedAt,
		&run.CompletedAt,
		&run.DurationMS,
		&run.Error,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteJournal) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
