// Package sqlite journals build runs in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/EdgeApp/libforge/internal/log"
	"github.com/EdgeApp/libforge/internal/model"
	"github.com/EdgeApp/libforge/internal/storage/sqlite/migrations"
)

// RunRepositoryConfig is the configuration for the SQLite run repository.
type RunRepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RunRepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// RunRepository is a SQLite implementation of storage.RunRepository.
type RunRepository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRunRepository creates a new SQLite run repository, running pending
// migrations on open.
func NewRunRepository(ctx context.Context, cfg RunRepositoryConfig) (*RunRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := migrations.Up(db, cfg.Logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite run repository initialized at %s", cfg.DBPath)

	return &RunRepository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *RunRepository) Close() error { return r.db.Close() }

// CreateRun records a new build run.
func (r *RunRepository) CreateRun(ctx context.Context, run model.BuildRun) error {
	query := `
		INSERT INTO build_runs (id, root_task, status, failed_task, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var finishedAt *int64
	if run.FinishedAt != nil {
		u := run.FinishedAt.Unix()
		finishedAt = &u
	}

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.RootTask,
		string(run.Status),
		run.FailedTask,
		run.StartedAt.Unix(),
		finishedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: build_runs.") {
			return fmt.Errorf("run already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert run: %w", err)
	}

	r.logger.Debugf("Created build run in repository: %s", run.ID)
	return nil
}

// FinishRun updates a build run with its final outcome.
func (r *RunRepository) FinishRun(ctx context.Context, run model.BuildRun) error {
	query := `
		UPDATE build_runs
		SET status = ?, failed_task = ?, finished_at = ?
		WHERE id = ?
	`

	var finishedAt *int64
	if run.FinishedAt != nil {
		u := run.FinishedAt.Unix()
		finishedAt = &u
	}

	res, err := r.db.ExecContext(ctx, query, string(run.Status), run.FailedTask, finishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("could not update run: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrNotFound)
	}

	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]model.BuildRun, error) {
	query := `
		SELECT id, root_task, status, failed_task, started_at, finished_at
		FROM build_runs
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.BuildRun{}
	for rows.Next() {
		var (
			run        model.BuildRun
			status     string
			startedAt  int64
			finishedAt *int64
		)
		if err := rows.Scan(&run.ID, &run.RootTask, &status, &run.FailedTask, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("could not scan run: %w", err)
		}
		run.Status = model.BuildRunStatus(status)
		run.StartedAt = time.Unix(startedAt, 0).UTC()
		if finishedAt != nil {
			t := time.Unix(*finishedAt, 0).UTC()
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate runs: %w", err)
	}

	return runs, nil
}
