// ABOUTME: SQLite-backed task store: single-file persistence with WAL journaling
// ABOUTME: and upsert writes, the default durable store for single-node deployments.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/2389-research/spyglass/task"
)

// SQLiteStore persists tasks in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite task database at the given path and
// ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			task_type TEXT NOT NULL,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL,
			steps TEXT NOT NULL,
			result TEXT,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save upserts the task row.
func (s *SQLiteStore) Save(ctx context.Context, t *task.Task) error {
	row, err := encodeTask(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, task_type, query, status, progress, steps, result, error, created_at, updated_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			steps = excluded.steps,
			result = excluded.result,
			error = excluded.error,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at`,
		row.ID, row.Type, row.Query, row.Status, row.Progress, row.StepsJSON,
		row.ResultJSON, row.ErrorMsg, row.CreatedAt, row.UpdatedAt, row.CompletedAt)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

const selectColumns = `task_id, task_type, query, status, progress, steps, result, error, created_at, updated_at, completed_at`

// Get returns the task with the given ID, or task.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id task.ID) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM tasks WHERE task_id = ?", id.String())

	var r taskRow
	err := row.Scan(&r.ID, &r.Type, &r.Query, &r.Status, &r.Progress, &r.StepsJSON,
		&r.ResultJSON, &r.ErrorMsg, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task row: %w", err)
	}
	return decodeTask(r)
}

// ListRecent returns up to limit tasks, newest first, skipping offset tasks.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit, offset int) ([]*task.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM tasks ORDER BY created_at DESC, task_id DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*task.Task
	for rows.Next() {
		var r taskRow
		if err := rows.Scan(&r.ID, &r.Type, &r.Query, &r.Status, &r.Progress, &r.StepsJSON,
			&r.ResultJSON, &r.ErrorMsg, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		t, err := decodeTask(r)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Delete removes the task with the given ID, or returns task.ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, id task.ID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE task_id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n == 0 {
		return task.ErrNotFound
	}
	return nil
}

// CountByStatus returns the number of tasks in each status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[task.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[task.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[task.Status(status)] = n
	}
	return counts, rows.Err()
}
