package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mtakagi/taskboard/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	owner TEXT,
	next_action TEXT,
	notes TEXT,
	source TEXT,
	position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_updated ON tasks(updated_at);
`

// SQLite is a board backend for setups that outgrow a shared CSV.
// It stores the same snapshot: Save replaces all rows in one transaction,
// and position preserves insertion order across round trips.
type SQLite struct {
	db *sql.DB
}

// DefaultDBPath returns ~/.taskboard/tasks.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".taskboard", "tasks.db"), nil
}

// OpenSQLite opens or creates the database at the given path and ensures
// the schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Load() ([]model.Task, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, updated_at, description, status, owner, next_action, notes, source
		FROM tasks ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var status string
		var created, updated time.Time
		if err := rows.Scan(
			&t.ID, &created, &updated, &t.Description, &status,
			&t.Owner, &t.NextAction, &t.Notes, &t.Source,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		parsed, ok := model.ParseStatus(status)
		if !ok {
			return nil, fmt.Errorf("unknown status %q on task %s", status, t.ID)
		}
		t.Status = parsed
		t.CreatedAt = created
		t.UpdatedAt = updated
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLite) Save(tasks []model.Task) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO tasks (id, created_at, updated_at, description, status, owner, next_action, notes, source, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, t := range tasks {
		if _, err := stmt.Exec(
			t.ID, t.CreatedAt, t.UpdatedAt, t.Description, string(t.Status),
			t.Owner, t.NextAction, t.Notes, t.Source, i,
		); err != nil {
			return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}
