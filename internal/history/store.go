// Package history keeps a SQLite log of task runs so operators can see what
// the agent did, per team and per task, across invocations.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/skipshean/linear-agent-tasks/internal/dispatch"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded task run.
type Entry struct {
	ID             int64     `json:"id"`
	RunID          string    `json:"run_id"`
	TeamID         string    `json:"team_id"`
	TaskID         string    `json:"task_id"`
	Mode           string    `json:"mode"`
	Success        bool      `json:"success"`
	ManualRequired bool      `json:"manual_required"`
	Message        string    `json:"message,omitempty"`
	Error          string    `json:"error,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Filter narrows Recent. Empty fields match everything.
type Filter struct {
	TeamID string
	TaskID string
	RunID  string
	// Limit caps the rows returned; 0 means 50.
	Limit int
}

// Store is the run history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and creates if needed) the history database at path.
// ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection so ":memory:" is a single database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set database pragmas: %w", err)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database and runs migrations.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("history store migration failed: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// NewRunID returns a fresh id grouping the entries of one invocation.
func NewRunID() string { return uuid.NewString() }

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS task_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			team_id TEXT NOT NULL DEFAULT '',
			task_id TEXT NOT NULL,
			mode TEXT NOT NULL DEFAULT 'local',
			success INTEGER NOT NULL DEFAULT 0,
			message TEXT DEFAULT '',
			error TEXT DEFAULT '',
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_runs_team ON task_runs(team_id, recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_task_runs_task ON task_runs(task_id, recorded_at)`,
		`ALTER TABLE task_runs ADD COLUMN manual_required INTEGER NOT NULL DEFAULT 0`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Record stores e. RecordedAt defaults to now and ID is filled in.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = s.now()
	}
	if e.RunID == "" {
		e.RunID = NewRunID()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO task_runs (run_id, team_id, task_id, mode, success, manual_required, message, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.TeamID, e.TaskID, e.Mode, e.Success, e.ManualRequired, e.Message, e.Error,
		e.RecordedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to record run of %s: %w", e.TaskID, err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// RecordResults stores one entry per dispatch result under runID.
func (s *Store) RecordResults(ctx context.Context, runID, teamID, mode string, results []dispatch.Result) error {
	for _, r := range results {
		e := &Entry{
			RunID:          runID,
			TeamID:         teamID,
			TaskID:         r.TaskID,
			Mode:           mode,
			Success:        r.Success,
			ManualRequired: r.ManualRequired,
			Message:        r.Message,
			Error:          r.Error,
		}
		if err := s.Record(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns matching entries, newest first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.TeamID != "" {
		where = append(where, "team_id = ?")
		args = append(args, f.TeamID)
	}
	if f.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, f.TaskID)
	}
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, run_id, team_id, task_id, mode, success, manual_required, message, error, recorded_at FROM task_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e           Entry
			recordedAt  string
			message, er sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.TeamID, &e.TaskID, &e.Mode, &e.Success,
			&e.ManualRequired, &message, &er, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Message, e.Error = message.String, er.String
		e.RecordedAt, _ = time.Parse(timeLayout, recordedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
