/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chainguard.dev/reflecteval/agents/judge"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens the database at path, or an in-memory database for
// ":memory:", and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Each connection to ":memory:" is its own database, and SQLite allows a
	// single writer anyway.
	db.SetMaxOpenConns(1)
	s, err := NewSQLite(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps db and creates the tables if needed.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		status TEXT NOT NULL,
		word_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL,
		agent TEXT NOT NULL,
		content TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		prompt_version TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS feedback_entry ON feedback (entry_id, agent);
	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL,
		prompt_version TEXT NOT NULL,
		result JSON NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS evaluations_entry ON evaluations (entry_id, created_at);
	CREATE INDEX IF NOT EXISTS evaluations_version ON evaluations (prompt_version);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

const entryColumns = `id, title, body, status, word_count, created_at, updated_at`

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                    Entry
		status               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Body, &status, &e.WordCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Status = Status(status)
	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLite) CreateEntry(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Body, string(e.Status), e.WordCount, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *SQLite) GetEntry(ctx context.Context, id string) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (s *SQLite) ListEntries(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateEntry(ctx context.Context, e *Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE entries SET title = ?, body = ?, status = ?, word_count = ?, updated_at = ? WHERE id = ?`,
			e.Title, e.Body, string(e.Status), e.WordCount, formatTime(e.UpdatedAt), e.ID)
		if err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM feedback WHERE entry_id = ?`, e.ID); err != nil {
			return fmt.Errorf("clear feedback: %w", err)
		}
		return nil
	})
}

func (s *SQLite) DeleteEntry(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM feedback WHERE entry_id = ?`, id); err != nil {
			return fmt.Errorf("delete feedback: %w", err)
		}
		return nil
	})
}

func (s *SQLite) SaveFeedback(ctx context.Context, entryID string, fb []*Feedback) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var updatedAt string
		err := tx.QueryRowContext(ctx, `SELECT updated_at FROM entries WHERE id = ?`, entryID).Scan(&updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		latest, err := parseTime(updatedAt)
		if err != nil {
			return err
		}

		for _, f := range fb {
			if f.ID == "" {
				f.ID = uuid.NewString()
			}
			f.EntryID = entryID
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO feedback (id, entry_id, agent, content, model, prompt_version, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				f.ID, entryID, f.Agent, f.Content, f.Model, f.PromptVersion, formatTime(f.CreatedAt)); err != nil {
				return fmt.Errorf("insert feedback: %w", err)
			}
			if f.CreatedAt.After(latest) {
				latest = f.CreatedAt
			}
		}
		if len(fb) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE entries SET status = ?, updated_at = ? WHERE id = ?`,
			string(StatusReflected), formatTime(latest), entryID); err != nil {
			return fmt.Errorf("mark reflected: %w", err)
		}
		return nil
	})
}

func (s *SQLite) GetFeedbackForEntry(ctx context.Context, entryID string) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entry_id, agent, content, model, prompt_version, created_at FROM feedback WHERE entry_id = ? ORDER BY agent ASC, rowid ASC`,
		entryID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []*Feedback{}
	for rows.Next() {
		var (
			f         Feedback
			createdAt string
		)
		if err := rows.Scan(&f.ID, &f.EntryID, &f.Agent, &f.Content, &f.Model, &f.PromptVersion, &createdAt); err != nil {
			return nil, err
		}
		if f.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveEvaluation(ctx context.Context, entryID, promptVersion string, r *judge.Result, createdAt time.Time) (*Evaluation, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	ev := &Evaluation{
		ID:            uuid.NewString(),
		EntryID:       entryID,
		PromptVersion: promptVersion,
		Result:        r,
		CreatedAt:     createdAt,
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (id, entry_id, prompt_version, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, entryID, promptVersion, string(raw), formatTime(createdAt)); err != nil {
		return nil, fmt.Errorf("insert evaluation: %w", err)
	}
	return ev, nil
}

func (s *SQLite) GetLatestEvaluation(ctx context.Context, entryID string) (*Evaluation, error) {
	evs, err := s.ListEvaluations(ctx, EvaluationFilter{EntryID: entryID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return nil, ErrNotFound
	}
	return evs[0], nil
}

func (s *SQLite) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]*Evaluation, error) {
	var (
		where []string
		args  []any
	)
	if filter.EntryID != "" {
		where = append(where, "entry_id = ?")
		args = append(args, filter.EntryID)
	}
	if filter.PromptVersion != "" {
		where = append(where, "prompt_version = ?")
		args = append(args, filter.PromptVersion)
	}
	query := `SELECT id, entry_id, prompt_version, result, created_at FROM evaluations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Evaluation
	for rows.Next() {
		var (
			ev             Evaluation
			raw, createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.EntryID, &ev.PromptVersion, &raw, &createdAt); err != nil {
			return nil, err
		}
		ev.Result = &judge.Result{}
		if err := json.Unmarshal([]byte(raw), ev.Result); err != nil {
			return nil, fmt.Errorf("decode evaluation %s: %w", ev.ID, err)
		}
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
