// Package engine is the long-lived processing engine used by the aggregator.
//
// It stages cleaned rows in SQLite and evaluates group-by and ranking queries
// there. One Engine is created at process start, injected where needed and
// closed with its database at shutdown. Each Load gets its own run id so
// concurrent requests never observe each other's rows.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"spending/internal/core"
)

// Row is one cleaned, typed row ready for grouping.
type Row struct {
	Name   string
	Amount float64
}

// Engine runs aggregation queries against a migrated database.
type Engine struct {
	db *sql.DB
}

// New wraps a database that already carries the staged_spending schema.
func New(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// Ping verifies the engine database is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.db == nil {
		return errors.New("engine: not initialized")
	}
	return e.db.PingContext(ctx)
}

// Reset removes rows staged before cutoff, left behind by runs that never
// released their frame. Runs staged after cutoff, including those of another
// process sharing the database, are kept.
func (e *Engine) Reset(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := e.db.ExecContext(ctx, `DELETE FROM staged_spending WHERE staged_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("engine: reset staging: %w", err)
	}
	return res.RowsAffected()
}

// Load stages rows in insertion order and returns a frame over them.
func (e *Engine) Load(ctx context.Context, rows []Row) (*Frame, error) {
	f := &Frame{db: e.db, runID: uuid.NewString(), rows: len(rows)}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: begin load: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO staged_spending (run_id, seq, name, amount, staged_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("engine: prepare load: %w", err)
	}
	defer stmt.Close()

	stagedAt := time.Now().UnixMilli()
	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, f.runID, i, r.Name, r.Amount, stagedAt); err != nil {
			return nil, fmt.Errorf("engine: stage row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("engine: commit load: %w", err)
	}
	return f, nil
}

// Frame is a staged dataset. Release must be called when done.
type Frame struct {
	db    *sql.DB
	runID string
	rows  int
}

// Rows returns the number of staged rows.
func (f *Frame) Rows() int {
	return f.rows
}

// Groups returns every cleaned name with its summed amount, in first-encounter order.
func (f *Frame) Groups(ctx context.Context) ([]core.Entry, error) {
	return f.query(ctx, `
		SELECT name, SUM(amount) AS total
		FROM staged_spending
		WHERE run_id = ?
		GROUP BY name
		ORDER BY MIN(seq)`, f.runID)
}

// GroupCount returns the number of distinct names.
func (f *Frame) GroupCount(ctx context.Context) (int, error) {
	var n int
	err := f.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT name) FROM staged_spending WHERE run_id = ?`, f.runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("engine: count groups: %w", err)
	}
	return n, nil
}

// Top returns the n largest totals, descending. Ties keep first-encounter order.
func (f *Frame) Top(ctx context.Context, n int) ([]core.Entry, error) {
	return f.query(ctx, `
		SELECT name, SUM(amount) AS total
		FROM staged_spending
		WHERE run_id = ?
		GROUP BY name
		ORDER BY total DESC, MIN(seq) ASC
		LIMIT ?`, f.runID, n)
}

// Bottom returns the n smallest strictly positive totals, ascending.
// Ties keep first-encounter order.
func (f *Frame) Bottom(ctx context.Context, n int) ([]core.Entry, error) {
	return f.query(ctx, `
		SELECT name, SUM(amount) AS total
		FROM staged_spending
		WHERE run_id = ?
		GROUP BY name
		HAVING SUM(amount) > 0
		ORDER BY total ASC, MIN(seq) ASC
		LIMIT ?`, f.runID, n)
}

// Release deletes the staged rows.
func (f *Frame) Release(ctx context.Context) error {
	if _, err := f.db.ExecContext(ctx, `DELETE FROM staged_spending WHERE run_id = ?`, f.runID); err != nil {
		return fmt.Errorf("engine: release run %s: %w", f.runID, err)
	}
	return nil
}

func (f *Frame) query(ctx context.Context, q string, args ...any) ([]core.Entry, error) {
	rows, err := f.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("engine: query: %w", err)
	}
	defer rows.Close()

	out := []core.Entry{}
	for rows.Next() {
		var e core.Entry
		if err := rows.Scan(&e.Name, &e.Total); err != nil {
			return nil, fmt.Errorf("engine: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
