package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"spending/internal/core"
	"spending/internal/log"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02 15:04:05.000000"

type SQLiteRepository struct {
	db *sql.DB
}

// ReportSummary is one period in the report history.
type ReportSummary struct {
	FiscalYear    string
	Quarter       string
	Runs          int
	LastGroups    int
	LastGenerated time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// DB exposes the underlying handle for the processing engine.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RecordReport appends a history row for a completed pipeline run.
func (r *SQLiteRepository) RecordReport(ctx context.Context, rep core.Report) error {
	generated := rep.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO report_history
			(fiscal_year, quarter, row_count, dropped_count, group_count, cache_hit, chart_file, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.Period.FiscalYear,
		rep.Period.Quarter,
		rep.Rankings.Rows,
		rep.Rankings.Dropped,
		rep.Rankings.Groups,
		rep.CacheHit,
		rep.ChartFile,
		generated.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert report history: %w", err)
	}

	id, _ := res.LastInsertId()
	slog.DebugContext(ctx, "Report recorded in history",
		log.FieldComponent, log.ComponentStorage,
		"id", id,
		log.FieldFiscalYear, rep.Period.FiscalYear,
		log.FieldQuarter, rep.Period.Quarter,
		log.FieldCacheHit, rep.CacheHit)
	return nil
}

// RecentReports returns the most recently generated periods, newest first.
func (r *SQLiteRepository) RecentReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.fiscal_year, h.quarter, agg.runs, h.group_count, h.generated_at
		FROM report_history h
		JOIN (
			SELECT fiscal_year, quarter, COUNT(*) AS runs, MAX(id) AS last_id
			FROM report_history
			GROUP BY fiscal_year, quarter
		) agg ON agg.last_id = h.id
		ORDER BY h.generated_at DESC, h.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query report history: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var (
			s         ReportSummary
			generated string
		)
		if err := rows.Scan(&s.FiscalYear, &s.Quarter, &s.Runs, &s.LastGroups, &generated); err != nil {
			return nil, fmt.Errorf("scan report history: %w", err)
		}
		if t, err := time.Parse(timeLayout, generated); err == nil {
			s.LastGenerated = t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
