package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"spending/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}

func TestRecentReports(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	reports := []core.Report{
		{Period: core.Period{FiscalYear: "2024", Quarter: "1"}, Rankings: core.Rankings{Groups: 3}, GeneratedAt: base},
		{Period: core.Period{FiscalYear: "2023", Quarter: "4"}, Rankings: core.Rankings{Groups: 5}, GeneratedAt: base.Add(time.Minute)},
		{Period: core.Period{FiscalYear: "2024", Quarter: "1"}, Rankings: core.Rankings{Groups: 4}, CacheHit: true, GeneratedAt: base.Add(2 * time.Minute)},
	}
	for _, rep := range reports {
		if err := repo.RecordReport(ctx, rep); err != nil {
			t.Fatalf("RecordReport: %v", err)
		}
	}

	got, err := repo.RecentReports(ctx, 10)
	if err != nil {
		t.Fatalf("RecentReports: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(got))
	}
	if got[0].FiscalYear != "2024" || got[0].Quarter != "1" || got[0].Runs != 2 || got[0].LastGroups != 4 {
		t.Fatalf("unexpected first summary: %+v", got[0])
	}
	if !got[0].LastGenerated.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected timestamp %v", got[0].LastGenerated)
	}
	if got[1].FiscalYear != "2023" || got[1].Runs != 1 {
		t.Fatalf("unexpected second summary: %+v", got[1])
	}

	limited, err := repo.RecentReports(ctx, 1)
	if err != nil {
		t.Fatalf("RecentReports limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}
