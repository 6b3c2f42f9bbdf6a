package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// testDB creates a temporary database for testing
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// =============================================================================
// Migration Tests
// =============================================================================

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != 1 {
		t.Errorf("schema version = %d, want 1", version)
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestCleanRunRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run := &CleanRun{
		Method:       "secure",
		Status:       StatusFailed,
		StartedAt:    started,
		CompletedAt:  started.Add(time.Minute),
		Selected:     3,
		Cleaned:      1,
		FreedBytes:   4096,
		FreeBefore:   1 << 30,
		FreeAfter:    1<<30 + 4096,
		FailedPath:   "/Users/me/Library/Caches/b",
		ErrorMessage: "overwrite failed",
	}
	id, err := db.RecordClean(ctx, run)
	if err != nil {
		t.Fatalf("RecordClean failed: %v", err)
	}
	if id == 0 || run.ID != id {
		t.Errorf("RecordClean id = %d, run.ID = %d", id, run.ID)
	}

	runs, err := db.ListCleanRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListCleanRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}

	got := runs[0]
	if got.Trigger != TriggerManual {
		t.Errorf("Trigger = %q, want default %q", got.Trigger, TriggerManual)
	}
	if got.Method != "secure" || got.Status != StatusFailed {
		t.Errorf("Method/Status = %s/%s", got.Method, got.Status)
	}
	if got.Cleaned != 1 || got.Selected != 3 || got.FreedBytes != 4096 {
		t.Errorf("counts = %d/%d/%d", got.Cleaned, got.Selected, got.FreedBytes)
	}
	if got.FailedPath != run.FailedPath || got.ErrorMessage != run.ErrorMessage {
		t.Errorf("failure = %q %q", got.FailedPath, got.ErrorMessage)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := db.RecordScan(ctx, &ScanRun{
			Status:      StatusCompleted,
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			CompletedAt: base.Add(time.Duration(i)*time.Hour + time.Second),
			Items:       i,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListScanRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2 (limit)", len(runs))
	}
	if runs[0].Items != 2 || runs[1].Items != 1 {
		t.Errorf("order = %d, %d; want 2, 1", runs[0].Items, runs[1].Items)
	}
}

func TestTotalFreedIgnoresDryRuns(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()

	for _, r := range []*CleanRun{
		{Method: "trash", Status: StatusCompleted, StartedAt: now, CompletedAt: now, FreedBytes: 100},
		{Method: "trash", Status: StatusCompleted, StartedAt: now, CompletedAt: now, FreedBytes: 900, DryRun: true},
		{Method: "secure", Status: StatusCancelled, StartedAt: now, CompletedAt: now, FreedBytes: 50},
	} {
		if _, err := db.RecordClean(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	total, err := db.TotalFreed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 150 {
		t.Errorf("TotalFreed = %d, want 150", total)
	}
}

func TestPrune(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	db.RecordScan(ctx, &ScanRun{Status: StatusCompleted, StartedAt: old, CompletedAt: old})
	db.RecordScan(ctx, &ScanRun{Status: StatusCompleted, StartedAt: recent, CompletedAt: recent})
	db.RecordClean(ctx, &CleanRun{Method: "trash", Status: StatusCompleted, StartedAt: old, CompletedAt: old})

	removed, err := db.Prune(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("Prune removed %d, want 2", removed)
	}

	scans, _ := db.ListScanRuns(ctx, 10)
	if len(scans) != 1 {
		t.Errorf("%d scans left, want 1", len(scans))
	}
}
