package history

import (
	"context"
	"database/sql"
	"time"
)

// Status of a finished run
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Trigger says what started a run
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// ScanRun is one recorded full scan
type ScanRun struct {
	ID          int64     `json:"id" yaml:"id"`
	Trigger     Trigger   `json:"trigger" yaml:"trigger"`
	Status      Status    `json:"status" yaml:"status"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
	Categories  int       `json:"categories" yaml:"categories"`
	Items       int       `json:"items" yaml:"items"`
	TotalBytes  int64     `json:"total_bytes" yaml:"total_bytes"`
}

// CleanRun is one recorded clean
type CleanRun struct {
	ID           int64     `json:"id" yaml:"id"`
	Trigger      Trigger   `json:"trigger" yaml:"trigger"`
	Method       string    `json:"method" yaml:"method"`
	Status       Status    `json:"status" yaml:"status"`
	DryRun       bool      `json:"dry_run" yaml:"dry_run"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	CompletedAt  time.Time `json:"completed_at" yaml:"completed_at"`
	Selected     int       `json:"selected" yaml:"selected"`
	Cleaned      int       `json:"cleaned" yaml:"cleaned"`
	FreedBytes   int64     `json:"freed_bytes" yaml:"freed_bytes"`
	FreeBefore   int64     `json:"free_before" yaml:"free_before"`
	FreeAfter    int64     `json:"free_after" yaml:"free_after"`
	FailedPath   string    `json:"failed_path,omitempty" yaml:"failed_path,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// RecordScan stores a finished scan and returns its ID
func (db *DB) RecordScan(ctx context.Context, r *ScanRun) (int64, error) {
	if r.Trigger == "" {
		r.Trigger = TriggerManual
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO scan_runs (trigger, status, started_at, completed_at, categories, items, total_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Trigger, r.Status, r.StartedAt, r.CompletedAt, r.Categories, r.Items, r.TotalBytes,
	)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

// ListScanRuns returns the most recent scans first
func (db *DB) ListScanRuns(ctx context.Context, limit int) ([]*ScanRun, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, trigger, status, started_at, completed_at, categories, items, total_bytes
		FROM scan_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*ScanRun
	for rows.Next() {
		var r ScanRun
		if err := rows.Scan(&r.ID, &r.Trigger, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.Categories, &r.Items, &r.TotalBytes); err != nil {
			return nil, err
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// RecordClean stores a finished clean and returns its ID
func (db *DB) RecordClean(ctx context.Context, r *CleanRun) (int64, error) {
	if r.Trigger == "" {
		r.Trigger = TriggerManual
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO clean_runs (trigger, method, status, dry_run, started_at, completed_at,
			selected, cleaned, freed_bytes, free_before, free_after, failed_path, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Trigger, r.Method, r.Status, r.DryRun, r.StartedAt, r.CompletedAt,
		r.Selected, r.Cleaned, r.FreedBytes, r.FreeBefore, r.FreeAfter,
		nullString(r.FailedPath), nullString(r.ErrorMessage),
	)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

// ListCleanRuns returns the most recent cleans first
func (db *DB) ListCleanRuns(ctx context.Context, limit int) ([]*CleanRun, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, trigger, method, status, dry_run, started_at, completed_at,
			selected, cleaned, freed_bytes, free_before, free_after, failed_path, error_message
		FROM clean_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*CleanRun
	for rows.Next() {
		var r CleanRun
		var failedPath, errorMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.Trigger, &r.Method, &r.Status, &r.DryRun, &r.StartedAt, &r.CompletedAt,
			&r.Selected, &r.Cleaned, &r.FreedBytes, &r.FreeBefore, &r.FreeAfter,
			&failedPath, &errorMsg); err != nil {
			return nil, err
		}
		r.FailedPath = failedPath.String
		r.ErrorMessage = errorMsg.String
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// TotalFreed is the sum of bytes freed by real (not dry-run) cleans
func (db *DB) TotalFreed(ctx context.Context) (int64, error) {
	var total int64
	row := db.QueryRowContext(ctx, "SELECT COALESCE(SUM(freed_bytes), 0) FROM clean_runs WHERE dry_run = 0")
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Prune deletes runs that started before cutoff and reports how many were removed
func (db *DB) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for _, table := range []string{"scan_runs", "clean_runs"} {
		result, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE started_at < ?", cutoff)
		if err != nil {
			return removed, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
