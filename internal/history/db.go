// Package history records scan and clean runs in a local SQLite database.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the history database
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and migrates it
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// The scheduler and the CLI may both write; one connection keeps SQLite happy
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if err := db.Migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs all database migrations
func (db *DB) Migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

const migration001 = `
CREATE TABLE scan_runs (
    id INTEGER PRIMARY KEY,
    trigger TEXT NOT NULL DEFAULT 'manual',
    status TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    completed_at DATETIME NOT NULL,
    categories INTEGER DEFAULT 0,
    items INTEGER DEFAULT 0,
    total_bytes INTEGER DEFAULT 0
);

CREATE INDEX idx_scan_runs_started_at ON scan_runs(started_at);

CREATE TABLE clean_runs (
    id INTEGER PRIMARY KEY,
    trigger TEXT NOT NULL DEFAULT 'manual',
    method TEXT NOT NULL,
    status TEXT NOT NULL,
    dry_run BOOLEAN DEFAULT 0,
    started_at DATETIME NOT NULL,
    completed_at DATETIME NOT NULL,
    selected INTEGER DEFAULT 0,
    cleaned INTEGER DEFAULT 0,
    freed_bytes INTEGER DEFAULT 0,
    free_before INTEGER DEFAULT 0,
    free_after INTEGER DEFAULT 0,
    failed_path TEXT,
    error_message TEXT
);

CREATE INDEX idx_clean_runs_started_at ON clean_runs(started_at);
`
