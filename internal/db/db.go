// Package db opens the SQLite database that backs the task audit ledger.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Task ledger - append-only audit history, one row per run or task event.
	// Never read back to decide what to reconcile.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS task_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			family TEXT,
			function TEXT,
			task_id TEXT,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_task_ledger_run ON task_ledger(run_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_task_ledger_type_ts ON task_ledger(event_type, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create task_ledger table: %w", err)
	}

	// Partial index for task lookups; run events carry no task id
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_task_ledger_task
		ON task_ledger(task_id)
		WHERE task_id IS NOT NULL AND task_id != '';
	`)
	if err != nil {
		return fmt.Errorf("failed to create idx_task_ledger_task index: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
