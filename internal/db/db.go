// Package db provides the SQLite connection and schema for the scheduler
// client's local bookkeeping.
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
	// Sync ledger - append-only history of fetch/save attempts against the
	// schedule endpoint. Schedule documents themselves are never stored.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			operation TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			request_id TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			payload TEXT,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_sync_ledger_ts ON sync_ledger(timestamp);
		CREATE INDEX IF NOT EXISTS idx_sync_ledger_request ON sync_ledger(request_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create sync_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
