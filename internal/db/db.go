// Package db provides the central SQLite connection and schema.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema.
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	// Persisted configuration documents (the cfg.json equivalent),
	// keyed by (kind, id) with version tracking.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS config_docs (
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			payload TEXT NOT NULL,
			version INTEGER DEFAULT 1,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (kind, id)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create config_docs table: %w", err)
	}

	// Append-only history of brightness transitions.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transition_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_transition_kind_ts ON transition_ledger(kind, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create transition_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
