// Package store is the local SQLite database. It keeps admin accounts and
// instance metadata, and serves as the diagnosis system of record when the
// spreadsheet is not used.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS diagnoses (
		diagnosis_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		company_name TEXT NOT NULL,
		industry TEXT NOT NULL DEFAULT '',
		employee_count TEXT NOT NULL DEFAULT '',
		contact_name TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL,
		contact_phone TEXT NOT NULL DEFAULT '',
		scheme TEXT NOT NULL,
		overall_score INTEGER NOT NULL,
		grade TEXT NOT NULL,
		maturity_level TEXT NOT NULL,
		category_scores TEXT NOT NULL,
		responses TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_diagnoses_email ON diagnoses (lower(contact_email), created_at);

	CREATE TABLE IF NOT EXISTS admins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
