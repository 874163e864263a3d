// Package db persists stack histories and reconciliation events in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// DefaultDBPath returns ~/.ecosystem-ci/ecosystem.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".ecosystem-ci")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "ecosystem.db"), nil
}

// Open opens or creates the database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS stacks (
    stack      TEXT PRIMARY KEY,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS commit_records (
    stack            TEXT NOT NULL REFERENCES stacks(stack) ON DELETE CASCADE,
    commit_sha       TEXT NOT NULL,
    position         INTEGER NOT NULL,
    commit_timestamp TEXT NOT NULL,
    commit_message   TEXT NOT NULL,
    author_name      TEXT,
    author_email     TEXT,
    author_login     TEXT,
    author_avatar    TEXT,
    repo_full_name   TEXT NOT NULL,
    repo_name        TEXT NOT NULL,
    workflow_run_url TEXT,
    overall_status   TEXT NOT NULL CHECK(overall_status IN ('success','failure','cancelled')),
    PRIMARY KEY (stack, commit_sha)
);
CREATE INDEX IF NOT EXISTS idx_commit_position ON commit_records(stack, position);

CREATE TABLE IF NOT EXISTS suite_outcomes (
    stack       TEXT NOT NULL,
    commit_sha  TEXT NOT NULL,
    position    INTEGER NOT NULL,
    name        TEXT NOT NULL,
    status      TEXT NOT NULL CHECK(status IN ('success','failure','cancelled')),
    duration_ms INTEGER,
    log_url     TEXT,
    notes       TEXT,
    PRIMARY KEY (stack, commit_sha, position),
    FOREIGN KEY (stack, commit_sha) REFERENCES commit_records(stack, commit_sha) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS record_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    stack       TEXT NOT NULL,
    commit_sha  TEXT NOT NULL,
    status      TEXT,
    kind        TEXT NOT NULL CHECK(kind IN ('recorded','rejected','failed')),
    detail      TEXT,
    timestamp   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_record_events_stack ON record_events(stack, id DESC);
`

// Migrate applies the database schema.
func (d *DB) Migrate() error {
	var count int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tables and re-applies the schema.
func (d *DB) Reset() error {
	tables := []string{"record_events", "suite_outcomes", "commit_records", "stacks", "schema_version"}
	for _, t := range tables {
		if _, err := d.conn.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return d.Migrate()
}
