package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS interview_sessions (
	session_id             TEXT PRIMARY KEY,
	participant_data       TEXT,
	questions_data         TEXT,
	responses_data         TEXT,
	current_question_index INTEGER NOT NULL DEFAULT 0,
	status                 TEXT NOT NULL DEFAULT 'active',
	agent_path             TEXT,
	created_at             TIMESTAMP NOT NULL,
	updated_at             TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	agent_id         TEXT PRIMARY KEY,
	session_id       TEXT REFERENCES interview_sessions(session_id) ON DELETE SET NULL,
	name             TEXT NOT NULL,
	age              TEXT,
	participant_data TEXT,
	memory_stream    TEXT,
	scratch_data     TEXT,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);
`

type SQLiteStore struct {
	*sqlStore
}

// OpenSQLite opens (or creates) a SQLite database at the given path and runs
// the schema migration. ":memory:" gives an ephemeral store for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each pooled connection to ":memory:" would get its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{sqlStore: &sqlStore{db: db}}, nil
}
