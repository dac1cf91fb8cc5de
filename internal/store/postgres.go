package store

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS interview_sessions (
	session_id             TEXT PRIMARY KEY,
	participant_data       JSONB,
	questions_data         JSONB,
	responses_data         JSONB,
	current_question_index INTEGER NOT NULL DEFAULT 0,
	status                 TEXT NOT NULL DEFAULT 'active',
	agent_path             TEXT,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	agent_id         TEXT PRIMARY KEY,
	session_id       TEXT REFERENCES interview_sessions(session_id) ON DELETE SET NULL,
	name             TEXT NOT NULL,
	age              TEXT,
	participant_data JSONB,
	memory_stream    JSONB,
	scratch_data     JSONB,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
`

type PostgresStore struct {
	*sqlStore
}

// OpenPostgres connects via pgx's database/sql adapter and runs the schema
// migration.
func OpenPostgres(url string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{sqlStore: &sqlStore{db: db, usesDollar: true}}, nil
}
