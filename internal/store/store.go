// Package store persists interview sessions and finalized agents in a
// relational database reachable by connection string.
package store

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/agenthands/persona/internal/core/model"
)

// ErrNotFound is returned when a session or agent id has no row.
var ErrNotFound = goerr.New("not found")

type Store interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	UpdateSession(ctx context.Context, s *model.Session) error
	ListSessions(ctx context.Context) ([]*model.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	CreateAgent(ctx context.Context, a *model.Agent) error
	GetAgent(ctx context.Context, agentID string) (*model.Agent, error)
	ListAgents(ctx context.Context) ([]*model.Agent, error)

	// FinalizeSession commits the agent record and the session update
	// atomically.
	FinalizeSession(ctx context.Context, sess *model.Session, a *model.Agent) error

	Close() error
}

// Open selects the driver from the connection string: postgres URLs go to
// pgx, everything else is treated as a SQLite path.
func Open(url string) (Store, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return OpenPostgres(url)
	}
	return OpenSQLite(url)
}
