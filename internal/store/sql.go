package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/agenthands/persona/internal/core/model"
)

// sqlStore holds the queries shared by the SQLite and Postgres drivers.
// Queries are written with ? placeholders; rebind rewrites them to $n for
// drivers that need it.
type sqlStore struct {
	db         *sql.DB
	usesDollar bool
}

// execer is satisfied by both *sql.DB and *sql.Tx, so the write helpers can
// run inside or outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *sqlStore) rebind(query string) string {
	if !s.usesDollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) CreateSession(ctx context.Context, sess *model.Session) error {
	participant, questions, responses, err := marshalSessionJSON(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO interview_sessions
			(session_id, participant_data, questions_data, responses_data,
			 current_question_index, status, agent_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		sess.SessionID, participant, questions, responses,
		sess.CurrentQuestionIndex, sess.Status, sess.AgentPath,
		sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to insert session")
	}
	return nil
}

func (s *sqlStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT session_id, participant_data, questions_data, responses_data,
		       current_question_index, status, agent_path, created_at, updated_at
		FROM interview_sessions WHERE session_id = ?`), sessionID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, goerr.Wrap(ErrNotFound, "interview session not found", goerr.V("session_id", sessionID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query session")
	}
	return sess, nil
}

func (s *sqlStore) UpdateSession(ctx context.Context, sess *model.Session) error {
	return s.updateSession(ctx, s.db, sess)
}

func (s *sqlStore) updateSession(ctx context.Context, ex execer, sess *model.Session) error {
	participant, questions, responses, err := marshalSessionJSON(sess)
	if err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()
	res, err := ex.ExecContext(ctx, s.rebind(`
		UPDATE interview_sessions
		SET participant_data = ?, questions_data = ?, responses_data = ?,
		    current_question_index = ?, status = ?, agent_path = ?, updated_at = ?
		WHERE session_id = ?`),
		participant, questions, responses,
		sess.CurrentQuestionIndex, sess.Status, sess.AgentPath, sess.UpdatedAt,
		sess.SessionID,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to update session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return goerr.Wrap(ErrNotFound, "interview session not found", goerr.V("session_id", sess.SessionID))
	}
	return nil
}

func (s *sqlStore) ListSessions(ctx context.Context) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, participant_data, questions_data, responses_data,
		       current_question_index, status, agent_path, created_at, updated_at
		FROM interview_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list sessions")
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan session row")
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *sqlStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM interview_sessions WHERE session_id = ?`), sessionID)
	if err != nil {
		return goerr.Wrap(err, "failed to delete session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return goerr.Wrap(ErrNotFound, "interview session not found", goerr.V("session_id", sessionID))
	}
	return nil
}

func (s *sqlStore) CreateAgent(ctx context.Context, a *model.Agent) error {
	return s.insertAgent(ctx, s.db, a)
}

func (s *sqlStore) insertAgent(ctx context.Context, ex execer, a *model.Agent) error {
	participant, err := json.Marshal(a.Participant)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal participant data")
	}
	memoryStream, err := json.Marshal(a.MemoryStream)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal memory stream")
	}
	scratch, err := json.Marshal(a.Scratch)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal scratch data")
	}
	var sessionID any
	if a.SessionID != "" {
		sessionID = a.SessionID
	}
	_, err = ex.ExecContext(ctx, s.rebind(`
		INSERT INTO agents
			(agent_id, session_id, name, age, participant_data, memory_stream,
			 scratch_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.AgentID, sessionID, a.Name, a.Age, participant, memoryStream, scratch,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to insert agent")
	}
	return nil
}

// FinalizeSession writes the agent record and the session's status change as
// one transaction: a failure on either side leaves neither behind.
func (s *sqlStore) FinalizeSession(ctx context.Context, sess *model.Session, a *model.Agent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin finalization")
	}
	defer tx.Rollback()

	if err := s.insertAgent(ctx, tx, a); err != nil {
		return err
	}
	if err := s.updateSession(ctx, tx, sess); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit finalization")
	}
	return nil
}

func (s *sqlStore) GetAgent(ctx context.Context, agentID string) (*model.Agent, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT agent_id, session_id, name, age, participant_data, memory_stream,
		       scratch_data, created_at, updated_at
		FROM agents WHERE agent_id = ?`), agentID)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, goerr.Wrap(ErrNotFound, "agent not found", goerr.V("agent_id", agentID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query agent")
	}
	return agent, nil
}

func (s *sqlStore) ListAgents(ctx context.Context) ([]*model.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, session_id, name, age, participant_data, memory_stream,
		       scratch_data, created_at, updated_at
		FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list agents")
	}
	defer rows.Close()

	var agents []*model.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan agent row")
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var sess model.Session
	var participant, questions, responses []byte
	var agentPath sql.NullString
	if err := row.Scan(
		&sess.SessionID, &participant, &questions, &responses,
		&sess.CurrentQuestionIndex, &sess.Status, &agentPath,
		&sess.CreatedAt, &sess.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sess.AgentPath = agentPath.String
	if len(participant) > 0 {
		if err := json.Unmarshal(participant, &sess.Participant); err != nil {
			return nil, fmt.Errorf("bad participant_data: %w", err)
		}
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &sess.Questions); err != nil {
			return nil, fmt.Errorf("bad questions_data: %w", err)
		}
	}
	// responses_data is nullable; NULL means no responses yet.
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &sess.Responses); err != nil {
			return nil, fmt.Errorf("bad responses_data: %w", err)
		}
	}
	return &sess, nil
}

func scanAgent(row rowScanner) (*model.Agent, error) {
	var agent model.Agent
	var sessionID sql.NullString
	var participant, memoryStream, scratch []byte
	if err := row.Scan(
		&agent.AgentID, &sessionID, &agent.Name, &agent.Age,
		&participant, &memoryStream, &scratch,
		&agent.CreatedAt, &agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	agent.SessionID = sessionID.String
	if len(participant) > 0 {
		if err := json.Unmarshal(participant, &agent.Participant); err != nil {
			return nil, fmt.Errorf("bad participant_data: %w", err)
		}
	}
	if len(memoryStream) > 0 {
		if err := json.Unmarshal(memoryStream, &agent.MemoryStream); err != nil {
			return nil, fmt.Errorf("bad memory_stream: %w", err)
		}
	}
	if len(scratch) > 0 {
		if err := json.Unmarshal(scratch, &agent.Scratch); err != nil {
			return nil, fmt.Errorf("bad scratch_data: %w", err)
		}
	}
	return &agent, nil
}

func marshalSessionJSON(sess *model.Session) (participant, questions, responses []byte, err error) {
	if participant, err = json.Marshal(sess.Participant); err != nil {
		return nil, nil, nil, goerr.Wrap(err, "failed to marshal participant data")
	}
	if questions, err = json.Marshal(sess.Questions); err != nil {
		return nil, nil, nil, goerr.Wrap(err, "failed to marshal questions data")
	}
	if responses, err = json.Marshal(sess.Responses); err != nil {
		return nil, nil, nil, goerr.Wrap(err, "failed to marshal responses data")
	}
	return participant, questions, responses, nil
}
