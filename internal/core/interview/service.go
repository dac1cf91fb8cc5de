// Package interview drives the scripted interview state machine: one question
// at a time, each accepted answer becoming a memory node in the participant's
// agent snapshot, and a finalize step that turns the snapshot into a durable
// agent record.
package interview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"

	"github.com/agenthands/persona/internal/core/model"
	"github.com/agenthands/persona/internal/core/registry"
	"github.com/agenthands/persona/internal/llm"
	"github.com/agenthands/persona/internal/store"
)

var (
	// ErrInvalidState is returned for operations attempted outside the
	// session status they require.
	ErrInvalidState = goerr.New("invalid session state")
	// ErrAlreadyCompleted is returned when the question cursor has run past
	// the end of the question list.
	ErrAlreadyCompleted = goerr.New("interview already completed")
)

type Service struct {
	store     store.Store
	registry  *registry.Registry
	embedder  llm.EmbedderClient
	questions []model.Question
	logger    *zap.Logger
}

// NewService wires the state machine. embedder may be nil; answers are then
// memorized without vectors.
func NewService(st store.Store, reg *registry.Registry, embedder llm.EmbedderClient, questions []model.Question, logger *zap.Logger) *Service {
	return &Service{
		store:     st,
		registry:  reg,
		embedder:  embedder,
		questions: questions,
		logger:    logger,
	}
}

// QuestionPayload is the client-facing view of the current question.
type QuestionPayload struct {
	SessionID      string `json:"session_id"`
	QuestionNumber int    `json:"question_number"`
	TotalQuestions int    `json:"total_questions"`
	Question       string `json:"question"`
	TimeLimit      int    `json:"time_limit"`
	IsIntroduction bool   `json:"is_introduction"`
	IsConclusion   bool   `json:"is_conclusion"`
}

// CompletionSummary is returned by SubmitResponse when the last answer closes
// the interview.
type CompletionSummary struct {
	Message               string `json:"message"`
	SessionID             string `json:"session_id"`
	TotalResponses        int    `json:"total_responses"`
	ReadyForAgentCreation bool   `json:"ready_for_agent_creation"`
}

// SubmitResult carries exactly one of the two possible submission outcomes.
type SubmitResult struct {
	Next      *QuestionPayload   `json:"next,omitempty"`
	Completed *CompletionSummary `json:"completed,omitempty"`
}

// FinalizeResult reports the durable agent created from a completed session.
type FinalizeResult struct {
	SessionID      string `json:"session_id"`
	AgentID        string `json:"agent_id"`
	AgentPath      string `json:"agent_path"`
	TotalResponses int    `json:"total_responses"`
	MemoryNodes    int    `json:"memory_nodes"`
	Message        string `json:"message"`
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	SessionID       string `json:"session_id"`
	ParticipantName string `json:"participant_name"`
	CreatedAt       string `json:"created_at"`
	Status          string `json:"status"`
	Progress        string `json:"progress"`
}

// Start creates a new session in the active state, seeds the agent snapshot's
// scratch with the participant attributes, and returns the introduction
// question.
func (s *Service) Start(ctx context.Context, firstName, lastName, age string, additionalInfo map[string]string) (*QuestionPayload, error) {
	sessionID := uuid.New().String()

	participant := map[string]string{
		"first_name": firstName,
		"last_name":  lastName,
		"age":        age,
	}
	for k, v := range additionalInfo {
		if _, fixed := participant[k]; !fixed {
			participant[k] = v
		}
	}

	agent := model.NewAgentSnapshot()
	scratch := make(map[string]any, len(participant))
	for k, v := range participant {
		scratch[k] = v
	}
	agent.UpdateScratch(scratch)

	now := time.Now().UTC()
	sess := &model.Session{
		SessionID:            sessionID,
		Participant:          participant,
		Questions:            s.questions,
		Responses:            []model.ResponseRecord{},
		CurrentQuestionIndex: 0,
		Status:               model.StatusActive,
		AgentPath: fmt.Sprintf("agent_bank/interview_agents/interview_%s_%s_%d",
			strings.ToLower(firstName), strings.ToLower(lastName), now.Unix()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, goerr.Wrap(err, "failed to create interview session")
	}
	s.registry.Put(sessionID, agent)

	s.logger.Info("interview started",
		zap.String("session_id", sessionID),
		zap.String("participant", agent.Fullname()),
	)

	return s.questionPayload(sess, 0), nil
}

// CurrentQuestion returns the question at the session's cursor. Valid only
// while the session is active and the cursor has not run off the end.
func (s *Service) CurrentQuestion(ctx context.Context, sessionID string) (*QuestionPayload, error) {
	sess, err := s.activeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.questionPayload(sess, sess.CurrentQuestionIndex), nil
}

// SubmitResponse records an answer to the current question and advances the
// cursor. The introduction slot (index 0) discards the answer text entirely.
// For real questions the answer is appended to the response log and memorized
// in the agent snapshot; a memory or embedding failure is logged and swallowed
// so a flaky model service cannot lose interview progress.
func (s *Service) SubmitResponse(ctx context.Context, sessionID, response string) (*SubmitResult, error) {
	sess, err := s.activeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.CurrentQuestionIndex > 0 {
		// Memorize before appending to the log: a cold registry rebuilds the
		// snapshot by replaying the log, and the new answer must not land twice.
		if err := s.memorize(ctx, sess, response, len(sess.Responses)+1); err != nil {
			s.logger.Warn("failed to update agent memory",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}

		sess.Responses = append(sess.Responses, model.ResponseRecord{
			QuestionNumber: sess.CurrentQuestionIndex,
			Question:       s.resolveQuestion(sess, sess.CurrentQuestionIndex),
			Response:       response,
			Timestamp:      time.Now().Unix(),
		})
	}

	sess.CurrentQuestionIndex++
	if sess.CurrentQuestionIndex >= len(sess.Questions) {
		sess.Status = model.StatusCompleted
	}

	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, goerr.Wrap(err, "failed to persist session progress")
	}

	if sess.Status == model.StatusCompleted {
		return &SubmitResult{Completed: &CompletionSummary{
			Message:               "Interview completed",
			SessionID:             sessionID,
			TotalResponses:        len(sess.Responses),
			ReadyForAgentCreation: true,
		}}, nil
	}

	return &SubmitResult{Next: s.questionPayload(sess, sess.CurrentQuestionIndex)}, nil
}

// memorize commits the answer into the session's agent snapshot under the
// session key's lock. Empty answers are memorized as the literal "N/A"; the
// verbatim answer stays in the response log regardless.
func (s *Service) memorize(ctx context.Context, sess *model.Session, response string, timeStep int) error {
	text := strings.TrimSpace(response)
	if text == "" {
		text = "N/A"
	}

	var embedding []float32
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			s.logger.Warn("embedding failed, memorizing without vector",
				zap.String("session_id", sess.SessionID),
				zap.Error(err),
			)
		} else {
			embedding = vec
		}
	}

	return s.registry.With(sess.SessionID,
		func() (*model.AgentSnapshot, error) { return s.rebuildAgent(ctx, sess) },
		func(agent *model.AgentSnapshot) error {
			agent.Remember(text, model.NodeTypeObservation, timeStep, embedding)
			return nil
		},
	)
}

// rebuildAgent reconstructs the in-progress agent from the stored session when
// the process has restarted mid-interview: scratch from the participant bag,
// memories replayed from the response log.
func (s *Service) rebuildAgent(ctx context.Context, sess *model.Session) (*model.AgentSnapshot, error) {
	agent := model.NewAgentSnapshot()
	scratch := make(map[string]any, len(sess.Participant))
	for k, v := range sess.Participant {
		scratch[k] = v
	}
	agent.UpdateScratch(scratch)

	for i, r := range sess.Responses {
		text := strings.TrimSpace(r.Response)
		if text == "" {
			text = "N/A"
		}
		var embedding []float32
		if s.embedder != nil {
			if vec, err := s.embedder.Embed(ctx, text); err == nil {
				embedding = vec
			}
		}
		agent.Remember(text, model.NodeTypeObservation, i+1, embedding)
	}
	return agent, nil
}

// Finalize copies a completed session's agent snapshot into a durable agent
// record. Any failure forces the session into the error state and surfaces.
func (s *Service) Finalize(ctx context.Context, sessionID string) (*FinalizeResult, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.StatusCompleted {
		return nil, goerr.Wrap(ErrInvalidState, "interview must be completed before finalizing",
			goerr.V("session_id", sessionID), goerr.V("status", sess.Status))
	}

	result, err := s.finalize(ctx, sess)
	if err != nil {
		sess.Status = model.StatusError
		if uerr := s.store.UpdateSession(ctx, sess); uerr != nil {
			s.logger.Error("failed to mark session as errored",
				zap.String("session_id", sessionID),
				zap.Error(uerr),
			)
		}
		return nil, goerr.Wrap(err, "failed to finalize agent", goerr.V("session_id", sessionID))
	}
	return result, nil
}

func (s *Service) finalize(ctx context.Context, sess *model.Session) (*FinalizeResult, error) {
	agentID := uuid.New().String()
	var memoryNodes int
	var snapshot *model.AgentSnapshot

	err := s.registry.With(sess.SessionID,
		func() (*model.AgentSnapshot, error) { return s.rebuildAgent(ctx, sess) },
		func(agent *model.AgentSnapshot) error {
			now := time.Now().UTC()
			record := &model.Agent{
				AgentID:      agentID,
				SessionID:    sess.SessionID,
				Name:         agent.Fullname(),
				Age:          sess.Participant["age"],
				Participant:  sess.Participant,
				MemoryStream: agent.MemoryStream.Package(),
				Scratch:      agent.Scratch,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			memoryNodes = len(agent.MemoryStream.Nodes)
			// The agent row and the status change land in one transaction, so
			// a failed finalization leaves no orphan agent record.
			sess.Status = model.StatusAgentCreated
			if err := s.store.FinalizeSession(ctx, sess, record); err != nil {
				return err
			}
			snapshot = agent
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	// Ownership of the snapshot transfers to the agent key only after the
	// persistence step committed.
	s.registry.Put(agentID, snapshot)

	s.logger.Info("agent finalized",
		zap.String("session_id", sess.SessionID),
		zap.String("agent_id", agentID),
		zap.Int("memory_nodes", memoryNodes),
	)

	return &FinalizeResult{
		SessionID:      sess.SessionID,
		AgentID:        agentID,
		AgentPath:      sess.AgentPath,
		TotalResponses: len(sess.Responses),
		MemoryNodes:    memoryNodes,
		Message:        "Agent successfully finalized from interview responses",
	}, nil
}

// Get returns the stored session.
func (s *Service) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// List returns one summary per stored session.
func (s *Service) List(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, SessionSummary{
			SessionID:       sess.SessionID,
			ParticipantName: strings.TrimSpace(sess.Participant["first_name"] + " " + sess.Participant["last_name"]),
			CreatedAt:       sess.CreatedAt.Format("2006-01-02 15:04:05"),
			Status:          sess.Status,
			Progress:        fmt.Sprintf("%d/%d", len(sess.Responses), TotalQuestions(sess.Questions)),
		})
	}
	return summaries, nil
}

// Delete removes the session row and any cached state for it.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	s.registry.Remove(sessionID)
	return nil
}

// activeSession loads a session and verifies it can still take questions.
func (s *Service) activeSession(ctx context.Context, sessionID string) (*model.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.StatusActive {
		return nil, goerr.Wrap(ErrInvalidState, fmt.Sprintf("interview session is %s", sess.Status),
			goerr.V("session_id", sessionID))
	}
	if sess.CurrentQuestionIndex >= len(sess.Questions) {
		return nil, goerr.Wrap(ErrAlreadyCompleted, "no questions remaining",
			goerr.V("session_id", sessionID))
	}
	return sess, nil
}

func (s *Service) questionPayload(sess *model.Session, index int) *QuestionPayload {
	q := sess.Questions[index]
	return &QuestionPayload{
		SessionID:      sess.SessionID,
		QuestionNumber: index,
		TotalQuestions: TotalQuestions(sess.Questions),
		Question:       strings.ReplaceAll(q.Text, NamePlaceholder, sess.Participant["first_name"]),
		TimeLimit:      q.TimeLimit,
		IsIntroduction: index == 0,
		IsConclusion:   index == len(sess.Questions)-1,
	}
}

func (s *Service) resolveQuestion(sess *model.Session, index int) string {
	return strings.ReplaceAll(sess.Questions[index].Text, NamePlaceholder, sess.Participant["first_name"])
}

// TotalQuestions is the count reported to clients: the fixed introduction and
// conclusion slots are excluded.
func TotalQuestions(questions []model.Question) int {
	return len(questions) - 2
}
