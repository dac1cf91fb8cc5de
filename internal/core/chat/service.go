// Package chat drives conversational turns against finalized agents. Each
// turn appends to the agent's transcript, grounds a prompt in the agent's
// retrieved memories, and asks the LLM for the utterance. Utterance failure is
// never fatal: the turn falls back to a canned reply so the conversation
// always produces something.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/persona/internal/core/model"
	"github.com/agenthands/persona/internal/core/registry"
	"github.com/agenthands/persona/internal/llm"
	"github.com/agenthands/persona/internal/store"
)

const retrievedMemories = 10

type Service struct {
	store    store.Store
	registry *registry.Registry
	llm      llm.LLMClient
	embedder llm.EmbedderClient
	logger   *zap.Logger
}

func NewService(st store.Store, reg *registry.Registry, llmClient llm.LLMClient, embedder llm.EmbedderClient, logger *zap.Logger) *Service {
	return &Service{
		store:    st,
		registry: reg,
		llm:      llmClient,
		embedder: embedder,
		logger:   logger,
	}
}

// Reply is the outcome of one conversational turn. Fallback marks replies
// produced by the canned template instead of the model.
type Reply struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	Fallback  bool   `json:"-"`
}

// Converse runs one turn: (User, message) is appended to the transcript, the
// agent is loaded or reconstructed from its persisted record, and the reply is
// appended under the agent's name.
func (s *Service) Converse(ctx context.Context, agentID, message string) (*Reply, error) {
	record, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	transcript := s.registry.AppendTurn(agentID, registry.SpeakerUser, message)

	var response string
	var fallback bool
	err = s.registry.With(agentID,
		func() (*model.AgentSnapshot, error) {
			return model.HydrateAgent(record.Scratch, record.MemoryStream), nil
		},
		func(agent *model.AgentSnapshot) error {
			response, fallback = s.utterance(ctx, agent, message, transcript)
			// The exchange itself becomes a chat memory, so later turns can
			// recall earlier ones even after the transcript is cleared.
			exchange := fmt.Sprintf("%s: %s\n%s: %s", registry.SpeakerUser, message, agent.Fullname(), response)
			agent.Remember(exchange, model.NodeTypeChat, agent.MemoryStream.NextID(), s.embed(ctx, message))
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	s.registry.AppendTurn(agentID, record.Name, response)

	if fallback {
		s.logger.Warn("utterance generation failed, used canned reply",
			zap.String("agent_id", agentID),
		)
	}

	return &Reply{
		AgentID:   agentID,
		AgentName: record.Name,
		Response:  response,
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
		Fallback:  fallback,
	}, nil
}

// ClearTranscript discards the conversation history only; the cached agent
// snapshot and its memories survive.
func (s *Service) ClearTranscript(agentID string) {
	s.registry.ClearTranscript(agentID)
}

// Transcript returns the current conversation history for an agent.
func (s *Service) Transcript(agentID string) []registry.Turn {
	return s.registry.Transcript(agentID)
}

func (s *Service) utterance(ctx context.Context, agent *model.AgentSnapshot, message string, transcript []registry.Turn) (string, bool) {
	prompt := s.buildPrompt(ctx, agent, message, transcript)

	response, err := s.llm.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(response) == "" {
		if err != nil {
			s.logger.Warn("llm generate failed", zap.Error(err))
		}
		return fmt.Sprintf("I understand you said: '%s'. Let me think about that based on my experiences...", message), true
	}
	return strings.TrimSpace(response), false
}

func (s *Service) buildPrompt(ctx context.Context, agent *model.AgentSnapshot, message string, transcript []registry.Turn) string {
	var b strings.Builder

	name := agent.Fullname()
	fmt.Fprintf(&b, "You are %s, a real person. Stay in character and speak in first person.\n\n", name)
	b.WriteString("About you:\n")
	b.WriteString(agent.Describe())

	memories := agent.MemoryStream.Retrieve(s.embed(ctx, message), retrievedMemories)
	if len(memories) > 0 {
		b.WriteString("\nThings you remember:\n")
		for _, node := range memories {
			fmt.Fprintf(&b, "- %s\n", node.Content)
		}
	}

	b.WriteString("\nConversation so far:\n")
	for _, turn := range transcript {
		fmt.Fprintf(&b, "%s: %s\n", turn.Speaker, turn.Utterance)
	}

	fmt.Fprintf(&b, "\nReply as %s with a single conversational message. Do not prefix your reply with your name.\n", name)
	return b.String()
}

// embed is best-effort: no embedder or an embedder error just means retrieval
// degrades to recency + importance.
func (s *Service) embed(ctx context.Context, text string) []float32 {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Debug("embedding failed for chat message", zap.Error(err))
		return nil
	}
	return vec
}
