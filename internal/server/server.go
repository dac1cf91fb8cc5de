package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/persona/internal/config"
	"github.com/agenthands/persona/internal/core/chat"
	"github.com/agenthands/persona/internal/core/interview"
	"github.com/agenthands/persona/internal/core/registry"
	"github.com/agenthands/persona/internal/llm"
	"github.com/agenthands/persona/internal/store"
)

type Server struct {
	config     *config.Config
	store      store.Store
	interviews *interview.Service
	chats      *chat.Service
	logger     *zap.Logger
}

// NewServer wires the full service: store, LLM clients, question script, and
// the interview/chat services sharing one agent registry.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	llmClient, embedderClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		st.Close()
		return nil, err
	}

	questions, err := interview.LoadQuestions(cfg.Interview.QuestionsPath)
	if err != nil {
		st.Close()
		return nil, err
	}

	reg := registry.New()

	return &Server{
		config:     cfg,
		store:      st,
		interviews: interview.NewService(st, reg, embedderClient, questions, logger),
		chats:      chat.NewService(st, reg, llmClient, embedderClient, logger),
		logger:     logger,
	}, nil
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	}))

	r.GET("/", s.Root)

	r.POST("/interview/start", s.StartInterview)
	r.GET("/interview/sessions", s.ListSessions)
	r.GET("/interview/:session_id", s.GetSession)
	r.GET("/interview/:session_id/question", s.GetCurrentQuestion)
	r.POST("/interview/response", s.SubmitResponse)
	r.POST("/interview/:session_id/finalize", s.FinalizeAgent)
	r.DELETE("/interview/:session_id", s.DeleteSession)

	r.GET("/agents", s.ListAgents)
	r.GET("/agents/:agent_id", s.GetAgent)
	r.POST("/agents/:agent_id/chat", s.ChatWithAgent)
	r.DELETE("/agents/:agent_id/chat", s.ClearChat)

	return r
}

func (s *Server) Close() error {
	return s.store.Close()
}

func (s *Server) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Persona Interview API",
		"version": "1.0.0",
		"endpoints": gin.H{
			"start_interview": "POST /interview/start",
			"get_question":    "GET /interview/{session_id}/question",
			"submit_response": "POST /interview/response",
			"finalize_agent":  "POST /interview/{session_id}/finalize",
			"get_session":     "GET /interview/{session_id}",
			"list_sessions":   "GET /interview/sessions",
			"list_agents":     "GET /agents",
			"chat":            "POST /agents/{agent_id}/chat",
		},
	})
}

// abortWithError maps the domain error taxonomy onto HTTP statuses:
// unknown ids are 404, wrong-lifecycle operations are 400, the rest is 500.
func (s *Server) abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, interview.ErrInvalidState), errors.Is(err, interview.ErrAlreadyCompleted):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
