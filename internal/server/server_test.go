package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/persona/internal/config"
	"github.com/agenthands/persona/internal/core/chat"
	"github.com/agenthands/persona/internal/core/interview"
	"github.com/agenthands/persona/internal/core/model"
	"github.com/agenthands/persona/internal/core/registry"
	"github.com/agenthands/persona/internal/store"
)

type stubLLM struct{}

func (stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return "Happy to talk about that.", nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

var testQuestions = []model.Question{
	{Text: "Hello <participant's name>, ready to begin?", TimeLimit: 60},
	{Text: "Tell me about where you grew up.", TimeLimit: 300},
	{Text: "What do you do for work?", TimeLimit: 300},
	{Text: "Anything you'd like to add?", TimeLimit: 120},
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := zap.NewNop()
	reg := registry.New()
	srv := &Server{
		config: &config.Config{
			Server: config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		},
		store:      st,
		interviews: interview.NewService(st, reg, stubEmbedder{}, testQuestions, logger),
		chats:      chat.NewService(st, reg, stubLLM{}, stubEmbedder{}, logger),
		logger:     logger,
	}
	return srv.SetupRouter()
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func startInterview(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w, body := doJSON(t, r, http.MethodPost, "/interview/start", gin.H{
		"first_name": "Maria",
		"last_name":  "Santos",
		"age":        "34",
	})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID)
	return sessionID
}

func runInterview(t *testing.T, r *gin.Engine) string {
	t.Helper()
	sessionID := startInterview(t, r)
	for _, answer := range []string{"ready", "small town", "printers", "no"} {
		w, _ := doJSON(t, r, http.MethodPost, "/interview/response", gin.H{
			"session_id": sessionID,
			"response":   answer,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}
	return sessionID
}

func TestRootEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w, body := doJSON(t, r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Persona Interview API", body["message"])
}

func TestStartInterviewValidation(t *testing.T) {
	r := newTestRouter(t)
	// Missing required fields.
	w, body := doJSON(t, r, http.MethodPost, "/interview/start", gin.H{"first_name": "Maria"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request", body["error"])
}

func TestInterviewEndpoints(t *testing.T) {
	r := newTestRouter(t)
	sessionID := startInterview(t, r)

	w, body := doJSON(t, r, http.MethodGet, "/interview/"+sessionID+"/question", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello Maria, ready to begin?", body["question"])
	assert.Equal(t, true, body["is_introduction"])
	assert.Equal(t, float64(2), body["total_questions"])

	// Intro answer advances without recording.
	w, body = doJSON(t, r, http.MethodPost, "/interview/response", gin.H{
		"session_id": sessionID,
		"response":   "ready",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["question_number"])

	w, body = doJSON(t, r, http.MethodGet, "/interview/"+sessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, float64(1), body["current_question_index"])
	// Same intro/outro arithmetic as the question payload.
	assert.Equal(t, float64(2), body["total_questions"])
	assert.Empty(t, body["responses"])

	w, body = doJSON(t, r, http.MethodGet, "/interview/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sessions, ok := body["sessions"].([]any)
	require.True(t, ok)
	require.Len(t, sessions, 1)

	w, _ = doJSON(t, r, http.MethodDelete, "/interview/"+sessionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodGet, "/interview/"+sessionID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInterviewCompletionAndFinalize(t *testing.T) {
	r := newTestRouter(t)
	sessionID := startInterview(t, r)

	// Finalizing an active session is a client error.
	w, _ := doJSON(t, r, http.MethodPost, "/interview/"+sessionID+"/finalize", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var last map[string]any
	for _, answer := range []string{"ready", "small town", "printers", "no"} {
		w, last = doJSON(t, r, http.MethodPost, "/interview/response", gin.H{
			"session_id": sessionID,
			"response":   answer,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, true, last["ready_for_agent_creation"])
	assert.Equal(t, float64(3), last["total_responses"])

	// Answering past the end is rejected.
	w, _ = doJSON(t, r, http.MethodPost, "/interview/response", gin.H{
		"session_id": sessionID,
		"response":   "extra",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := doJSON(t, r, http.MethodPost, "/interview/"+sessionID+"/finalize", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["agent_id"])
	assert.Equal(t, float64(3), body["memory_nodes"])
}

func TestUnknownSessionIs404(t *testing.T) {
	r := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/interview/nope"},
		{http.MethodGet, "/interview/nope/question"},
		{http.MethodPost, "/interview/nope/finalize"},
		{http.MethodDelete, "/interview/nope"},
	} {
		var payload any
		w, _ := doJSON(t, r, tc.method, tc.path, payload)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)
	}

	w, _ := doJSON(t, r, http.MethodPost, "/interview/response", gin.H{
		"session_id": "nope",
		"response":   "hello",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAgentEndpoints(t *testing.T) {
	r := newTestRouter(t)
	sessionID := runInterview(t, r)

	w, body := doJSON(t, r, http.MethodPost, "/interview/"+sessionID+"/finalize", nil)
	require.Equal(t, http.StatusOK, w.Code)
	agentID := body["agent_id"].(string)

	w, body = doJSON(t, r, http.MethodGet, "/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	agents, ok := body["agents"].([]any)
	require.True(t, ok)
	require.Len(t, agents, 1)

	w, body = doJSON(t, r, http.MethodGet, "/agents/"+agentID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Maria Santos", body["name"])
	assert.Equal(t, float64(3), body["memory_nodes"])
	assert.Equal(t, sessionID, body["session_id"])

	w, body = doJSON(t, r, http.MethodPost, "/agents/"+agentID+"/chat", gin.H{
		"message": "What do you do for work?",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Happy to talk about that.", body["response"])
	assert.Equal(t, "Maria Santos", body["agent_name"])

	w, body = doJSON(t, r, http.MethodDelete, "/agents/"+agentID+"/chat", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Conversation history cleared", body["message"])

	// Unknown agents map to 404, empty chat messages to 400.
	w, _ = doJSON(t, r, http.MethodGet, "/agents/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/agents/"+agentID+"/chat", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The finalized session can still be deleted; the agent survives it.
	w, _ = doJSON(t, r, http.MethodDelete, "/interview/"+sessionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, body = doJSON(t, r, http.MethodGet, "/agents/"+agentID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Maria Santos", body["name"])
}
