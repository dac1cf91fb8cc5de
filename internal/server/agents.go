package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/persona/internal/core/model"
)

type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) ListAgents(c *gin.Context) {
	agents, err := s.store.ListAgents(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentSummary(a))
	}
	c.JSON(http.StatusOK, gin.H{"agents": out})
}

func (s *Server) GetAgent(c *gin.Context) {
	agent, err := s.store.GetAgent(c.Request.Context(), c.Param("agent_id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	details := agentSummary(agent)
	details["participant"] = agent.Participant
	c.JSON(http.StatusOK, details)
}

func (s *Server) ChatWithAgent(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	reply, err := s.chats.Converse(c.Request.Context(), c.Param("agent_id"), req.Message)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) ClearChat(c *gin.Context) {
	s.chats.ClearTranscript(c.Param("agent_id"))
	c.JSON(http.StatusOK, gin.H{"message": "Conversation history cleared"})
}

func agentSummary(a *model.Agent) gin.H {
	return gin.H{
		"agent_id":     a.AgentID,
		"session_id":   a.SessionID,
		"name":         a.Name,
		"age":          a.Age,
		"created_date": a.CreatedAt.Format("2006-01-02 15:04:05"),
		"memory_nodes": memoryNodeCount(a),
	}
}

func memoryNodeCount(a *model.Agent) int {
	nodes, ok := a.MemoryStream["nodes"].([]any)
	if !ok {
		return 0
	}
	return len(nodes)
}
