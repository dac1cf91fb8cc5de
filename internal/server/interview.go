package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/persona/internal/core/interview"
)

type StartInterviewRequest struct {
	FirstName      string            `json:"first_name" binding:"required"`
	LastName       string            `json:"last_name" binding:"required"`
	Age            string            `json:"age" binding:"required"`
	AdditionalInfo map[string]string `json:"additional_info"`
}

type SubmitResponseRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Response  string `json:"response"`
}

func (s *Server) StartInterview(c *gin.Context) {
	var req StartInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	question, err := s.interviews.Start(c.Request.Context(), req.FirstName, req.LastName, req.Age, req.AdditionalInfo)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (s *Server) GetCurrentQuestion(c *gin.Context) {
	question, err := s.interviews.CurrentQuestion(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (s *Server) SubmitResponse(c *gin.Context) {
	var req SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := s.interviews.SubmitResponse(c.Request.Context(), req.SessionID, req.Response)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if result.Completed != nil {
		c.JSON(http.StatusOK, result.Completed)
		return
	}
	c.JSON(http.StatusOK, result.Next)
}

func (s *Server) FinalizeAgent(c *gin.Context) {
	result, err := s.interviews.Finalize(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) GetSession(c *gin.Context) {
	sess, err := s.interviews.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":             sess.SessionID,
		"participant":            sess.Participant,
		"current_question_index": sess.CurrentQuestionIndex,
		"total_questions":        interview.TotalQuestions(sess.Questions),
		"responses":              sess.Responses,
		"created_at":             sess.CreatedAt.Format("2006-01-02 15:04:05"),
		"status":                 sess.Status,
	})
}

func (s *Server) ListSessions(c *gin.Context) {
	summaries, err := s.interviews.List(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": summaries})
}

func (s *Server) DeleteSession(c *gin.Context) {
	if err := s.interviews.Delete(c.Request.Context(), c.Param("session_id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Interview session deleted successfully"})
}
