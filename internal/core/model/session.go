package model

import "time"

// Interview session lifecycle. Transitions are monotone:
// active -> completed -> agent_created, with error reachable from anywhere.
const (
	StatusActive       = "active"
	StatusCompleted    = "completed"
	StatusAgentCreated = "agent_created"
	StatusError        = "error"
)

// Question is one scripted interview entry. The time limit is advisory
// metadata for the interviewer UI; the server does not enforce it.
type Question struct {
	Text      string `json:"question"`
	TimeLimit int    `json:"timeLimit"`
}

// ResponseRecord is one committed answer. The response text is stored
// verbatim, even when the memorized form was substituted (empty -> "N/A").
type ResponseRecord struct {
	QuestionNumber int    `json:"question_number"`
	Question       string `json:"question"`
	Response       string `json:"response"`
	Timestamp      int64  `json:"timestamp"`
}

// Session is the persisted record of one participant's interview.
type Session struct {
	SessionID            string
	Participant          map[string]string
	Questions            []Question
	Responses            []ResponseRecord
	CurrentQuestionIndex int
	Status               string
	AgentPath            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Agent is the durable record created at finalization. The memory stream is
// stored in its packaged form ({"nodes": ..., "embeddings": ...}).
type Agent struct {
	AgentID      string
	SessionID    string
	Name         string
	Age          string
	Participant  map[string]string
	MemoryStream map[string]any
	Scratch      map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
