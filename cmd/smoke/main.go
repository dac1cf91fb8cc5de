// Smoke test client: drives a full interview against a running server and
// chats with the resulting agent. Useful for checking a deployment end to end
// without the web frontend.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
)

var baseURL = flag.String("base-url", "http://localhost:8080", "server base URL")

func main() {
	flag.Parse()

	var question struct {
		SessionID      string `json:"session_id"`
		Question       string `json:"question"`
		TotalQuestions int    `json:"total_questions"`
		IsConclusion   bool   `json:"is_conclusion"`
	}
	post("/interview/start", map[string]any{
		"first_name": "Smoke",
		"last_name":  "Test",
		"age":        "30",
	}, &question)
	log.Printf("session %s started, %d questions", question.SessionID, question.TotalQuestions)

	sessionID := question.SessionID
	answers := []string{
		"Ready.",
		"I grew up in a small town and moved to the city for work.",
		"I fix industrial printers. The travel is the best part.",
		"My sister and my two closest friends from school.",
		"Mostly cycling, and cooking for whoever shows up.",
		"Keep promises, even small ones.",
		"A quieter job and a bigger kitchen.",
		"No, I think that covers it.",
	}

	for _, answer := range answers {
		var result map[string]any
		post("/interview/response", map[string]any{
			"session_id": sessionID,
			"response":   answer,
		}, &result)
		if ready, _ := result["ready_for_agent_creation"].(bool); ready {
			log.Printf("interview completed: %v responses", result["total_responses"])
			break
		}
		log.Printf("next question: %v", result["question"])
	}

	var finalized struct {
		AgentID     string `json:"agent_id"`
		MemoryNodes int    `json:"memory_nodes"`
	}
	post(fmt.Sprintf("/interview/%s/finalize", sessionID), nil, &finalized)
	log.Printf("agent %s created with %d memory nodes", finalized.AgentID, finalized.MemoryNodes)

	var reply struct {
		AgentName string `json:"agent_name"`
		Response  string `json:"response"`
	}
	post(fmt.Sprintf("/agents/%s/chat", finalized.AgentID), map[string]any{
		"message": "What do you do for a living?",
	}, &reply)
	log.Printf("%s: %s", reply.AgentName, reply.Response)
}

func post(path string, body any, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("encode %s: %v", path, err)
		}
	}
	resp, err := http.Post(*baseURL+path, "application/json", &buf)
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("POST %s: status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}
}
