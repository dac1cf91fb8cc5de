package model

import (
	"fmt"
	"strings"
)

// AgentSnapshot is the reconstructable state of one generative agent: a
// free-form scratch bag of participant attributes plus the memory stream it
// exclusively owns.
type AgentSnapshot struct {
	Scratch      map[string]any
	MemoryStream *MemoryStream
}

func NewAgentSnapshot() *AgentSnapshot {
	return &AgentSnapshot{
		Scratch:      make(map[string]any),
		MemoryStream: NewMemoryStream(),
	}
}

// HydrateAgent builds a snapshot from persisted scratch + memory stream data.
// Both inputs are best-effort; nil or malformed data yields a fresh agent.
func HydrateAgent(scratch map[string]any, memoryStream map[string]any) *AgentSnapshot {
	a := NewAgentSnapshot()
	for k, v := range scratch {
		a.Scratch[k] = v
	}
	a.MemoryStream.Hydrate(memoryStream)
	return a
}

// UpdateScratch merges the given attributes into the scratch bag.
func (a *AgentSnapshot) UpdateScratch(attrs map[string]any) {
	for k, v := range attrs {
		a.Scratch[k] = v
	}
}

// Fullname returns "<first_name> <last_name>" from scratch, or "Agent" when
// neither is set.
func (a *AgentSnapshot) Fullname() string {
	first, _ := a.Scratch["first_name"].(string)
	last, _ := a.Scratch["last_name"].(string)
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return "Agent"
	}
	return name
}

// Remember commits content as a new memory node of the given type, paired with
// its embedding. timeStep is the logical creation stamp (1-based position of
// the response among those recorded so far, per the interview convention).
func (a *AgentSnapshot) Remember(content, nodeType string, timeStep int, embedding []float32) *MemoryNode {
	if nodeType == "" {
		nodeType = NodeTypeObservation
	}
	node := &MemoryNode{
		NodeID:        a.MemoryStream.NextID(),
		NodeType:      nodeType,
		Content:       content,
		Importance:    defaultImportance(nodeType),
		Created:       int64(timeStep),
		LastRetrieved: int64(timeStep),
	}
	a.MemoryStream.Add(node, embedding)
	return node
}

func defaultImportance(nodeType string) float64 {
	switch nodeType {
	case NodeTypeReflection:
		return 5
	case NodeTypeChat:
		return 1
	default:
		return 3
	}
}

// Describe renders the scratch bag as a one-line-per-attribute block for
// prompt construction. Core identity fields come first in a stable order.
func (a *AgentSnapshot) Describe() string {
	var b strings.Builder
	for _, k := range []string{"first_name", "last_name", "age"} {
		if v, ok := a.Scratch[k]; ok {
			fmt.Fprintf(&b, "%s: %v\n", k, v)
		}
	}
	for k, v := range a.Scratch {
		switch k {
		case "first_name", "last_name", "age":
			continue
		}
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}
	return b.String()
}
