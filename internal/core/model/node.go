package model

// Node types recorded in a memory stream.
const (
	NodeTypeObservation = "observation"
	NodeTypeReflection  = "reflection"
	NodeTypeChat        = "chat"
)

// MemoryNode is one atomic unit of an agent's episodic memory.
type MemoryNode struct {
	NodeID        int     `json:"node_id"`
	NodeType      string  `json:"node_type"`
	Content       string  `json:"content"`
	Importance    float64 `json:"importance"`
	Created       int64   `json:"created"`
	LastRetrieved int64   `json:"last_retrieved"`
	PointerID     *int    `json:"pointer_id"`
}

// NodeFromRecord builds a MemoryNode from a persisted record, filling defaults
// for any missing or mistyped field. It never fails: a garbage record yields a
// fully-defaulted node, not an error.
func NodeFromRecord(record map[string]any) *MemoryNode {
	n := &MemoryNode{
		NodeType: NodeTypeObservation,
	}
	if record == nil {
		return n
	}

	if v, ok := asInt(record["node_id"]); ok {
		n.NodeID = v
	}
	if v, ok := record["node_type"].(string); ok && v != "" {
		n.NodeType = v
	}
	if v, ok := record["content"].(string); ok {
		n.Content = v
	}
	if v, ok := asFloat(record["importance"]); ok {
		n.Importance = v
	}
	if v, ok := asInt(record["created"]); ok {
		n.Created = int64(v)
	}
	if v, ok := asInt(record["last_retrieved"]); ok {
		n.LastRetrieved = int64(v)
	}
	if v, ok := asInt(record["pointer_id"]); ok {
		p := v
		n.PointerID = &p
	}
	return n
}

// Package converts the node back to its persisted record form.
func (n *MemoryNode) Package() map[string]any {
	record := map[string]any{
		"node_id":        n.NodeID,
		"node_type":      n.NodeType,
		"content":        n.Content,
		"importance":     n.Importance,
		"created":        n.Created,
		"last_retrieved": n.LastRetrieved,
		"pointer_id":     nil,
	}
	if n.PointerID != nil {
		record["pointer_id"] = *n.PointerID
	}
	return record
}

// JSON numbers decode as float64, so numeric fields accept either form.
func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
