package model

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// MemoryStream is the ordered episodic memory of a single agent: a sequence of
// nodes (insertion order = chronology) plus one embedding vector per node,
// kept in lockstep, and an id index rebuilt at load time.
type MemoryStream struct {
	Nodes      []*MemoryNode
	IDToNode   map[int]*MemoryNode
	Embeddings [][]float32
}

func NewMemoryStream() *MemoryStream {
	return &MemoryStream{
		IDToNode: make(map[int]*MemoryNode),
	}
}

// Add appends a node and its embedding in lockstep and indexes the node id.
// A nil embedding is stored as an empty vector so the slices never diverge.
func (ms *MemoryStream) Add(node *MemoryNode, embedding []float32) {
	if embedding == nil {
		embedding = []float32{}
	}
	ms.Nodes = append(ms.Nodes, node)
	ms.Embeddings = append(ms.Embeddings, embedding)
	ms.IDToNode[node.NodeID] = node
}

// NextID returns the node id for the next appended node. Ids are assigned
// monotonically within a stream.
func (ms *MemoryStream) NextID() int {
	return len(ms.Nodes)
}

// Hydrate rebuilds the stream from its persisted form. The contract is
// best-effort: if either the "nodes" or "embeddings" key is absent the stream
// is left untouched (a fresh agent simply has no memories). Individual node
// records are defaulted field by field and never rejected. A pointer_id that
// does not resolve to a node in the stream is kept as-is; resolution is a
// lookup concern, not a load error.
func (ms *MemoryStream) Hydrate(persisted map[string]any) {
	if persisted == nil {
		return
	}
	rawNodes, ok := persisted["nodes"].([]any)
	if !ok {
		return
	}
	rawEmbeddings, present := persisted["embeddings"]
	if !present {
		return
	}

	ms.Nodes = make([]*MemoryNode, 0, len(rawNodes))
	ms.IDToNode = make(map[int]*MemoryNode, len(rawNodes))
	for _, raw := range rawNodes {
		record, _ := raw.(map[string]any)
		node := NodeFromRecord(record)
		ms.Nodes = append(ms.Nodes, node)
		ms.IDToNode[node.NodeID] = node
	}

	ms.Embeddings = hydrateEmbeddings(rawEmbeddings, ms.Nodes)
}

// hydrateEmbeddings accepts the canonical positional form ([[...], ...]) and
// the legacy map keyed by node id ({"0": [...], ...}), normalizing both to a
// positional slice with exactly one vector per node.
func hydrateEmbeddings(raw any, nodes []*MemoryNode) [][]float32 {
	out := make([][]float32, len(nodes))
	for i := range out {
		out[i] = []float32{}
	}

	switch vs := raw.(type) {
	case []any:
		for i := range nodes {
			if i < len(vs) {
				out[i] = toVector(vs[i])
			}
		}
	case [][]float32:
		for i := range nodes {
			if i < len(vs) {
				out[i] = vs[i]
			}
		}
	case map[string]any:
		for i, node := range nodes {
			if v, ok := vs[strconv.Itoa(node.NodeID)]; ok {
				out[i] = toVector(v)
			}
		}
	}
	return out
}

func toVector(v any) []float32 {
	raw, ok := v.([]any)
	if !ok {
		if vec, ok := v.([]float32); ok {
			return vec
		}
		return []float32{}
	}
	vec := make([]float32, 0, len(raw))
	for _, x := range raw {
		if f, ok := asFloat(x); ok {
			vec = append(vec, float32(f))
		}
	}
	return vec
}

// Package serializes the stream to its persisted form:
// {"nodes": [record...], "embeddings": [vector...]} with embeddings positional.
func (ms *MemoryStream) Package() map[string]any {
	records := make([]any, len(ms.Nodes))
	for i, node := range ms.Nodes {
		records[i] = node.Package()
	}
	embeddings := make([]any, len(ms.Embeddings))
	for i, vec := range ms.Embeddings {
		embeddings[i] = vec
	}
	return map[string]any{
		"nodes":      records,
		"embeddings": embeddings,
	}
}

// Retrieve returns up to k nodes ranked by a blend of embedding relevance to
// the query vector, recency, and importance. Every returned node has its
// last_retrieved stamp touched. With no usable query vector the ranking
// degrades to recency + importance, so retrieval still works for agents whose
// embedder was unavailable during the interview.
func (ms *MemoryStream) Retrieve(query []float32, k int) []*MemoryNode {
	if k <= 0 || len(ms.Nodes) == 0 {
		return nil
	}

	type scored struct {
		node  *MemoryNode
		score float64
	}
	ranked := make([]scored, len(ms.Nodes))
	for i, node := range ms.Nodes {
		relevance := 0.0
		if len(query) > 0 && i < len(ms.Embeddings) {
			relevance = cosine(query, ms.Embeddings[i])
		}
		recency := float64(i+1) / float64(len(ms.Nodes))
		ranked[i] = scored{node: node, score: relevance + recency + node.Importance/10}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	now := time.Now().Unix()
	out := make([]*MemoryNode, k)
	for i := 0; i < k; i++ {
		ranked[i].node.LastRetrieved = now
		out[i] = ranked[i].node
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
