package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamAddKeepsLockstep(t *testing.T) {
	ms := NewMemoryStream()
	ms.Add(&MemoryNode{NodeID: 0, NodeType: NodeTypeObservation, Content: "first"}, []float32{0.1, 0.2})
	ms.Add(&MemoryNode{NodeID: 1, NodeType: NodeTypeObservation, Content: "second"}, nil)

	assert.Len(t, ms.Nodes, 2)
	assert.Len(t, ms.Embeddings, 2)
	// Nil embeddings are normalized so the slices never diverge.
	assert.Equal(t, []float32{}, ms.Embeddings[1])
	assert.Equal(t, 2, ms.NextID())
	assert.Equal(t, "second", ms.IDToNode[1].Content)
}

func TestStreamHydratePackageRoundTrip(t *testing.T) {
	ms := NewMemoryStream()
	ms.Add(&MemoryNode{NodeID: 0, NodeType: NodeTypeObservation, Content: "grew up in a small town", Importance: 3, Created: 1, LastRetrieved: 1}, []float32{1, 0})
	ms.Add(&MemoryNode{NodeID: 1, NodeType: NodeTypeChat, Content: "chat exchange", Importance: 1, Created: 2, LastRetrieved: 2}, []float32{0, 1})

	// Round-trip through JSON the way the store does, then hydrate a new stream.
	raw, err := json.Marshal(ms.Package())
	require.NoError(t, err)
	var persisted map[string]any
	require.NoError(t, json.Unmarshal(raw, &persisted))

	loaded := NewMemoryStream()
	loaded.Hydrate(persisted)

	require.Len(t, loaded.Nodes, 2)
	require.Len(t, loaded.Embeddings, 2)
	for i, node := range ms.Nodes {
		assert.Equal(t, node.NodeID, loaded.Nodes[i].NodeID)
		assert.Equal(t, node.NodeType, loaded.Nodes[i].NodeType)
		assert.Equal(t, node.Content, loaded.Nodes[i].Content)
		assert.Equal(t, node.Importance, loaded.Nodes[i].Importance)
		assert.Equal(t, ms.Embeddings[i], loaded.Embeddings[i])
	}
	assert.Equal(t, "chat exchange", loaded.IDToNode[1].Content)
}

func TestStreamHydrateRequiresBothKeys(t *testing.T) {
	node := map[string]any{"node_id": float64(0), "content": "orphan"}

	cases := []struct {
		name      string
		persisted map[string]any
	}{
		{"nil", nil},
		{"empty", map[string]any{}},
		{"nodes only", map[string]any{"nodes": []any{node}}},
		{"embeddings only", map[string]any{"embeddings": []any{}}},
	}
	for _, tc := range cases {
		ms := NewMemoryStream()
		ms.Hydrate(tc.persisted)
		assert.Empty(t, ms.Nodes, tc.name)
		assert.Empty(t, ms.Embeddings, tc.name)
	}
}

func TestStreamHydrateLegacyKeyedEmbeddings(t *testing.T) {
	// Older agent records keyed embeddings by node id instead of position.
	ms := NewMemoryStream()
	ms.Hydrate(map[string]any{
		"nodes": []any{
			map[string]any{"node_id": float64(0), "content": "a"},
			map[string]any{"node_id": float64(1), "content": "b"},
		},
		"embeddings": map[string]any{
			"1": []any{float64(0.5), float64(0.5)},
		},
	})

	require.Len(t, ms.Embeddings, 2)
	assert.Equal(t, []float32{}, ms.Embeddings[0])
	assert.Equal(t, []float32{0.5, 0.5}, ms.Embeddings[1])
}

func TestStreamHydrateShortEmbeddings(t *testing.T) {
	// Fewer vectors than nodes pads with empty vectors rather than failing.
	ms := NewMemoryStream()
	ms.Hydrate(map[string]any{
		"nodes": []any{
			map[string]any{"node_id": float64(0)},
			map[string]any{"node_id": float64(1)},
		},
		"embeddings": []any{[]any{float64(1)}},
	})

	require.Len(t, ms.Embeddings, 2)
	assert.Equal(t, []float32{1}, ms.Embeddings[0])
	assert.Equal(t, []float32{}, ms.Embeddings[1])
}

func TestStreamRetrieveRanksByRelevance(t *testing.T) {
	ms := NewMemoryStream()
	ms.Add(&MemoryNode{NodeID: 0, Content: "about work", Importance: 3}, []float32{1, 0})
	ms.Add(&MemoryNode{NodeID: 1, Content: "about family", Importance: 3}, []float32{0, 1})
	ms.Add(&MemoryNode{NodeID: 2, Content: "about hobbies", Importance: 3}, []float32{0.9, 0.1})

	out := ms.Retrieve([]float32{1, 0}, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "about hobbies", out[0].Content)
	assert.Equal(t, "about work", out[1].Content)
	// Retrieval touches the access stamp.
	assert.NotZero(t, out[0].LastRetrieved)
}

func TestStreamRetrieveWithoutQuery(t *testing.T) {
	// No query vector: ranking degrades to recency + importance.
	ms := NewMemoryStream()
	ms.Add(&MemoryNode{NodeID: 0, Content: "old", Importance: 3}, nil)
	ms.Add(&MemoryNode{NodeID: 1, Content: "recent", Importance: 3}, nil)

	out := ms.Retrieve(nil, 1)
	require.Len(t, out, 1)
	assert.Equal(t, "recent", out[0].Content)
}

func TestStreamRetrieveBounds(t *testing.T) {
	ms := NewMemoryStream()
	assert.Nil(t, ms.Retrieve([]float32{1}, 5))

	ms.Add(&MemoryNode{NodeID: 0, Content: "only"}, nil)
	assert.Len(t, ms.Retrieve(nil, 10), 1)
	assert.Nil(t, ms.Retrieve(nil, 0))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	// Mismatched or empty vectors score zero instead of panicking.
	assert.Equal(t, 0.0, cosine([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, cosine([]float32{}, []float32{}))
}
