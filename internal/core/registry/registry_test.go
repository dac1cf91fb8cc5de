package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/persona/internal/core/model"
)

func TestWithLoadsOnce(t *testing.T) {
	r := New()
	loads := 0
	load := func() (*model.AgentSnapshot, error) {
		loads++
		return model.NewAgentSnapshot(), nil
	}

	for i := 0; i < 3; i++ {
		err := r.With("session-1", load, func(a *model.AgentSnapshot) error {
			a.Scratch["touched"] = true
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, loads)
}

func TestWithPropagatesLoadError(t *testing.T) {
	r := New()
	wantErr := errors.New("record missing")
	called := false

	err := r.With("session-1",
		func() (*model.AgentSnapshot, error) { return nil, wantErr },
		func(a *model.AgentSnapshot) error { called = true; return nil },
	)

	assert.ErrorIs(t, err, wantErr)
	assert.False(t, called)

	// A failed load leaves nothing cached; the next load runs again.
	err = r.With("session-1",
		func() (*model.AgentSnapshot, error) { return model.NewAgentSnapshot(), nil },
		func(a *model.AgentSnapshot) error { return nil },
	)
	assert.NoError(t, err)
}

func TestWithSerializesPerKey(t *testing.T) {
	r := New()
	r.Put("agent-1", model.NewAgentSnapshot())

	// 100 concurrent memory appends on the same key must not race or drop.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.With("agent-1", nil, func(a *model.AgentSnapshot) error {
				a.Remember("observation", model.NodeTypeObservation, a.MemoryStream.NextID(), nil)
				return nil
			})
		}()
	}
	wg.Wait()

	_ = r.With("agent-1", nil, func(a *model.AgentSnapshot) error {
		assert.Len(t, a.MemoryStream.Nodes, 100)
		// Ids stayed dense despite the concurrency.
		assert.Equal(t, 100, a.MemoryStream.NextID())
		return nil
	})
}

func TestPutReplacesSnapshot(t *testing.T) {
	r := New()
	first := model.NewAgentSnapshot()
	first.Scratch["first_name"] = "Old"
	r.Put("agent-1", first)

	second := model.NewAgentSnapshot()
	second.Scratch["first_name"] = "New"
	r.Put("agent-1", second)

	_ = r.With("agent-1", nil, func(a *model.AgentSnapshot) error {
		assert.Equal(t, "New", a.Scratch["first_name"])
		return nil
	})
}

func TestTranscriptLifecycle(t *testing.T) {
	r := New()
	r.Put("agent-1", model.NewAgentSnapshot())

	turns := r.AppendTurn("agent-1", SpeakerUser, "hello")
	require.Len(t, turns, 1)
	turns = r.AppendTurn("agent-1", "Maria", "hi there")
	require.Len(t, turns, 2)
	assert.Equal(t, Turn{Speaker: SpeakerUser, Utterance: "hello"}, turns[0])
	assert.Equal(t, Turn{Speaker: "Maria", Utterance: "hi there"}, turns[1])

	// Returned slices are copies; mutating one does not leak back.
	turns[0].Utterance = "mutated"
	assert.Equal(t, "hello", r.Transcript("agent-1")[0].Utterance)

	// Clearing the transcript keeps the cached snapshot alive.
	r.ClearTranscript("agent-1")
	assert.Empty(t, r.Transcript("agent-1"))
	loaded := false
	_ = r.With("agent-1", func() (*model.AgentSnapshot, error) {
		loaded = true
		return model.NewAgentSnapshot(), nil
	}, func(a *model.AgentSnapshot) error { return nil })
	assert.False(t, loaded)
}

func TestRemoveDropsBoth(t *testing.T) {
	r := New()
	r.Put("agent-1", model.NewAgentSnapshot())
	r.AppendTurn("agent-1", SpeakerUser, "hello")

	r.Remove("agent-1")

	assert.Empty(t, r.Transcript("agent-1"))
	loaded := false
	_ = r.With("agent-1", func() (*model.AgentSnapshot, error) {
		loaded = true
		return model.NewAgentSnapshot(), nil
	}, func(a *model.AgentSnapshot) error { return nil })
	assert.True(t, loaded)
}
