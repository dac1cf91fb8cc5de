// Package registry keeps live agent snapshots and chat transcripts in memory,
// keyed by session id during an interview and by agent id after finalization.
// It replaces ambient global maps with an explicit store, and serializes all
// mutation per key so two concurrent requests for the same agent cannot
// interleave snapshot updates.
package registry

import (
	"sync"

	"github.com/agenthands/persona/internal/core/model"
)

// Speaker labels used in transcripts.
const SpeakerUser = "User"

// Turn is one (speaker, utterance) pair in a transcript.
type Turn struct {
	Speaker   string `json:"speaker"`
	Utterance string `json:"utterance"`
}

type entry struct {
	mu    sync.Mutex
	agent *model.AgentSnapshot
}

type Registry struct {
	mu          sync.Mutex
	entries     map[string]*entry
	transcripts map[string][]Turn
}

func New() *Registry {
	return &Registry{
		entries:     make(map[string]*entry),
		transcripts: make(map[string][]Turn),
	}
}

func (r *Registry) entryFor(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	return e
}

// With runs fn while holding the key's lock. If no snapshot is cached, load is
// called (still under the lock) to produce one, which is then cached. A load
// error is returned without invoking fn.
func (r *Registry) With(key string, load func() (*model.AgentSnapshot, error), fn func(*model.AgentSnapshot) error) error {
	e := r.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.agent == nil {
		agent, err := load()
		if err != nil {
			return err
		}
		e.agent = agent
	}
	return fn(e.agent)
}

// Put caches a snapshot under the key, replacing any previous one.
func (r *Registry) Put(key string, agent *model.AgentSnapshot) {
	e := r.entryFor(key)
	e.mu.Lock()
	e.agent = agent
	e.mu.Unlock()
}

// Remove drops the snapshot and the transcript for the key.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	delete(r.transcripts, key)
}

// AppendTurn appends a (speaker, utterance) pair to the key's transcript and
// returns a copy of the transcript including the new turn.
func (r *Registry) AppendTurn(key, speaker, utterance string) []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts[key] = append(r.transcripts[key], Turn{Speaker: speaker, Utterance: utterance})
	out := make([]Turn, len(r.transcripts[key]))
	copy(out, r.transcripts[key])
	return out
}

// Transcript returns a copy of the key's transcript.
func (r *Registry) Transcript(key string) []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Turn, len(r.transcripts[key]))
	copy(out, r.transcripts[key])
	return out
}

// ClearTranscript discards the transcript only; the cached snapshot survives.
func (r *Registry) ClearTranscript(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.transcripts, key)
}
