package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/ripplecurve/ripplecurve/core"
)

// InMemoryStore is a volatile Store implementation keeping checkpoints in a
// process-local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Snapshots are cloned on the way in and
// out to prevent external mutation of internal state.
type InMemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{checkpoints: make(map[string]*Checkpoint)}
}

// Get returns a clone of the stored snapshot, or nil for an unknown thread.
func (s *InMemoryStore) Get(_ context.Context, threadID string) (*core.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[threadID]
	if !ok {
		return nil, nil
	}
	return cp.State.Clone(), nil
}

// Put stores a clone of the provided snapshot, bumping the version.
func (s *InMemoryStore) Put(_ context.Context, threadID string, state *core.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var version int64 = 1
	if prev, ok := s.checkpoints[threadID]; ok {
		version = prev.Version + 1
	}
	s.checkpoints[threadID] = &Checkpoint{
		ThreadID:  threadID,
		State:     *state.Clone(),
		Version:   version,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// Delete removes the thread's snapshot if present.
func (s *InMemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, threadID)
	return nil
}
