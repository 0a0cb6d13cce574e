package transcript

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ripplecurve/ripplecurve/core"
)

// InMemoryStore keeps the registry and transcripts in process memory. Useful
// for tests and single-process deployments.
type InMemoryStore struct {
	mu          sync.RWMutex
	threads     map[string]Thread
	transcripts map[string][]ChatEntry
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new in-memory transcript store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		threads:     make(map[string]Thread),
		transcripts: make(map[string][]ChatEntry),
	}
}

// UpsertThread inserts or touches the registry entry.
func (s *InMemoryStore) UpsertThread(_ context.Context, th Thread) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.threads[th.ThreadID]
	now := time.Now()
	if ok {
		existing.UpdatedAt = now
		s.threads[th.ThreadID] = existing
		return true, nil
	}

	th.CreatedAt = now
	th.UpdatedAt = now
	s.threads[th.ThreadID] = th
	return false, nil
}

// SetTitle stores the generated title for a thread.
func (s *InMemoryStore) SetTitle(_ context.Context, threadID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	th, ok := s.threads[threadID]
	if !ok {
		return core.NewPersistenceError("set_title", errThreadNotFound)
	}
	th.Title = title
	th.UpdatedAt = time.Now()
	s.threads[threadID] = th
	return nil
}

// AppendTurn appends one chat entry to the thread's transcript.
func (s *InMemoryStore) AppendTurn(_ context.Context, threadID, _ string, entry ChatEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcripts[threadID] = append(s.transcripts[threadID], entry)
	return nil
}

// AttachFeedback sets feedback on the matching transcript entry.
func (s *InMemoryStore) AttachFeedback(_ context.Context, threadID, messageID, feedback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.transcripts[threadID]
	if !ok {
		return core.NewPersistenceError("attach_feedback", errThreadNotFound)
	}
	for i := range entries {
		if entries[i].ID == messageID {
			entries[i].Feedback = feedback
			return nil
		}
	}
	return core.NewPersistenceError("attach_feedback", errEntryNotFound)
}

// ListThreads returns the user's threads, most recently updated first.
func (s *InMemoryStore) ListThreads(_ context.Context, userID string) ([]Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Thread
	for _, th := range s.threads {
		if th.UserID == userID {
			out = append(out, th)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// GetTranscript returns the thread's chat entries in append order.
func (s *InMemoryStore) GetTranscript(_ context.Context, threadID string) ([]ChatEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.transcripts[threadID]
	out := make([]ChatEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// DeleteThread removes the registry entry and transcript together.
func (s *InMemoryStore) DeleteThread(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.threads, threadID)
	delete(s.transcripts, threadID)
	return nil
}
