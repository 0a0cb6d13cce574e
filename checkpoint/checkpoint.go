// Package checkpoint persists the resumable conversation snapshot per
// thread. The store guarantees at most one durable snapshot per thread with
// last-write-wins semantics and carries no locking of its own; the graph
// serializes turns per thread before touching it.
package checkpoint

import (
	"context"
	"time"

	"github.com/ripplecurve/ripplecurve/core"
)

// Checkpoint is a stored ConversationState keyed by thread id with a write
// timestamp and version counter.
type Checkpoint struct {
	ThreadID  string                 `bson:"thread_id"`
	State     core.ConversationState `bson:"state"`
	Version   int64                  `bson:"version"`
	UpdatedAt time.Time              `bson:"updated_at"`
}

// Store is the checkpoint contract used exclusively by the orchestration
// graph to resume execution across independent requests.
type Store interface {
	// Get returns the latest snapshot for the thread, or (nil, nil) when the
	// thread has no checkpoint yet.
	Get(ctx context.Context, threadID string) (*core.ConversationState, error)

	// Put upserts the snapshot for the thread. Idempotent; last write wins.
	Put(ctx context.Context, threadID string, state *core.ConversationState) error

	// Delete removes the thread's snapshot. Deleting a missing thread is not
	// an error.
	Delete(ctx context.Context, threadID string) error
}
