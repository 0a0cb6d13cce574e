// Package transcript keeps the append-only turn log and per-thread registry
// metadata, independent of the resumable checkpoint. Transcripts exist for
// history display and feedback; they are never fed back to the model.
package transcript

import (
	"context"
	"errors"
	"time"
)

var (
	errThreadNotFound = errors.New("thread not found")
	errEntryNotFound  = errors.New("transcript entry not found")
)

// ChatEntry is one completed chat turn (user or assistant) as displayed in
// history. The id is client-supplied so feedback can be attached later.
type ChatEntry struct {
	ID          string   `json:"id" bson:"id"`
	Type        string   `json:"type" bson:"type"` // "user" or "assistant"
	Text        string   `json:"text" bson:"text"`
	IsWebSearch bool     `json:"isWebSearch" bson:"is_web_search"`
	URLs        []string `json:"urls" bson:"urls"`
	Feedback    string   `json:"feedback,omitempty" bson:"feedback,omitempty"`
}

// Thread is the registry entry: per-thread metadata separate from transcript
// content, upserted on first turn and touched on every subsequent turn.
type Thread struct {
	ThreadID  string    `json:"threadId" bson:"thread_id"`
	UserID    string    `json:"userId" bson:"user_id"`
	Email     string    `json:"email,omitempty" bson:"email,omitempty"`
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	Title     string    `json:"title,omitempty" bson:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// Store persists the thread registry and transcript log.
//
// UpsertThread reports whether the thread already existed so the caller can
// generate a title exactly once: a duplicated "new thread" request observes
// existed == true and must not regenerate it.
type Store interface {
	UpsertThread(ctx context.Context, th Thread) (existed bool, err error)

	// SetTitle stores the generated title for a thread.
	SetTitle(ctx context.Context, threadID, title string) error

	// AppendTurn atomically appends one chat entry to the thread's
	// transcript, initializing transcript fields on first write.
	AppendTurn(ctx context.Context, threadID, userID string, entry ChatEntry) error

	// AttachFeedback sets feedback on the transcript entry matching
	// messageID. Idempotent for equal feedback values.
	AttachFeedback(ctx context.Context, threadID, messageID, feedback string) error

	// ListThreads returns the user's threads sorted by recency.
	ListThreads(ctx context.Context, userID string) ([]Thread, error)

	// GetTranscript returns the thread's chat entries in append order.
	GetTranscript(ctx context.Context, threadID string) ([]ChatEntry, error)

	// DeleteThread removes the registry entry and transcript together.
	DeleteThread(ctx context.Context, threadID string) error
}
