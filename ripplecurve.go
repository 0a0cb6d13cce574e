// Package ripplecurve exposes the conversation engine: a per-thread
// orchestration graph over a checkpointed message window, with a transcript
// log and thread registry alongside it.
package ripplecurve

import (
	"context"

	"github.com/google/uuid"

	"github.com/ripplecurve/ripplecurve/checkpoint"
	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/graph"
	"github.com/ripplecurve/ripplecurve/logging"
	"github.com/ripplecurve/ripplecurve/model"
	"github.com/ripplecurve/ripplecurve/summarize"
	"github.com/ripplecurve/ripplecurve/transcript"
)

// Engine bundles the orchestration graph with the persistence layers and
// the registry-level operations built on top of them.
type Engine struct {
	graph       *graph.Graph
	checkpoints checkpoint.Store
	transcripts transcript.Store
	titleModel  model.Model
	logger      logging.Logger
}

// NewEngine composes an engine from its parts. titleModel is used for the
// single dedicated title invocation on new threads; it may be the same model
// the graph runs on.
func NewEngine(g *graph.Graph, cps checkpoint.Store, ts transcript.Store, titleModel model.Model, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Engine{
		graph:       g,
		checkpoints: cps,
		transcripts: ts,
		titleModel:  titleModel,
		logger:      logger,
	}
}

// RunTurn executes one conversation turn; see graph.Graph.RunTurn.
func (e *Engine) RunTurn(ctx context.Context, in graph.TurnInput) (<-chan core.Event, <-chan error) {
	return e.graph.RunTurn(ctx, in)
}

// EnsureThread upserts the registry entry for the turn, assigning a fresh
// thread id when none was supplied. A title is generated and persisted
// exactly once, on the thread's first turn; a duplicated first request sees
// the thread as existing and leaves the title alone.
func (e *Engine) EnsureThread(ctx context.Context, userID, email, name, threadID, firstMessage string) (string, string, error) {
	if threadID == "" {
		threadID = uuid.NewString()
	}

	existed, err := e.transcripts.UpsertThread(ctx, transcript.Thread{
		ThreadID: threadID,
		UserID:   userID,
		Email:    email,
		Name:     name,
	})
	if err != nil {
		return "", "", err
	}
	if existed {
		return threadID, "", nil
	}

	title, err := summarize.GenerateTitle(ctx, e.titleModel, firstMessage)
	if err != nil {
		e.logger.Warn("title generation failed", "thread_id", threadID, "error", err)
		return threadID, "", nil
	}
	if err := e.transcripts.SetTitle(ctx, threadID, title); err != nil {
		return threadID, "", err
	}
	return threadID, title, nil
}

// AppendTurn appends one completed chat entry to the thread's transcript.
func (e *Engine) AppendTurn(ctx context.Context, threadID, userID string, entry transcript.ChatEntry) error {
	return e.transcripts.AppendTurn(ctx, threadID, userID, entry)
}

// AttachFeedback sets feedback on the transcript entry matching messageID.
func (e *Engine) AttachFeedback(ctx context.Context, threadID, messageID, feedback string) error {
	return e.transcripts.AttachFeedback(ctx, threadID, messageID, feedback)
}

// ListThreads returns the user's threads sorted by recency.
func (e *Engine) ListThreads(ctx context.Context, userID string) ([]transcript.Thread, error) {
	return e.transcripts.ListThreads(ctx, userID)
}

// GetTranscript returns the thread's chat entries in append order.
func (e *Engine) GetTranscript(ctx context.Context, threadID string) ([]transcript.ChatEntry, error) {
	return e.transcripts.GetTranscript(ctx, threadID)
}

// Messages returns the thread's current checkpointed message window, or nil
// for an unknown thread.
func (e *Engine) Messages(ctx context.Context, threadID string) ([]core.Message, error) {
	state, err := e.checkpoints.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	return state.Messages, nil
}

// DeleteThread removes the checkpoint, transcript, and registry entry
// together.
func (e *Engine) DeleteThread(ctx context.Context, threadID string) error {
	if err := e.transcripts.DeleteThread(ctx, threadID); err != nil {
		return err
	}
	return e.checkpoints.Delete(ctx, threadID)
}
