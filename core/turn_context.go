package core

import (
	"context"

	"github.com/ripplecurve/ripplecurve/logging"
)

// TurnContext carries the execution scope of one turn through the graph
// nodes: the ambient cancellation context, thread/turn identifiers, the
// event emit channel and a logger. Nodes never write to the emit channel
// directly; they go through EmitEvent so cancellation is always respected.
type TurnContext struct {
	Context  context.Context
	ThreadID string
	TurnID   string
	Emit     chan<- Event
	Logger   logging.Logger
}

// NewTurnContext constructs a TurnContext for one graph run.
func NewTurnContext(ctx context.Context, threadID, turnID string, emit chan<- Event, logger logging.Logger) *TurnContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &TurnContext{
		Context:  ctx,
		ThreadID: threadID,
		TurnID:   turnID,
		Emit:     emit,
		Logger:   logger,
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (t *TurnContext) Done() <-chan struct{} { return t.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (t *TurnContext) Err() error { return t.Context.Err() }

// EmitEvent forwards ev to the consumer, or returns the cancellation error
// if the turn was cancelled (e.g. the caller disconnected mid-stream).
func (t *TurnContext) EmitEvent(ev Event) error {
	select {
	case <-t.Context.Done():
		return t.Context.Err()
	case t.Emit <- ev:
		return nil
	}
}
