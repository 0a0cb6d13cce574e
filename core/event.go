package core

import (
	"encoding/json"
	"time"
)

// EventKind discriminates the variants of the internal event feed produced
// by a graph run. The streaming emitter switches over it exhaustively.
type EventKind string

const (
	// EventThreadID announces the thread identity; always the first event of a run.
	EventThreadID EventKind = "thread_id"
	// EventTokenDelta carries one streamed fragment of model output text.
	EventTokenDelta EventKind = "token_delta"
	// EventToolResult reports the completion of one tool call.
	EventToolResult EventKind = "tool_result"
	// EventNodeEnter marks a graph node boundary.
	EventNodeEnter EventKind = "node_enter"
	// EventError is terminal; no further events follow it.
	EventError EventKind = "error"
)

// Event is one entry of the live feed describing a graph run. Events are
// produced in execution order and must be forwarded in that order. After
// emission an Event is immutable.
type Event struct {
	Kind      EventKind       `json:"kind"`
	ThreadID  string          `json:"thread_id,omitempty"`
	TurnID    string          `json:"turn_id,omitempty"`
	Delta     string          `json:"delta,omitempty"`
	Internal  bool            `json:"internal,omitempty"` // summarization/title call, excluded from the token stream
	Tool      string          `json:"tool,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Node      string          `json:"node,omitempty"`
	Err       string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newEvent(kind EventKind) Event {
	return Event{Kind: kind, Timestamp: time.Now().UTC()}
}

// NewThreadIDEvent creates the mandatory first event of a run.
func NewThreadIDEvent(threadID, turnID string) Event {
	e := newEvent(EventThreadID)
	e.ThreadID = threadID
	e.TurnID = turnID
	return e
}

// NewTokenDeltaEvent creates a streamed output fragment. Internal deltas
// belong to summarization or title calls and never reach the caller.
func NewTokenDeltaEvent(delta string, internal bool) Event {
	e := newEvent(EventTokenDelta)
	e.Delta = delta
	e.Internal = internal
	return e
}

// NewToolResultEvent records the completion of a tool call with its raw
// JSON result payload.
func NewToolResultEvent(tool string, result json.RawMessage) Event {
	e := newEvent(EventToolResult)
	e.Tool = tool
	e.Result = result
	return e
}

// NewNodeEnterEvent marks entry into a named graph node.
func NewNodeEnterEvent(node string) Event {
	e := newEvent(EventNodeEnter)
	e.Node = node
	return e
}

// NewErrorEvent creates the terminal error event for a failed run.
func NewErrorEvent(err error) Event {
	e := newEvent(EventError)
	e.Err = err.Error()
	return e
}
