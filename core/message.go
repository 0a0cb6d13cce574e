package core

import "github.com/google/uuid"

// Role identifies the author of a message. Only the four tagged values are
// valid; ConversationState.Validate rejects anything else.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// ToolCall is a model-requested tool invocation carried on an assistant
// message. Arguments is the raw JSON payload as produced by the model.
type ToolCall struct {
	ID        string `json:"id" bson:"id"`
	Name      string `json:"name" bson:"name"`
	Arguments string `json:"arguments" bson:"arguments"`
}

// Message is one turn-unit exchanged with the model. Tool-role messages
// carry the ToolCallID they answer; assistant messages may carry ToolCalls.
type Message struct {
	ID         string     `json:"id" bson:"id"`
	Role       Role       `json:"role" bson:"role"`
	Content    string     `json:"content" bson:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" bson:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty" bson:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty" bson:"tool_name,omitempty"`
}

// HasToolCalls reports whether the message requests any tool invocations.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// NewID returns a fresh message identity token.
func NewID() string { return uuid.NewString() }

// NewUserMessage creates a user-authored message.
func NewUserMessage(content string) Message {
	return Message{ID: NewID(), Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{ID: NewID(), Role: RoleAssistant, Content: content}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{ID: NewID(), Role: RoleSystem, Content: content}
}

// NewToolMessage creates a tool-result message answering the given call.
func NewToolMessage(callID, toolName, content string) Message {
	return Message{ID: NewID(), Role: RoleTool, Content: content, ToolCallID: callID, ToolName: toolName}
}

// ConversationState is the resumable snapshot of one thread: the ordered
// message window, the rolling summary, and the optional file attachment
// routing a turn to the document agent. The message list is append-only
// except during summarization compaction.
type ConversationState struct {
	Messages []Message `json:"messages" bson:"messages"`
	Summary  string    `json:"summary,omitempty" bson:"summary,omitempty"`
	FileID   string    `json:"file_id,omitempty" bson:"file_id,omitempty"`
	FileType string    `json:"file_type,omitempty" bson:"file_type,omitempty"`
}

// Validate checks structural invariants of the window.
func (s *ConversationState) Validate() error {
	for _, m := range s.Messages {
		if !m.Role.Valid() {
			return NewPreconditionError("message " + m.ID + " has unknown role " + string(m.Role))
		}
		if m.Role == RoleTool && m.ToolCallID == "" {
			return NewPreconditionError("tool message " + m.ID + " missing tool_call_id")
		}
	}
	return nil
}

// UserMessageCount returns the number of user-authored messages in the window.
func (s *ConversationState) UserMessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// LastMessage returns the last message in the window, or a zero Message.
func (s *ConversationState) LastMessage() Message {
	if len(s.Messages) == 0 {
		return Message{}
	}
	return s.Messages[len(s.Messages)-1]
}

// LastUserMessage returns the most recent user-authored message, or a zero
// Message when none exists.
func (s *ConversationState) LastUserMessage() Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i]
		}
	}
	return Message{}
}

// Append adds messages to the end of the window.
func (s *ConversationState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Clone returns a deep copy of the state.
func (s *ConversationState) Clone() *ConversationState {
	out := &ConversationState{
		Summary:  s.Summary,
		FileID:   s.FileID,
		FileType: s.FileType,
	}
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			if m.ToolCalls != nil {
				tc := make([]ToolCall, len(m.ToolCalls))
				copy(tc, m.ToolCalls)
				m.ToolCalls = tc
			}
			out.Messages[i] = m
		}
	}
	return out
}
