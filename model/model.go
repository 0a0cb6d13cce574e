// Package model defines the normalized request/response surface between the
// orchestration graph and concrete language model providers, plus a mock
// implementation for tests.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/ripplecurve/ripplecurve/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by graph nodes.
// Internal marks summarization/title calls whose token deltas must never
// reach the caller's stream.
type Request struct {
	Instructions string           `json:"instructions,omitempty"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
	Internal     bool             `json:"internal,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
// Partial responses carry Delta text; the final response carries the fully
// assembled assistant Message including any tool calls.
type Response struct {
	Partial      bool         `json:"partial"`
	Delta        string       `json:"delta,omitempty"`
	Message      core.Message `json:"message,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the graph to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Final drives a single non-streaming generation and returns the assembled
// assistant message. Used by the summarizer and title calls, which never
// loop and need no per-delta handling.
func Final(ctx context.Context, m Model, req Request) (core.Message, error) {
	req.Stream = false
	respCh, errCh := m.Generate(ctx, req)

	var final core.Message
	var got bool
	for {
		select {
		case <-ctx.Done():
			return core.Message{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				if !got {
					if err, open := <-errCh; open && err != nil {
						return core.Message{}, err
					}
					return core.Message{}, fmt.Errorf("model produced no response")
				}
				return final, nil
			}
			if !resp.Partial {
				final = resp.Message
				got = true
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				return core.Message{}, err
			}
		}
	}
}

// MockModel is a lightweight in-memory Model useful for tests. Scripted
// responses are consumed in order; when the script is exhausted it echoes
// the last message. All Generate requests are recorded for assertions.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	script    []core.Message
	responses map[string]string
	requests  []Request
	fail      error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider, SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue scripts assistant messages returned by successive Generate calls.
func (m *MockModel) Enqueue(msgs ...core.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, msgs...)
}

// FailWith makes every subsequent Generate call report err.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Requests returns a copy of all recorded Generate requests.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]Request, len(m.requests))
	copy(reqs, m.requests)
	return reqs
}

func (m *MockModel) next(req Request) (core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.fail != nil {
		return core.Message{}, m.fail
	}
	if len(m.script) > 0 {
		msg := m.script[0]
		m.script = m.script[1:]
		return msg, nil
	}
	var inputText string
	if len(req.Messages) > 0 {
		inputText = req.Messages[len(req.Messages)-1].Content
	}
	if canned, ok := m.responses[inputText]; ok {
		return core.NewAssistantMessage(canned), nil
	}
	return core.NewAssistantMessage("Mock response to: " + inputText), nil
}

// Generate implements Model; emits optional streaming rune chunks then the
// final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		msg, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}
		if req.Stream && msg.Content != "" {
			for _, r := range msg.Content {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Delta: string(r)}:
				}
			}
		}
		finish := "stop"
		if msg.HasToolCalls() {
			finish = "tool_calls"
		}
		respCh <- Response{Partial: false, Message: msg, FinishReason: finish}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
