package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/document"
	"github.com/ripplecurve/ripplecurve/model"
)

// runPrimaryAgent drives the model over the summarized window, looping
// through the tool executor until the model answers without tool calls or
// the iteration cap trips.
func (g *Graph) runPrimaryAgent(tctx *core.TurnContext, state *core.ConversationState) error {
	for iteration := 0; ; iteration++ {
		if iteration >= g.opts.MaxToolIterations {
			return &core.LoopLimitError{Max: g.opts.MaxToolIterations}
		}

		if err := tctx.EmitEvent(core.NewNodeEnterEvent(NodePrimaryAgent)); err != nil {
			return err
		}
		if err := g.summarizer.Compact(tctx, state); err != nil {
			return err
		}

		msg, err := g.invoke(tctx, model.Request{
			Messages: state.Messages,
			Tools:    g.toolDefs,
			Stream:   true,
		}, false)
		if err != nil {
			return err
		}
		state.Append(msg)

		if !msg.HasToolCalls() {
			return nil
		}
		if err := g.runToolExecutor(tctx, state, msg.ToolCalls); err != nil {
			return err
		}
	}
}

// runToolExecutor executes each requested tool and appends its output as a
// tool message. Control returns unconditionally to the primary agent.
func (g *Graph) runToolExecutor(tctx *core.TurnContext, state *core.ConversationState, calls []core.ToolCall) error {
	if err := tctx.EmitEvent(core.NewNodeEnterEvent(NodeToolExecutor)); err != nil {
		return err
	}

	for _, call := range calls {
		t, ok := g.tools[call.Name]
		if !ok {
			return fmt.Errorf("unknown tool %q requested by model", call.Name)
		}

		args := make(map[string]interface{})
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				return fmt.Errorf("tool %s: invalid arguments: %w", call.Name, err)
			}
		}

		g.logger.Debug("executing tool", "tool", call.Name, "thread_id", tctx.ThreadID)
		result, err := t.Call(tctx.Context, args)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("tool %s: encode result: %w", call.Name, err)
		}
		if err := tctx.EmitEvent(core.NewToolResultEvent(call.Name, payload)); err != nil {
			return err
		}
		state.Append(core.NewToolMessage(call.ID, call.Name, string(payload)))
	}
	return nil
}

const documentPrompt = `Answer the question using only the context below.
If the context does not contain the answer, say so.

Context:
%s

Question: %s`

// runDocumentAgent answers the latest user message against the attached
// file: load, chunk, build a throwaway vector index, retrieve, one model
// call. Terminal; the turn's window is replaced by the answer alone, with
// the rolling summary preserved.
func (g *Graph) runDocumentAgent(tctx *core.TurnContext, state *core.ConversationState) error {
	if err := tctx.EmitEvent(core.NewNodeEnterEvent(NodeDocumentAgent)); err != nil {
		return err
	}
	if g.opts.Loader == nil || g.opts.Embedding == nil {
		return fmt.Errorf("document agent not configured")
	}
	if err := g.summarizer.Compact(tctx, state); err != nil {
		return err
	}

	question := state.LastUserMessage().Content

	text, err := g.opts.Loader.Load(tctx.Context, state.FileID)
	if err != nil {
		return err
	}
	chunks := document.SplitText(text, g.opts.ChunkSize, g.opts.ChunkOverlap)
	index, err := document.BuildIndex(tctx.Context, chunks, g.opts.Embedding)
	if err != nil {
		return err
	}
	retrieved, err := index.Query(tctx.Context, question, document.TopK)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf(documentPrompt, document.JoinContext(retrieved), question)
	msg, err := g.invoke(tctx, model.Request{
		Messages: []core.Message{core.NewUserMessage(prompt)},
		Stream:   true,
	}, false)
	if err != nil {
		return err
	}

	// Document answers replace the window rather than appending to it.
	state.Messages = []core.Message{msg}
	return nil
}

// invoke drives one streamed model call, forwarding partial deltas as token
// events, and returns the assembled final message.
func (g *Graph) invoke(tctx *core.TurnContext, req model.Request, internal bool) (core.Message, error) {
	resCh, errCh := g.model.Generate(tctx.Context, req)

	var final core.Message
	var text strings.Builder
	var got, sawPartial bool
	for resCh != nil || errCh != nil {
		select {
		case res, ok := <-resCh:
			if !ok {
				resCh = nil
				continue
			}
			if res.Partial {
				sawPartial = true
				text.WriteString(res.Delta)
				if err := tctx.EmitEvent(core.NewTokenDeltaEvent(res.Delta, internal)); err != nil {
					return core.Message{}, err
				}
				continue
			}
			final = res.Message
			got = true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return core.Message{}, core.NewModelError(g.model.Info().Provider, err)
			}
		case <-tctx.Done():
			return core.Message{}, tctx.Err()
		}
	}

	if !got {
		if text.Len() == 0 {
			return core.Message{}, core.NewModelError(g.model.Info().Provider, fmt.Errorf("no response"))
		}
		final = core.NewAssistantMessage(text.String())
	}

	// a provider that answers a streamed request with only a final message
	// still has to put the answer on the wire
	if req.Stream && !sawPartial && final.Content != "" {
		if err := tctx.EmitEvent(core.NewTokenDeltaEvent(final.Content, internal)); err != nil {
			return core.Message{}, err
		}
	}
	return final, nil
}
