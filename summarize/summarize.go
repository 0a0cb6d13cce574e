// Package summarize compresses overflowing conversation history into a
// rolling summary before an agent node runs.
package summarize

import (
	"fmt"
	"strings"

	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/model"
)

const summaryInstructions = `You maintain a rolling summary of a conversation.
Condense the messages below into a concise summary that preserves facts,
decisions, names, and open questions. If a previous summary is given, fold it
in rather than repeating it. Reply with the summary text only.`

// SystemPrompt renders the system message content for the given rolling
// summary. An empty summary yields the bare assistant prompt.
func SystemPrompt(summary string) string {
	const base = "You are a helpful assistant. Answer clearly and concisely."
	if summary == "" {
		return base
	}
	return base + "\n\nSummary of the conversation so far:\n" + summary
}

// Summarizer rewrites a conversation window once it exceeds the configured
// number of user-authored messages. Compaction is the only permitted history
// rewrite in the engine.
type Summarizer struct {
	model       model.Model
	maxMessages int
}

// New creates a summarizer. A maxMessages of zero or less makes compaction
// fire on every turn; the caller is expected to warn about that at startup.
func New(m model.Model, maxMessages int) *Summarizer {
	return &Summarizer{model: m, maxMessages: maxMessages}
}

// ShouldCompact reports whether the window holds more user-authored messages
// than the configured threshold.
func (s *Summarizer) ShouldCompact(state *core.ConversationState) bool {
	return state.UserMessageCount() > s.maxMessages
}

// Compact carves off the overflow of the message window, folds it into the
// rolling summary via one internally tagged model call, truncates the window,
// and regenerates the system message from the new summary.
//
// The window afterwards holds the regenerated system message followed by the
// most recent maxMessages non-system messages.
func (s *Summarizer) Compact(tctx *core.TurnContext, state *core.ConversationState) error {
	if !s.ShouldCompact(state) {
		ensureSystemHead(state)
		return nil
	}

	var window []core.Message
	for _, m := range state.Messages {
		if m.Role != core.RoleSystem {
			window = append(window, m)
		}
	}

	keep := s.maxMessages
	if keep < 0 {
		keep = 0
	}
	if keep > len(window) {
		keep = len(window)
	}
	carved := window[:len(window)-keep]
	retained := window[len(window)-keep:]

	if len(carved) > 0 {
		summary, err := s.condense(tctx, state.Summary, carved)
		if err != nil {
			return err
		}
		state.Summary = summary
	}

	state.Messages = append([]core.Message{core.NewSystemMessage(SystemPrompt(state.Summary))}, retained...)
	return nil
}

// condense runs the summarizer prompt over the carved-off slice. The call is
// tagged internal so its tokens never reach the user-visible stream.
func (s *Summarizer) condense(tctx *core.TurnContext, prior string, carved []core.Message) (string, error) {
	var b strings.Builder
	if prior != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(prior)
		b.WriteString("\n\n")
	}
	b.WriteString("Messages to fold in:\n")
	for _, m := range carved {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	req := model.Request{
		Instructions: summaryInstructions,
		Messages:     []core.Message{core.NewUserMessage(b.String())},
		Stream:       true,
		Internal:     true,
	}

	resCh, errCh := s.model.Generate(tctx.Context, req)
	var out strings.Builder
	for resCh != nil || errCh != nil {
		select {
		case res, ok := <-resCh:
			if !ok {
				resCh = nil
				continue
			}
			if res.Partial {
				if err := tctx.EmitEvent(core.NewTokenDeltaEvent(res.Delta, true)); err != nil {
					return "", err
				}
				out.WriteString(res.Delta)
			} else if out.Len() == 0 {
				out.WriteString(res.Message.Content)
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		case <-tctx.Context.Done():
			return "", tctx.Context.Err()
		}
	}

	summary := strings.TrimSpace(out.String())
	if summary == "" {
		return "", core.NewModelError("summarizer", fmt.Errorf("empty summary"))
	}
	return summary, nil
}

// ensureSystemHead prepends a system message rendered from the current
// summary when the window lacks one.
func ensureSystemHead(state *core.ConversationState) {
	if len(state.Messages) > 0 && state.Messages[0].Role == core.RoleSystem {
		return
	}
	state.Messages = append([]core.Message{core.NewSystemMessage(SystemPrompt(state.Summary))}, state.Messages...)
}
