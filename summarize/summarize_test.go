package summarize

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/model"
)

// collectingCtx returns a TurnContext whose emitted events are gathered for
// assertions once done is called.
func collectingCtx(t *testing.T) (*core.TurnContext, func() []core.Event) {
	t.Helper()
	events := make(chan core.Event)
	var mu sync.Mutex
	var got []core.Event
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
		}
	}()
	tctx := core.NewTurnContext(context.Background(), "t1", "turn1", events, nil)
	return tctx, func() []core.Event {
		close(events)
		wg.Wait()
		return got
	}
}

func window(userCount int) *core.ConversationState {
	s := &core.ConversationState{}
	for i := 0; i < userCount; i++ {
		s.Append(core.NewUserMessage("question"))
		s.Append(core.NewAssistantMessage("answer"))
	}
	return s
}

func TestCompact_BelowThresholdOnlyEnsuresSystemHead(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	s := New(m, 10)

	state := window(3)
	tctx, done := collectingCtx(t)
	require.NoError(t, s.Compact(tctx, state))
	done()

	assert.Empty(t, state.Summary)
	assert.Empty(t, m.Requests(), "no model call below threshold")
	require.Equal(t, core.RoleSystem, state.Messages[0].Role)
	assert.Len(t, state.Messages, 7)
}

func TestCompact_FiresAboveThreshold(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.Enqueue(core.NewAssistantMessage("the conversation covered capitals"))
	s := New(m, 4)

	state := window(5) // 5 user messages > 4
	tctx, done := collectingCtx(t)
	require.NoError(t, s.Compact(tctx, state))
	events := done()

	assert.Equal(t, "the conversation covered capitals", state.Summary)
	require.Len(t, m.Requests(), 1)
	assert.True(t, m.Requests()[0].Internal, "summarizer call must be tagged internal")

	// system head plus the 4 most recent non-system messages
	require.Equal(t, core.RoleSystem, state.Messages[0].Role)
	assert.Contains(t, state.Messages[0].Content, state.Summary)
	assert.Len(t, state.Messages, 5)

	for _, ev := range events {
		if ev.Kind == core.EventTokenDelta {
			assert.True(t, ev.Internal, "summarizer deltas must be internal")
		}
	}
}

func TestCompact_FoldsPriorSummary(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.Enqueue(core.NewAssistantMessage("new summary"))
	s := New(m, 1)

	state := window(2)
	state.Summary = "old summary"
	tctx, done := collectingCtx(t)
	require.NoError(t, s.Compact(tctx, state))
	done()

	assert.Equal(t, "new summary", state.Summary)
	require.Len(t, m.Requests(), 1)
	prompt := m.Requests()[0].Messages[0].Content
	assert.Contains(t, prompt, "old summary")
}

func TestCompact_ZeroThresholdFiresEveryTurn(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.Enqueue(core.NewAssistantMessage("summary"))
	s := New(m, 0)

	state := window(1)
	tctx, done := collectingCtx(t)
	require.NoError(t, s.Compact(tctx, state))
	done()

	require.Len(t, m.Requests(), 1)
	// nothing retained: system head only
	require.Len(t, state.Messages, 1)
	assert.Equal(t, core.RoleSystem, state.Messages[0].Role)
}

func TestCompact_ReplacesPriorSystemMessage(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.Enqueue(core.NewAssistantMessage("summary"))
	s := New(m, 1)

	state := &core.ConversationState{}
	state.Append(core.NewSystemMessage("stale system prompt"))
	state.Messages = append(state.Messages, window(2).Messages...)

	tctx, done := collectingCtx(t)
	require.NoError(t, s.Compact(tctx, state))
	done()

	var systems int
	for _, msg := range state.Messages {
		if msg.Role == core.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems, "exactly one regenerated system message")
	assert.NotEqual(t, "stale system prompt", state.Messages[0].Content)
}

// chattyModel streams its text unconditionally, ignoring cancellation, so
// the only abort path is the turn context itself.
type chattyModel struct{ text string }

func (m chattyModel) Generate(_ context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, len(m.text)+1)
	errCh := make(chan error)
	for _, r := range m.text {
		out <- model.Response{Partial: true, Delta: string(r)}
	}
	out <- model.Response{Message: core.NewAssistantMessage(m.text)}
	close(out)
	close(errCh)
	return out, errCh
}

func (chattyModel) Info() model.Info {
	return model.Info{Name: "chatty", Provider: "test"}
}

func TestCompact_CancelledTurnAborts(t *testing.T) {
	s := New(chattyModel{text: "summary"}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := make(chan core.Event) // no consumer; the cancelled turn must not block on it
	tctx := core.NewTurnContext(ctx, "t1", "turn1", events, nil)

	err := s.Compact(tctx, window(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateTitle(t *testing.T) {
	m := model.NewMockModel("mock", "test")
	m.Enqueue(core.NewAssistantMessage(`"Capital of France"`))

	title, err := GenerateTitle(context.Background(), m, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Capital of France", title)
	require.Len(t, m.Requests(), 1)
	assert.True(t, m.Requests()[0].Internal)
	assert.False(t, m.Requests()[0].Stream)
}
