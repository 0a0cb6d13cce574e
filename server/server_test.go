package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplecurve/ripplecurve"
	"github.com/ripplecurve/ripplecurve/checkpoint"
	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/graph"
	"github.com/ripplecurve/ripplecurve/model"
	"github.com/ripplecurve/ripplecurve/summarize"
	"github.com/ripplecurve/ripplecurve/transcript"
)

type fixture struct {
	handler     http.Handler
	mock        *model.MockModel
	checkpoints *checkpoint.InMemoryStore
	transcripts *transcript.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := model.NewMockModel("mock", "test")
	cps := checkpoint.NewInMemoryStore()
	ts := transcript.NewInMemoryStore()
	g := graph.New(cps, m, summarize.New(m, 10))
	engine := ripplecurve.NewEngine(g, cps, ts, m, nil)
	verifier := StaticTokenVerifier{
		Token:    "secret",
		Identity: Identity{ID: "u1", Email: "u1@example.com", Name: "User One"},
	}
	return &fixture{
		handler:     New(engine, verifier, nil).Handler(),
		mock:        m,
		checkpoints: cps,
		transcripts: ts,
	}
}

func (f *fixture) do(method, path, token string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func turnBody(message, threadID string) string {
	b, _ := json.Marshal(map[string]string{
		"message":     message,
		"threadId":    threadID,
		"humanId":     "h1",
		"assistantId": "a1",
	})
	return string(b)
}

func TestAuth_Rejections(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/chat/stream", "", turnBody("hi", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/chat/stream", "wrong", turnBody("hi", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStream_Preconditions(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/chat/stream", "secret", `{"threadId":"t1","humanId":"h1","assistantId":"a1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing message")

	rec = f.do(http.MethodPost, "/chat/stream", "secret", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing ids")

	rec = f.do(http.MethodPost, "/chat/stream", "secret", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// nothing was written anywhere
	threads, _ := f.transcripts.ListThreads(context.Background(), "u1")
	assert.Empty(t, threads)
}

func TestStream_NewThreadFullTurn(t *testing.T) {
	f := newFixture(t)
	f.mock.Enqueue(core.NewAssistantMessage("Paris Question")) // title call
	f.mock.Enqueue(core.NewAssistantMessage("The capital of France is Paris."))

	rec := f.do(http.MethodPost, "/chat/stream", "secret", turnBody("What is the capital of France?", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "event: thread_id\ndata: "), "body: %q", body)
	// deltas arrive newline-terminated; joining the lines restores the text
	assert.Contains(t, strings.ReplaceAll(body, "\n", ""), "The capital of France is Paris.")
	assert.Equal(t, 1, strings.Count(body, "event: thread_title"), "exactly one title event")
	assert.Contains(t, body, "event: thread_title\ndata: Paris Question\n")

	ctx := context.Background()
	threads, err := f.transcripts.ListThreads(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Paris Question", threads[0].Title)
	assert.Equal(t, "u1@example.com", threads[0].Email)
	assert.Equal(t, "User One", threads[0].Name)

	entries, err := f.transcripts.GetTranscript(ctx, threads[0].ThreadID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "user", entries[0].Type)
	assert.Equal(t, "What is the capital of France?", entries[0].Text)
	assert.Equal(t, "assistant", entries[1].Type)
	assert.Equal(t, "The capital of France is Paris.", entries[1].Text)
}

func TestStream_SecondTurnNoTitle(t *testing.T) {
	f := newFixture(t)
	f.mock.Enqueue(core.NewAssistantMessage("Title"))
	f.mock.Enqueue(core.NewAssistantMessage("first answer"))

	rec := f.do(http.MethodPost, "/chat/stream", "secret", turnBody("first", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	threads, _ := f.transcripts.ListThreads(context.Background(), "u1")
	require.Len(t, threads, 1)
	threadID := threads[0].ThreadID

	f.mock.Enqueue(core.NewAssistantMessage("second answer"))
	rec = f.do(http.MethodPost, "/chat/stream", "secret", turnBody("second", threadID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "thread_title", "existing thread gets no title event")

	threads, _ = f.transcripts.ListThreads(context.Background(), "u1")
	require.Len(t, threads, 1)
	assert.Equal(t, "Title", threads[0].Title, "original title untouched")
}

func TestStream_ErroredTurnWritesNoAssistantEntry(t *testing.T) {
	f := newFixture(t)
	f.mock.FailWith(errors.New("provider down"))

	rec := f.do(http.MethodPost, "/chat/stream", "secret", turnBody("hi", "t-err"))
	require.Equal(t, http.StatusOK, rec.Code, "stream already started; error rides the stream")
	assert.Contains(t, rec.Body.String(), "event: error\ndata: ")

	entries, _ := f.transcripts.GetTranscript(context.Background(), "t-err")
	require.Len(t, entries, 1, "only the user entry survives a failed turn")
	assert.Equal(t, "user", entries[0].Type)

	state, _ := f.checkpoints.Get(context.Background(), "t-err")
	assert.Nil(t, state, "failed turn persists no checkpoint")
}

func TestFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.transcripts.UpsertThread(ctx, transcript.Thread{ThreadID: "t1", UserID: "u1"})
	_ = f.transcripts.AppendTurn(ctx, "t1", "u1", transcript.ChatEntry{ID: "m1", Type: "assistant", Text: "hi"})

	rec := f.do(http.MethodPut, "/chat/feedback?threadId=t1&messageId=m1&feedback=helpful", "secret", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// idempotent repeat
	rec = f.do(http.MethodPut, "/chat/feedback?threadId=t1&messageId=m1&feedback=helpful", "secret", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	entries, _ := f.transcripts.GetTranscript(ctx, "t1")
	assert.Equal(t, "helpful", entries[0].Feedback)

	rec = f.do(http.MethodPut, "/chat/feedback?threadId=t1&messageId=missing&feedback=x", "secret", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPut, "/chat/feedback?threadId=t1", "secret", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryAndMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.transcripts.UpsertThread(ctx, transcript.Thread{ThreadID: "t1", UserID: "u1"})

	state := &core.ConversationState{}
	state.Append(
		core.NewSystemMessage("sys"),
		core.NewUserMessage("q"),
		core.NewAssistantMessage("a"),
	)
	require.NoError(t, f.checkpoints.Put(ctx, "t1", state))

	rec := f.do(http.MethodGet, "/chat/history", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var threads []transcript.Thread
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &threads))
	require.Len(t, threads, 1)

	rec = f.do(http.MethodGet, "/chat/messages?threadId=t1", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []core.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2, "system messages stay hidden")
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, core.RoleAssistant, msgs[1].Role)

	rec = f.do(http.MethodGet, "/chat/messages", "secret", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.transcripts.UpsertThread(ctx, transcript.Thread{ThreadID: "t1", UserID: "u1"})
	_ = f.transcripts.AppendTurn(ctx, "t1", "u1", transcript.ChatEntry{ID: "m1", Type: "user", Text: "hi"})
	_ = f.checkpoints.Put(ctx, "t1", &core.ConversationState{})

	rec := f.do(http.MethodDelete, "/chat/thread?threadId=t1", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	threads, _ := f.transcripts.ListThreads(ctx, "u1")
	assert.Empty(t, threads)
	state, _ := f.checkpoints.Get(ctx, "t1")
	assert.Nil(t, state)
}
