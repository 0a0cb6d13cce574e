package stream

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/tool"
)

// assertEventHeadersStartLines fails if any named event header appears
// mid-line, which would make it unparseable as an event.
func assertEventHeadersStartLines(t *testing.T, body string) {
	t.Helper()
	for i := strings.Index(body, "event: "); i != -1; {
		if i > 0 && body[i-1] != '\n' {
			t.Fatalf("event header not at start of line in %q", body)
		}
		next := strings.Index(body[i+1:], "event: ")
		if next == -1 {
			return
		}
		i += 1 + next
	}
}

// feed closes over a scripted event sequence and an optional terminal error.
func feed(events []core.Event, err error) (<-chan core.Event, <-chan error) {
	evCh := make(chan core.Event)
	errCh := make(chan error, 1)
	go func() {
		defer close(evCh)
		defer close(errCh)
		for _, ev := range events {
			evCh <- ev
		}
		if err != nil {
			errCh <- err
		}
	}()
	return evCh, errCh
}

func TestServe_OrderAndFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	events, errs := feed([]core.Event{
		core.NewThreadIDEvent("t1", "turn1"),
		core.NewNodeEnterEvent("primary_agent"),
		core.NewTokenDeltaEvent("Hel", false),
		core.NewTokenDeltaEvent("lo", false),
	}, nil)

	res := Serve(rec, events, errs, "My Title")
	require.NoError(t, res.Err)
	assert.Equal(t, "Hello", res.AssistantText)
	assert.False(t, res.WebSearch)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: thread_id\ndata: t1\n"), "thread_id must come first: %q", body)
	assert.Contains(t, body, "Hel\nlo\n", "each delta is newline-terminated")
	assert.True(t, strings.HasSuffix(body, "event: thread_title\ndata: My Title\n"), "title must come last: %q", body)
	assert.NotContains(t, body, "primary_agent", "node boundaries stay internal")
	assertEventHeadersStartLines(t, body)
}

func TestServe_NoTitleForExistingThread(t *testing.T) {
	rec := httptest.NewRecorder()
	events, errs := feed([]core.Event{
		core.NewThreadIDEvent("t1", "turn1"),
		core.NewTokenDeltaEvent("hi", false),
	}, nil)

	res := Serve(rec, events, errs, "")
	require.NoError(t, res.Err)
	assert.NotContains(t, rec.Body.String(), "thread_title")
}

func TestServe_FiltersInternalDeltas(t *testing.T) {
	rec := httptest.NewRecorder()
	events, errs := feed([]core.Event{
		core.NewThreadIDEvent("t1", "turn1"),
		core.NewTokenDeltaEvent("secret summary", true),
		core.NewTokenDeltaEvent("visible", false),
	}, nil)

	res := Serve(rec, events, errs, "")
	require.NoError(t, res.Err)
	assert.Equal(t, "visible", res.AssistantText)
	assert.NotContains(t, rec.Body.String(), "secret summary")
}

func TestServe_WebSearchSideChannel(t *testing.T) {
	payload, _ := json.Marshal(map[string]interface{}{
		"query": "x",
		"results": []map[string]string{
			{"url": "https://a.example"},
			{"url": "https://b.example"},
		},
	})

	rec := httptest.NewRecorder()
	events, errs := feed([]core.Event{
		core.NewThreadIDEvent("t1", "turn1"),
		core.NewToolResultEvent(tool.WebSearchName, payload),
		core.NewToolResultEvent("other_tool", []byte(`{}`)),
		core.NewTokenDeltaEvent("answer", false),
	}, nil)

	res := Serve(rec, events, errs, "")
	require.NoError(t, res.Err)
	assert.True(t, res.WebSearch)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, res.URLs)

	body := rec.Body.String()
	assert.Contains(t, body, "event: web_search\ndata: ")
	assert.Contains(t, body, "https://a.example")
	assert.Equal(t, 1, strings.Count(body, "event: web_search"), "non-search tools emit no side channel")
	assertEventHeadersStartLines(t, body)
}

func TestServe_TerminalError(t *testing.T) {
	rec := httptest.NewRecorder()
	events, errs := feed([]core.Event{
		core.NewThreadIDEvent("t1", "turn1"),
		core.NewTokenDeltaEvent("partial", false),
	}, errors.New("model exploded"))

	res := Serve(rec, events, errs, "Would-be Title")
	require.Error(t, res.Err)

	body := rec.Body.String()
	assert.Contains(t, body, "event: error\ndata: ")
	assert.Contains(t, body, "model exploded")
	assert.NotContains(t, body, "thread_title", "error replaces further output")
	assertEventHeadersStartLines(t, body)
}
