// Package stream serializes the graph's internal event feed into the wire
// protocol consumed by the chat client.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ripplecurve/ripplecurve/core"
	"github.com/ripplecurve/ripplecurve/tool"
)

// Result summarizes a finished stream for the caller: the accumulated
// assistant text, whether the search tool ran, the result URLs it produced,
// and the terminal error if the run failed.
type Result struct {
	AssistantText string
	WebSearch     bool
	URLs          []string
	Err           error
}

type searchPayload struct {
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

// Serve consumes the event feed and forwards it to w as it arrives, with no
// buffering of the full response. Internal token deltas are filtered out.
// The thread-identity event is forwarded first; a non-empty title is
// appended once the feed is exhausted; a terminal error replaces any further
// output.
func Serve(w http.ResponseWriter, events <-chan core.Event, errs <-chan error, title string) Result {
	var res Result

	flusher, ok := w.(http.Flusher)
	if !ok {
		res.Err = fmt.Errorf("stream: response writer does not support flushing")
		return res
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var text strings.Builder
	write := func(s string) {
		fmt.Fprint(w, s)
		flusher.Flush()
	}

	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Kind {
			case core.EventThreadID:
				write("event: thread_id\ndata: " + ev.ThreadID + "\n")
			case core.EventTokenDelta:
				if ev.Internal {
					continue
				}
				text.WriteString(ev.Delta)
				// each delta is newline-terminated so named events that
				// follow always start on a fresh line
				write(ev.Delta + "\n")
			case core.EventToolResult:
				if ev.Tool != tool.WebSearchName {
					continue
				}
				res.WebSearch = true
				var sp searchPayload
				if err := json.Unmarshal(ev.Result, &sp); err == nil {
					for _, r := range sp.Results {
						res.URLs = append(res.URLs, r.URL)
					}
				}
				write("event: web_search\ndata: " + string(ev.Result) + "\n")
			case core.EventNodeEnter:
				// node boundaries are internal; nothing reaches the wire
			case core.EventError:
				// terminal errors arrive on errs; ignore the duplicate
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				res.Err = err
			}
		}
	}

	res.AssistantText = text.String()
	if res.Err != nil {
		payload, _ := json.Marshal(map[string]string{"error": res.Err.Error()})
		write("event: error\ndata: " + string(payload) + "\n")
		return res
	}
	if title != "" {
		write("event: thread_title\ndata: " + title + "\n")
	}
	return res
}
