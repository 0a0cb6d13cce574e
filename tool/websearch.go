package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WebSearchName is the registered name of the search tool. The streaming
// emitter keys its side-channel event off this name.
const WebSearchName = "web_search"

// defaultMaxResults bounds every search to a fixed result count.
const defaultMaxResults = 3

// SearchResult is one retrieved web document.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchResponse is the tool's result payload. Results always carries at
// most MaxResults entries.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// WebSearchOptions configures the Tavily-backed search tool.
type WebSearchOptions struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	HTTPClient *http.Client
}

// WebSearch answers search queries via the Tavily REST API. It has no
// mutable state after construction and is safe for concurrent use.
type WebSearch struct {
	opts WebSearchOptions
}

// NewWebSearch constructs the search tool. The API key is required at call
// time, not at construction, so a tool built from empty config still
// registers and fails with a descriptive ToolError when invoked.
func NewWebSearch(optFns ...func(o *WebSearchOptions)) *WebSearch {
	// no client timeout: the engine has no timeout or retry policy
	// anywhere, and a hung search fails the turn via caller cancellation
	opts := WebSearchOptions{
		BaseURL:    "https://api.tavily.com",
		MaxResults: defaultMaxResults,
		HTTPClient: &http.Client{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &WebSearch{opts: opts}
}

// Name returns the unique tool name used in tool call declarations and routing.
func (t *WebSearch) Name() string { return WebSearchName }

// Description returns the short natural language description exposed to models.
func (t *WebSearch) Description() string {
	return "Search the web for current information. Use when the answer requires facts you do not know."
}

// Parameters returns the JSON schema describing expected arguments.
func (t *WebSearch) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query",
			},
		},
		"required": []string{"query"},
	}
}

// Call executes one search. Failures are wrapped as *ToolError for uniform
// downstream handling.
func (t *WebSearch) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, NewToolError(t.Name(), "missing required argument: query", "VALIDATION_ERROR")
	}
	if t.opts.APIKey == "" {
		return nil, NewToolError(t.Name(), "search api key not configured", "CONFIGURATION_ERROR")
	}

	body, err := json.Marshal(map[string]interface{}{
		"api_key":     t.opts.APIKey,
		"query":       query,
		"max_results": t.opts.MaxResults,
	})
	if err != nil {
		return nil, NewToolError(t.Name(), err.Error(), "EXECUTION_ERROR")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.opts.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, NewToolError(t.Name(), err.Error(), "EXECUTION_ERROR")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, NewToolError(t.Name(), err.Error(), "EXECUTION_ERROR")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, NewToolError(
			t.Name(),
			fmt.Sprintf("search api returned %d: %s", resp.StatusCode, string(data)),
			"EXECUTION_ERROR",
		)
	}

	var parsed struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, NewToolError(t.Name(), "failed to decode search response: "+err.Error(), "EXECUTION_ERROR")
	}

	results := parsed.Results
	if len(results) > t.opts.MaxResults {
		results = results[:t.opts.MaxResults]
	}

	return &SearchResponse{Query: query, Results: results}, nil
}
