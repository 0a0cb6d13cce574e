package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSearch_Metadata(t *testing.T) {
	ws := NewWebSearch()
	assert.Equal(t, WebSearchName, ws.Name())
	assert.NotEmpty(t, ws.Description())

	params := ws.Parameters()
	assert.Equal(t, "object", params["type"])
}

func TestWebSearch_Defaults(t *testing.T) {
	ws := NewWebSearch()
	assert.Equal(t, "https://api.tavily.com", ws.opts.BaseURL)
	assert.Equal(t, defaultMaxResults, ws.opts.MaxResults)
	require.NotNil(t, ws.opts.HTTPClient)
	assert.Zero(t, ws.opts.HTTPClient.Timeout, "searches run until the turn is cancelled")
}

func TestWebSearch_MissingQuery(t *testing.T) {
	ws := NewWebSearch(func(o *WebSearchOptions) { o.APIKey = "key" })
	_, err := ws.Call(context.Background(), map[string]interface{}{})

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "VALIDATION_ERROR", te.Code)
}

func TestWebSearch_MissingAPIKey(t *testing.T) {
	ws := NewWebSearch()
	_, err := ws.Call(context.Background(), map[string]interface{}{"query": "x"})

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "CONFIGURATION_ERROR", te.Code)
}

func TestWebSearch_Call(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{
				{"title": "A", "url": "https://a.example", "content": "aaa"},
				{"title": "B", "url": "https://b.example", "content": "bbb"},
			},
		})
	}))
	defer srv.Close()

	ws := NewWebSearch(func(o *WebSearchOptions) {
		o.APIKey = "key"
		o.BaseURL = srv.URL
	})

	out, err := ws.Call(context.Background(), map[string]interface{}{"query": "capital of France"})
	require.NoError(t, err)

	res, ok := out.(*SearchResponse)
	require.True(t, ok)
	assert.Equal(t, "capital of France", res.Query)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "https://a.example", res.Results[0].URL)

	assert.Equal(t, "capital of France", gotBody["query"])
	assert.EqualValues(t, 3, gotBody["max_results"])
}

func TestWebSearch_TruncatesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{
				{"url": "1"}, {"url": "2"}, {"url": "3"},
			},
		})
	}))
	defer srv.Close()

	ws := NewWebSearch(func(o *WebSearchOptions) {
		o.APIKey = "key"
		o.BaseURL = srv.URL
		o.MaxResults = 2
	})

	out, err := ws.Call(context.Background(), map[string]interface{}{"query": "x"})
	require.NoError(t, err)
	assert.Len(t, out.(*SearchResponse).Results, 2)
}

func TestWebSearch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	ws := NewWebSearch(func(o *WebSearchOptions) {
		o.APIKey = "key"
		o.BaseURL = srv.URL
	})

	_, err := ws.Call(context.Background(), map[string]interface{}{"query": "x"})
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "EXECUTION_ERROR", te.Code)
}
