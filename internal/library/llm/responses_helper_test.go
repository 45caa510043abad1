package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestResponsesHelperCreateText verifies helper parses output_text and sends expected request shape.
func TestResponsesHelperCreateText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/responses", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "gpt-4o-mini", payload["model"])
		require.Equal(t, "hello", payload["input"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output_text":"ok"}`))
	}))
	defer server.Close()

	helper := NewResponsesHelper(server.URL, 2*time.Second, nil)
	text, err := helper.CreateText(context.Background(), "sk-test", ResponseRequest{
		Model: "gpt-4o-mini",
		Input: "hello",
	})
	require.NoError(t, err)
	require.Equal(t, "ok", text)
}

// TestResponsesHelperJSONOutput verifies the json_object format is requested.
func TestResponsesHelperJSONOutput(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, map[string]any{
			"format": map[string]any{"type": "json_object"},
		}, payload["text"])
		require.Equal(t, "check this", payload["instructions"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text","text":"{\"safe\":true}"}]}]}`))
	}))
	defer server.Close()

	helper := NewResponsesHelper(server.URL+"/", time.Second, nil)
	text, err := helper.CreateText(context.Background(), "sk-test", ResponseRequest{
		Model:        "gpt-4o-mini",
		Instructions: "check this",
		Input:        "hello",
		JSONOutput:   true,
	})
	require.NoError(t, err)
	require.Equal(t, `{"safe":true}`, text)
}

// TestResponsesHelperErrors verifies argument checks and non-2xx handling.
func TestResponsesHelperErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	helper := NewResponsesHelper(server.URL, time.Second, nil)
	ctx := context.Background()

	_, err := helper.CreateText(ctx, "", ResponseRequest{Model: "m", Input: "x"})
	require.ErrorContains(t, err, "missing api key")
	_, err = helper.CreateText(ctx, "sk", ResponseRequest{Input: "x"})
	require.ErrorContains(t, err, "missing model")
	_, err = helper.CreateText(ctx, "sk", ResponseRequest{Model: "m", Input: " "})
	require.ErrorContains(t, err, "missing input")

	_, err = helper.CreateText(ctx, "sk", ResponseRequest{Model: "m", Input: "x"})
	require.ErrorContains(t, err, "status 429")
	require.ErrorContains(t, err, "slow down")

	var nilHelper *ResponsesHelper
	_, err = nilHelper.CreateText(ctx, "sk", ResponseRequest{Model: "m", Input: "x"})
	require.Error(t, err)
}

// TestResponsesCreateResponseAggregatedText verifies fallback aggregation from output content.
func TestResponsesCreateResponseAggregatedText(t *testing.T) {
	t.Parallel()

	resp := responsesCreateResponse{
		Output: []responsesOutputItem{
			{
				Type: "message",
				Content: []responsesOutputContent{
					{Type: "output_text", Text: "line1"},
					{Type: "text", Text: "line2"},
				},
			},
		},
	}

	require.Equal(t, "line1\nline2", resp.AggregatedText())
}
