package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRedactMCPBodyArguments verifies submitted image data is redacted in tool calls.
func TestRedactMCPBodyArguments(t *testing.T) {
	payload := map[string]any{
		"method": "tools/call",
		"params": map[string]any{
			"name": "board_submit_post",
			"arguments": map[string]any{
				"content":      "hello",
				"image_base64": "iVBORw0KGgo=",
				"image_type":   "image/png",
			},
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(redactMCPBody(string(data))), &parsed))

	args := parsed["params"].(map[string]any)["arguments"].(map[string]any)
	require.Equal(t, "hello", args["content"])
	require.Equal(t, "image/png", args["image_type"])
	require.Equal(t, "[redacted image, 12 bytes]", args["image_base64"])
}

// TestRedactMCPBodyDataURLs verifies data URLs anywhere in a response are redacted.
func TestRedactMCPBodyDataURLs(t *testing.T) {
	payload := map[string]any{
		"result": map[string]any{
			"posts": []any{
				map[string]any{"id": "a1", "imageUrl": "data:image/png;base64,AA=="},
				"data:image/webp;base64,AA==",
			},
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	redacted := redactMCPBody(string(data))
	require.NotContains(t, redacted, "base64,AA==")
	require.Contains(t, redacted, `"id":"a1"`)
}

// TestRedactMCPBodyInvalidJSON verifies non-JSON bodies pass through.
func TestRedactMCPBodyInvalidJSON(t *testing.T) {
	require.Equal(t, "not json", redactMCPBody("not json"))
	require.Empty(t, redactMCPBody(""))
}

func TestRedactHookPayload(t *testing.T) {
	got := redactHookPayload(map[string]any{"image_base64": "abcd"})
	require.JSONEq(t, `{"image_base64":"[redacted image, 4 bytes]"}`, got)
}
