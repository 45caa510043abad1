package tools

import (
	"context"
	"time"

	mcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/sparkboard/internal/board"
)

// PostReader lists the posts of the board, newest first.
type PostReader interface {
	ReadAll(ctx context.Context) ([]board.Post, error)
}

// PostSubmitter runs the submission pipeline.
type PostSubmitter interface {
	Submit(ctx context.Context, req board.SubmitRequest) (*board.Post, error)
}

// BoardSummarizer returns a synopsis of the newest posts, never failing.
type BoardSummarizer interface {
	Summarize(ctx context.Context) string
}

// postView is a post as returned by tools, without the image payload.
type postView struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	Content   string    `json:"content"`
	HasImage  bool      `json:"has_image"`
	CreatedAt time.Time `json:"created_at"`
}

func newPostView(p board.Post) postView {
	return postView{
		ID:        p.ID,
		Nickname:  p.Nickname,
		Content:   p.Content,
		HasImage:  p.ImageURL != "",
		CreatedAt: p.CreatedTime(),
	}
}

// boardToolErrorResult builds a structured MCP error response for board tools.
func boardToolErrorResult(kind board.ErrorKind, message string, remainingSeconds int) *mcp.CallToolResult {
	payload := map[string]any{
		"kind":    string(kind),
		"message": message,
	}
	if remainingSeconds > 0 {
		payload["remaining_seconds"] = remainingSeconds
	}
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return mcp.NewToolResultError(message)
	}
	result.IsError = true
	return result
}

// readStringArg extracts an optional string argument from the request.
func readStringArg(req mcp.CallToolRequest, key string) string {
	if req.Params.Arguments == nil {
		return ""
	}
	if raw, ok := req.Params.Arguments.(map[string]any); ok {
		if value, ok := raw[key].(string); ok {
			return value
		}
	}
	return ""
}

// readIntArgWithDefault extracts an optional int argument with a default fallback.
func readIntArgWithDefault(req mcp.CallToolRequest, key string, def int) int {
	if req.Params.Arguments == nil {
		return def
	}
	if raw, ok := req.Params.Arguments.(map[string]any); ok {
		if _, exists := raw[key]; !exists {
			return def
		}
		switch value := raw[key].(type) {
		case int:
			return value
		case int64:
			return int(value)
		case float64:
			return int(value)
		}
	}
	return def
}
