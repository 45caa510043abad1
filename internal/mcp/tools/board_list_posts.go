package tools

import (
	"context"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"
)

const (
	listPostsDefaultLimit = 20
	listPostsMaxLimit     = 100
)

// BoardListPostsTool implements the board_list_posts MCP tool.
type BoardListPostsTool struct {
	reader PostReader
	logger logSDK.Logger
}

// NewBoardListPostsTool constructs the tool
func NewBoardListPostsTool(reader PostReader, logger logSDK.Logger) (*BoardListPostsTool, error) {
	if reader == nil {
		return nil, errors.New("post reader is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &BoardListPostsTool{reader: reader, logger: logger}, nil
}

// Definition returns the MCP metadata describing the tool.
func (t *BoardListPostsTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"board_list_posts",
		mcp.WithDescription("List the newest posts of the bulletin board, newest first. Image payloads are omitted."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of posts to return, 1-100, default 20.")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Handle executes the board_list_posts tool.
func (t *BoardListPostsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := readIntArgWithDefault(req, "limit", listPostsDefaultLimit)
	if limit <= 0 || limit > listPostsMaxLimit {
		return mcp.NewToolResultError("limit must be within [1~100]"), nil
	}

	posts, err := t.reader.ReadAll(ctx)
	if err != nil {
		t.logger.Error("board_list_posts failed", zap.Error(err))
		return mcp.NewToolResultError("failed to load posts"), nil
	}

	total := len(posts)
	if len(posts) > limit {
		posts = posts[:limit]
	}
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, newPostView(p))
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"posts": views,
		"count": total,
	})
	if err != nil {
		t.logger.Error("encode posts", zap.Error(err))
		return mcp.NewToolResultError("failed to encode posts"), nil
	}
	return result, nil
}
