package tools

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	mcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/sparkboard/internal/board"
)

// BoardSubmitPostTool implements the board_submit_post MCP tool.
type BoardSubmitPostTool struct {
	submitter PostSubmitter
	logger    logSDK.Logger
}

// NewBoardSubmitPostTool constructs the tool
func NewBoardSubmitPostTool(submitter PostSubmitter, logger logSDK.Logger) (*BoardSubmitPostTool, error) {
	if submitter == nil {
		return nil, errors.New("post submitter is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &BoardSubmitPostTool{submitter: submitter, logger: logger}, nil
}

// Definition returns the MCP metadata describing the tool.
func (t *BoardSubmitPostTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"board_submit_post",
		mcp.WithDescription("Publish a post on the bulletin board. Posts are moderated and rate limited; a rate-limited call reports the seconds to wait."),
		mcp.WithString(
			"content",
			mcp.Required(),
			mcp.Description("Post text, 1-1000 characters."),
		),
		mcp.WithString("nickname", mcp.Description("Display name, up to 20 characters; defaults to anonymous.")),
		mcp.WithString("image_base64", mcp.Description("Optional image, base64 encoded JPEG, PNG or WEBP up to 5 MiB.")),
		mcp.WithString("image_type", mcp.Description("Media type of image_base64, e.g. image/png.")),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Handle executes the board_submit_post tool.
func (t *BoardSubmitPostTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	submitReq := board.SubmitRequest{
		Nickname: readStringArg(req, "nickname"),
		Content:  content,
	}

	if encoded := strings.TrimSpace(readStringArg(req, "image_base64")); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return boardToolErrorResult(board.KindValidation, "image_base64 is not valid base64", 0), nil
		}
		submitReq.Image = board.NewImageFile("image", readStringArg(req, "image_type"), data)
	}

	post, err := t.submitter.Submit(ctx, submitReq)
	if err != nil {
		if typed, ok := board.AsSubmissionError(err); ok {
			return boardToolErrorResult(typed.Kind, typed.Message, typed.RemainingSeconds), nil
		}
		t.logger.Error("board_submit_post failed", zap.Error(err))
		return mcp.NewToolResultError("failed to submit post"), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"post": newPostView(*post)})
	if err != nil {
		t.logger.Error("encode post", zap.Error(err))
		return mcp.NewToolResultError("failed to encode post"), nil
	}
	return result, nil
}
