package tools

import (
	"context"

	"github.com/Laisky/errors/v2"
	mcp "github.com/mark3labs/mcp-go/mcp"
)

// BoardSummaryTool implements the board_summary MCP tool.
type BoardSummaryTool struct {
	summarizer BoardSummarizer
}

// NewBoardSummaryTool constructs the tool
func NewBoardSummaryTool(summarizer BoardSummarizer) (*BoardSummaryTool, error) {
	if summarizer == nil {
		return nil, errors.New("summarizer is required")
	}

	return &BoardSummaryTool{summarizer: summarizer}, nil
}

// Definition returns the MCP metadata describing the tool.
func (t *BoardSummaryTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"board_summary",
		mcp.WithDescription("Summarize the ten newest posts of the bulletin board in two or three sentences."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// Handle executes the board_summary tool.
func (t *BoardSummaryTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(t.summarizer.Summarize(ctx)), nil
}
