package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tool exposes the capabilities required by the MCP server registration lifecycle.
type Tool interface {
	Definition() mcp.Tool
	Handle(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

var (
	_ Tool = (*BoardListPostsTool)(nil)
	_ Tool = (*BoardSubmitPostTool)(nil)
	_ Tool = (*BoardSummaryTool)(nil)
)
