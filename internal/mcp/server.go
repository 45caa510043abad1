// Package mcp exposes the board as Model Context Protocol tools over
// streamable HTTP.
package mcp

import (
	"net/http"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/Laisky/sparkboard/internal/mcp/tools"
	"github.com/Laisky/sparkboard/library/log"
)

const (
	serverName    = "sparkboard"
	serverVersion = "1.0.0"
)

// Dependencies are the board services backing the tools.
type Dependencies struct {
	Posts     tools.PostReader
	Submitter tools.PostSubmitter
	Summary   tools.BoardSummarizer
	// Tools selects the registered tools; nil enables all of them.
	Tools *ToolsSettings
}

// Server wraps the MCP server state for the HTTP transport.
type Server struct {
	handler http.Handler
	logger  logSDK.Logger
}

// NewServer constructs the MCP server and registers the board tools.
func NewServer(deps Dependencies, logger logSDK.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Logger.Named("mcp")
	}

	listTool, err := tools.NewBoardListPostsTool(deps.Posts, logger.Named("board_list_posts"))
	if err != nil {
		return nil, errors.Wrap(err, "new board_list_posts tool")
	}
	submitTool, err := tools.NewBoardSubmitPostTool(deps.Submitter, logger.Named("board_submit_post"))
	if err != nil {
		return nil, errors.Wrap(err, "new board_submit_post tool")
	}
	summaryTool, err := tools.NewBoardSummaryTool(deps.Summary)
	if err != nil {
		return nil, errors.Wrap(err, "new board_summary tool")
	}

	mcpServer := srv.NewMCPServer(
		serverName,
		serverVersion,
		srv.WithToolCapabilities(true),
		srv.WithInstructions("Use board_list_posts to read the bulletin board, "+
			"board_submit_post to publish a short message, and board_summary for a synopsis of recent posts."),
		srv.WithRecovery(),
		srv.WithHooks(newMCPHooks(logger.Named("mcp_hooks"))),
	)

	enabled := DefaultToolsSettings()
	if deps.Tools != nil {
		enabled = *deps.Tools
	}
	if enabled.ListPostsEnabled {
		mcpServer.AddTool(listTool.Definition(), listTool.Handle)
	}
	if enabled.SubmitPostEnabled {
		mcpServer.AddTool(submitTool.Definition(), submitTool.Handle)
	}
	if enabled.SummaryEnabled {
		mcpServer.AddTool(summaryTool.Definition(), summaryTool.Handle)
	}

	return &Server{
		handler: withHTTPLogging(srv.NewStreamableHTTPServer(mcpServer), logger.Named("mcp_http")),
		logger:  logger,
	}, nil
}

// Handler returns the HTTP handler that should be mounted to serve MCP traffic.
func (s *Server) Handler() http.Handler {
	return s.handler
}
