package mcp

import (
	gconfig "github.com/Laisky/go-config/v2"
)

// ToolsSettings enables or disables individual board tools.
type ToolsSettings struct {
	ListPostsEnabled  bool
	SubmitPostEnabled bool
	SummaryEnabled    bool
}

// DefaultToolsSettings enables every tool.
func DefaultToolsSettings() ToolsSettings {
	return ToolsSettings{
		ListPostsEnabled:  true,
		SubmitPostEnabled: true,
		SummaryEnabled:    true,
	}
}

// LoadToolsSettingsFromConfig reads settings.mcp.tools.<name>.enabled.
// Tools stay enabled unless explicitly disabled.
func LoadToolsSettingsFromConfig() ToolsSettings {
	return ToolsSettings{
		ListPostsEnabled:  boolFromConfig("settings.mcp.tools.board_list_posts.enabled", true),
		SubmitPostEnabled: boolFromConfig("settings.mcp.tools.board_submit_post.enabled", true),
		SummaryEnabled:    boolFromConfig("settings.mcp.tools.board_summary.enabled", true),
	}
}

// boolFromConfig retrieves a boolean configuration value with a default fallback.
func boolFromConfig(key string, def bool) bool {
	value := gconfig.S.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		switch v {
		case "true", "True", "TRUE", "1", "yes", "Yes", "YES":
			return true
		case "false", "False", "FALSE", "0", "no", "No", "NO":
			return false
		default:
			return def
		}
	default:
		return def
	}
}
