package board

import (
	"strconv"
	"strings"
	"time"

	gconfig "github.com/Laisky/go-config/v2"
)

const (
	// DefaultPostsKey is the storage key of the post collection.
	DefaultPostsKey = "sparkboard_posts_v1"
	// DefaultRateLimitKey is the storage key of the rate-limit marker.
	DefaultRateLimitKey = "last_post_timestamp"
	// DefaultCooldown is the minimum delay between two successful posts.
	DefaultCooldown = 30 * time.Second
	// DefaultSummaryPosts is how many recent posts the summary covers.
	DefaultSummaryPosts = 10
)

// Settings captures runtime configuration of the board.
// Zero fields take their defaults; use DisableRateLimit to turn the
// cooldown off.
type Settings struct {
	PostsKey      string
	RateLimitKey  string
	Cooldown      time.Duration
	MaxImageBytes int64
	SummaryPosts  int
	// DisableRateLimit lets any number of posts through, Cooldown is ignored.
	DisableRateLimit bool
}

// DefaultSettings returns the built-in settings
func DefaultSettings() Settings {
	return Settings{
		PostsKey:      DefaultPostsKey,
		RateLimitKey:  DefaultRateLimitKey,
		Cooldown:      DefaultCooldown,
		MaxImageBytes: MaxImageBytes,
		SummaryPosts:  DefaultSummaryPosts,
	}
}

// LoadSettingsFromConfig reads settings.board.* and applies defaults.
func LoadSettingsFromConfig() Settings {
	cooldownMs := int64FromConfig("settings.board.cooldown_ms", DefaultCooldown.Milliseconds())
	settings := Settings{
		PostsKey:      strings.TrimSpace(gconfig.S.GetString("settings.board.posts_key")),
		RateLimitKey:  strings.TrimSpace(gconfig.S.GetString("settings.board.rate_limit_key")),
		Cooldown:      time.Duration(cooldownMs) * time.Millisecond,
		MaxImageBytes: int64FromConfig("settings.board.max_image_bytes", MaxImageBytes),
		SummaryPosts:  int(int64FromConfig("settings.board.summary_posts", DefaultSummaryPosts)),
		// cooldown_ms: 0 is the documented way to turn rate limiting off
		DisableRateLimit: cooldownMs == 0,
	}

	return settings.withDefaults()
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.PostsKey == "" {
		s.PostsKey = def.PostsKey
	}
	if s.RateLimitKey == "" {
		s.RateLimitKey = def.RateLimitKey
	}
	switch {
	case s.DisableRateLimit:
		s.Cooldown = 0
	case s.Cooldown <= 0:
		s.Cooldown = def.Cooldown
	}
	if s.MaxImageBytes <= 0 {
		s.MaxImageBytes = def.MaxImageBytes
	}
	if s.SummaryPosts <= 0 {
		s.SummaryPosts = def.SummaryPosts
	}
	return s
}

func int64FromConfig(key string, def int64) int64 {
	value := gconfig.S.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return def
		}
		parsed, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}
