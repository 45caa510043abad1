package board

import (
	"context"
	"strconv"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"

	"github.com/Laisky/sparkboard/internal/board/storage"
)

// RateLimiter enforces a cooldown between successful posts through a
// timestamp marker stored next to the posts.
type RateLimiter struct {
	backend  storage.Backend
	key      string
	cooldown time.Duration
}

// NewRateLimiter creates a limiter storing its marker under key
func NewRateLimiter(backend storage.Backend, key string, cooldown time.Duration) *RateLimiter {
	if key == "" {
		key = DefaultRateLimitKey
	}
	return &RateLimiter{backend: backend, key: key, cooldown: cooldown}
}

// Remaining returns how many whole seconds must pass before the next post
// is allowed at now, 0 when posting is allowed.
// A missing or unparsable marker never limits.
func (r *RateLimiter) Remaining(ctx context.Context, now time.Time) (int, error) {
	raw, err := r.backend.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "load rate-limit marker")
	}

	last, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, nil
	}

	return remainingSeconds(now.UnixMilli()-last, r.cooldown.Milliseconds()), nil
}

// Mark records now as the time of the last successful post
func (r *RateLimiter) Mark(ctx context.Context, now time.Time) error {
	err := r.backend.Set(ctx, r.key, strconv.FormatInt(now.UnixMilli(), 10))
	return errors.Wrap(err, "save rate-limit marker")
}

// remainingSeconds is ceil((cooldown-elapsed)/1000) while elapsed < cooldown.
func remainingSeconds(elapsedMs, cooldownMs int64) int {
	if elapsedMs >= cooldownMs {
		return 0
	}
	left := cooldownMs - elapsedMs
	return int((left + 999) / 1000)
}
