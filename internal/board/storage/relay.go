package storage

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/google/uuid"

	rlib "github.com/Laisky/sparkboard/library/db/redis"
)

// Relay carries "the collection changed" signals between processes that
// share one backend. Delivery is best effort.
type Relay interface {
	// Publish announces a local change.
	Publish(ctx context.Context) error
	// Listen calls onChange for every change announced by another process,
	// blocking until ctx is done.
	Listen(ctx context.Context, onChange func()) error
}

var _ Relay = (*RedisRelay)(nil)

// RedisRelay is a Relay over redis pub/sub.
type RedisRelay struct {
	db      *rlib.DB
	channel string
	origin  string
}

// NewRedisRelay creates a relay on channel, empty channel uses the default
func NewRedisRelay(db *rlib.DB, channel string) *RedisRelay {
	if channel == "" {
		channel = rlib.ChannelBoardChanges
	}

	return &RedisRelay{
		db:      db,
		channel: channel,
		origin:  uuid.NewString(),
	}
}

// Publish implements Relay
func (r *RedisRelay) Publish(ctx context.Context) error {
	return errors.WithStack(r.db.Publish(ctx, r.channel, r.origin))
}

// Listen implements Relay, messages published by this relay are skipped
func (r *RedisRelay) Listen(ctx context.Context, onChange func()) error {
	return r.db.Subscribe(ctx, r.channel, func(payload string) {
		if payload == r.origin {
			return
		}
		onChange()
	})
}
