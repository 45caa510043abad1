package storage

import (
	"context"

	"github.com/Laisky/errors/v2"

	rlib "github.com/Laisky/sparkboard/library/db/redis"
)

var (
	_ Backend       = (*Redis)(nil)
	_ AtomicUpdater = (*Redis)(nil)
)

const redisUpdateRetries = 10

// Redis stores keys as plain redis strings under a prefix.
type Redis struct {
	db     *rlib.DB
	prefix string
}

// NewRedis wraps a redis connection, keys are stored as prefix+key
func NewRedis(db *rlib.DB, prefix string) *Redis {
	if prefix == "" {
		prefix = rlib.KeyPrefixBoard
	}

	return &Redis{db: db, prefix: prefix}
}

// Name implements Backend
func (r *Redis) Name() string { return "redis" }

// Get implements Backend
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.db.GetItem(ctx, r.prefix+key)
	if err != nil {
		if errors.Is(err, rlib.ErrNotFound) {
			return "", errors.Wrapf(ErrNotFound, "key %s", key)
		}
		return "", errors.WithStack(err)
	}

	return val, nil
}

// Set implements Backend
func (r *Redis) Set(ctx context.Context, key, value string) error {
	return errors.WithStack(r.db.SetItem(ctx, r.prefix+key, value))
}

// Update implements AtomicUpdater with WATCH/MULTI
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return errors.WithStack(r.db.UpdateItem(ctx, r.prefix+key, redisUpdateRetries, fn))
}
