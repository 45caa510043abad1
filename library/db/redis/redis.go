// Package redis wraps go-redis for the board storage and change relay.
package redis

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	gredis "github.com/Laisky/go-redis/v2"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by GetItem when the key does not exist.
var ErrNotFound = errors.New("redis key not found")

// DB is a wrapper for go-redis
type DB struct {
	rdb *redis.Client
	db  *gredis.Utils
}

// NewDB creates a new DB instance
func NewDB(opt *redis.Options) *DB {
	rdb := redis.NewClient(opt)
	rutils := gredis.NewRedisUtils(rdb)

	return &DB{
		rdb: rdb,
		db:  rutils,
	}
}

// Client returns the raw go-redis client
func (db *DB) Client() *redis.Client {
	return db.rdb
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return errors.Wrap(db.rdb.Ping(ctx).Err(), "ping redis")
}

// Close closes the underlying client
func (db *DB) Close() error {
	return db.rdb.Close()
}

// GetItem loads a string value, ErrNotFound when missing
func (db *DB) GetItem(ctx context.Context, key string) (string, error) {
	val, err := db.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", errors.Wrapf(ErrNotFound, "key %s", key)
		}
		return "", errors.Wrapf(err, "get %s", key)
	}

	return val, nil
}

// SetItem stores a string value without expiration
func (db *DB) SetItem(ctx context.Context, key, val string) error {
	if err := db.db.SetItem(ctx, key, val, 0); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}

	return nil
}

// UpdateItem runs an optimistic read-modify-write on key with WATCH/MULTI,
// retrying up to maxRetries times when another writer wins the race.
func (db *DB) UpdateItem(ctx context.Context, key string, maxRetries int,
	fn func(current string, exists bool) (string, error),
) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		exists := true
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return errors.Wrapf(err, "get %s", key)
		}

		next, err := fn(current, exists)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	if maxRetries <= 0 {
		maxRetries = 1
	}
	for i := 0; i < maxRetries; i++ {
		err := db.rdb.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return errors.Wrapf(err, "update %s", key)
	}

	return errors.Errorf("update %s: too many concurrent writers", key)
}

// Publish sends payload to channel
func (db *DB) Publish(ctx context.Context, channel, payload string) error {
	return errors.Wrapf(db.rdb.Publish(ctx, channel, payload).Err(), "publish to %s", channel)
}

// Subscribe delivers every message on channel to handler until ctx is done.
func (db *DB) Subscribe(ctx context.Context, channel string, handler func(payload string)) error {
	sub := db.rdb.Subscribe(ctx, channel)
	defer sub.Close() // nolint: errcheck

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrapf(err, "subscribe %s", channel)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.Errorf("subscription %s closed", channel)
			}
			handler(msg.Payload)
		}
	}
}

// DialTimeout is the default dial timeout for board redis connections
const DialTimeout = 5 * time.Second
