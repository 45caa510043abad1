// Package storage holds the key-value backends the board persists into.
//
// The board keeps two keys: the serialized post collection and the
// rate-limit marker. Every backend stores plain strings under those keys.
package storage

import (
	"context"

	"github.com/Laisky/errors/v2"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage key not found")

// UpdateFunc maps the current value of a key to the value to write back.
// exists is false when the key is absent; returning an error aborts the write.
type UpdateFunc func(current string, exists bool) (string, error)

// Backend is a minimal string key-value store.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Get returns ErrNotFound (possibly wrapped) when key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// AtomicUpdater is implemented by backends that can run a read-modify-write
// of one key without losing concurrent writers.
type AtomicUpdater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Update runs fn against key, atomically when backend supports it and as a
// plain get-then-set otherwise.
func Update(ctx context.Context, backend Backend, key string, fn UpdateFunc) error {
	if updater, ok := backend.(AtomicUpdater); ok {
		return updater.Update(ctx, key, fn)
	}

	current, err := backend.Get(ctx, key)
	exists := true
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return errors.Wrapf(err, "load %s", key)
		}
		exists = false
	}

	next, err := fn(current, exists)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.Wrapf(backend.Set(ctx, key, next), "save %s", key)
}
