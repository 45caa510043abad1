package storage

import (
	"context"
	"sync"

	"github.com/Laisky/errors/v2"
)

var (
	_ Backend       = (*Memory)(nil)
	_ AtomicUpdater = (*Memory)(nil)
)

// Memory is an in-process backend, used by tests and `--storage memory`.
type Memory struct {
	mu    sync.Mutex
	items map[string]string

	// failWrites makes every write fail with this error when set.
	failWrites error
}

// NewMemory returns an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

// Name implements Backend
func (m *Memory) Name() string { return "memory" }

// Get implements Backend
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items[key]
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "key %s", key)
	}
	return v, nil
}

// Set implements Backend
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	m.items[key] = value
	return nil
}

// Update implements AtomicUpdater
func (m *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.items[key]
	next, err := fn(current, exists)
	if err != nil {
		return errors.WithStack(err)
	}
	if m.failWrites != nil {
		return m.failWrites
	}

	m.items[key] = next
	return nil
}

// FailWrites makes subsequent writes fail with err; nil restores normal writes.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}
