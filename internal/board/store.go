package board

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/sparkboard/internal/board/storage"
	"github.com/Laisky/sparkboard/library/log"
)

// Store owns the post collection persisted under one backend key and
// notifies subscribers whenever it changes.
type Store struct {
	backend storage.Backend
	key     string
	relay   storage.Relay
	logger  logSDK.Logger

	mu     sync.Mutex
	subs   map[uint64]func([]Post)
	nextID uint64
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithPostsKey overrides the storage key of the collection
func WithPostsKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithRelay shares change notifications with other processes
func WithRelay(relay storage.Relay) StoreOption {
	return func(s *Store) {
		s.relay = relay
	}
}

// WithStoreLogger sets the logger
func WithStoreLogger(logger logSDK.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store over backend
func NewStore(backend storage.Backend, opts ...StoreOption) (*Store, error) {
	if backend == nil {
		return nil, errors.New("storage backend is required")
	}

	s := &Store{
		backend: backend,
		key:     DefaultPostsKey,
		logger:  log.Logger.Named("board_store"),
		subs:    make(map[uint64]func([]Post)),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Backend returns the underlying storage backend
func (s *Store) Backend() storage.Backend {
	return s.backend
}

// ReadAll returns every post, newest first.
//
// A missing or malformed collection reads as empty. Only backend
// transport failures are returned as errors.
func (s *Store) ReadAll(ctx context.Context) ([]Post, error) {
	blob, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []Post{}, nil
		}
		return nil, errors.Wrap(err, "load posts")
	}

	posts := s.decode(blob)
	sortPosts(posts)
	return posts, nil
}

// Count returns the number of stored posts
func (s *Store) Count(ctx context.Context) (int, error) {
	posts, err := s.ReadAll(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return len(posts), nil
}

// Append adds post to the collection with one write of the whole
// collection, then notifies subscribers.
// Failures are returned as a persistence SubmissionError.
func (s *Store) Append(ctx context.Context, post Post) error {
	var updated []Post
	err := storage.Update(ctx, s.backend, s.key, func(current string, exists bool) (string, error) {
		posts := []Post{}
		if exists {
			posts = s.decode(current)
		}
		posts = append(posts, post)

		payload, err := json.Marshal(posts)
		if err != nil {
			return "", errors.Wrap(err, "marshal posts")
		}

		updated = posts
		return string(payload), nil
	})
	if err != nil {
		return NewPersistenceError(errors.Wrap(err, "save posts"))
	}

	sortPosts(updated)
	s.broadcast(updated)

	if s.relay != nil {
		if err := s.relay.Publish(ctx); err != nil {
			s.logger.Warn("publish board change", zap.Error(err))
		}
	}

	return nil
}

// Subscribe registers fn to receive the sorted posts on every change.
// The returned function deregisters fn, calling it again is a no-op.
func (s *Store) Subscribe(fn func([]Post)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Run listens for changes made by other processes and notifies
// subscribers, blocking until ctx is done. Without a relay it just waits.
func (s *Store) Run(ctx context.Context) error {
	if s.relay == nil {
		<-ctx.Done()
		return nil
	}

	s.logger.Info("listening for board changes from other processes")
	err := s.relay.Listen(ctx, func() {
		posts, err := s.ReadAll(ctx)
		if err != nil {
			s.logger.Warn("reload posts after remote change", zap.Error(err))
			return
		}
		s.broadcast(posts)
	})
	return errors.Wrap(err, "listen board changes")
}

func (s *Store) broadcast(posts []Post) {
	s.mu.Lock()
	fns := make([]func([]Post), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		// every subscriber gets its own copy
		cp := make([]Post, len(posts))
		copy(cp, posts)
		fn(cp)
	}
}

func (s *Store) decode(blob string) []Post {
	var posts []Post
	if err := json.Unmarshal([]byte(blob), &posts); err != nil {
		s.logger.Warn("malformed posts collection, treat as empty",
			zap.String("key", s.key),
			zap.Error(err))
		return []Post{}
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts
}

// sortPosts orders posts newest first, keeping insertion order for ties.
func sortPosts(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt > posts[j].CreatedAt
	})
}
