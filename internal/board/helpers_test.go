package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/sparkboard/internal/board/storage"
)

type fakeModerator struct {
	mu      sync.Mutex
	verdict Verdict
	err     error
	calls   []string
}

func (m *fakeModerator) Check(_ context.Context, content string) (Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, content)
	return m.verdict, m.err
}

type fakeSummarizer struct {
	text  string
	err   error
	calls [][]Excerpt
}

func (s *fakeSummarizer) Summarize(_ context.Context, posts []Excerpt) (string, error) {
	s.calls = append(s.calls, posts)
	return s.text, s.err
}

// manualClock is a Clock advanced by tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.UnixMilli(1_700_000_000_000).UTC()}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	backend   *storage.Memory
	store     *Store
	pipeline  *Pipeline
	moderator *fakeModerator
	clock     *manualClock
}

func newFixture(t *testing.T, opts ...PipelineOption) *fixture {
	t.Helper()

	f := &fixture{
		backend:   storage.NewMemory(),
		moderator: &fakeModerator{verdict: Verdict{Safe: true}},
		clock:     newManualClock(),
	}

	var err error
	f.store, err = NewStore(f.backend)
	require.NoError(t, err)

	opts = append([]PipelineOption{WithClock(f.clock.Now)}, opts...)
	f.pipeline, err = NewPipeline(f.store, f.moderator, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	return n
}

func requireKind(t *testing.T, err error, kind ErrorKind) *SubmissionError {
	t.Helper()
	require.Error(t, err)
	typed, ok := AsSubmissionError(err)
	require.True(t, ok, "not a submission error: %v", err)
	require.Equal(t, kind, typed.Kind, "got %v", err)
	return typed
}

var errBoom = errors.New("boom")
