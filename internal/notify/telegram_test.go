package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
	tb "gopkg.in/telebot.v3"

	"github.com/Laisky/sparkboard/internal/board"
	"github.com/Laisky/sparkboard/internal/board/storage"
)

type fakeSender struct {
	mu   sync.Mutex
	to   []tb.Recipient
	sent []string
	err  error
}

func (f *fakeSender) Send(to tb.Recipient, what any, _ ...any) (*tb.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.sent = append(f.sent, what.(string))
	return &tb.Message{}, f.err
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestNewTelegramValidation(t *testing.T) {
	_, err := NewTelegram(nil, 1, nil)
	require.Error(t, err)
	_, err = NewTelegram(&fakeSender{}, 0, nil)
	require.Error(t, err)
}

func TestFormatPost(t *testing.T) {
	require.Equal(t, "alice: hi", FormatPost(board.Post{Nickname: "alice", Content: "hi"}))
	require.Equal(t, "bob: pic\n[image attached]",
		FormatPost(board.Post{Nickname: "bob", Content: "pic", ImageURL: "data:image/png;base64,AA=="}))

	long := FormatPost(board.Post{Nickname: "c", Content: strings.Repeat("あ", maxPreviewRunes+5)})
	require.True(t, strings.HasSuffix(long, "…"))
	require.Len(t, []rune(long), len("c: ")+maxPreviewRunes+1)
}

func TestNotify(t *testing.T) {
	sender := &fakeSender{}
	n, err := NewTelegram(sender, 42, nil)
	require.NoError(t, err)

	require.NoError(t, n.Notify(board.Post{Nickname: "a", Content: "b"}))
	require.Equal(t, "42", sender.to[0].Recipient())

	sender.err = errors.New("chat not found")
	require.ErrorContains(t, n.Notify(board.Post{Nickname: "a", Content: "b"}), "chat not found")
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := board.NewStore(storage.NewMemory())
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, board.Post{ID: "old", Nickname: "a", Content: "before", CreatedAt: 1}))

	sender := &fakeSender{}
	n, err := NewTelegram(sender, 42, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- n.Watch(ctx, store) }()

	// wait until Watch has subscribed and seeded the existing posts
	warmups := 0
	require.Eventually(t, func() bool {
		warmups++
		_ = store.Append(ctx, board.Post{ID: fmt.Sprintf("warmup%d", warmups), Nickname: "p", Content: "warmup", CreatedAt: 2})
		return len(sender.messages()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, store.Append(ctx, board.Post{ID: "new", Nickname: "b", Content: "after", CreatedAt: 3}))
	require.Eventually(t, func() bool {
		msgs := sender.messages()
		return len(msgs) > 0 && msgs[len(msgs)-1] == "b: after"
	}, 2*time.Second, 20*time.Millisecond)

	for _, msg := range sender.messages() {
		require.NotEqual(t, "a: before", msg)
	}

	cancel()
	require.NoError(t, <-done)
}

// TestWatchAnnouncesPostsAppendedWhileSubscribing verifies a post appended
// after the initial read but before Subscribe is still sent.
func TestWatchAnnouncesPostsAppendedWhileSubscribing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := board.NewStore(storage.NewMemory())
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, board.Post{ID: "old", Nickname: "a", Content: "before", CreatedAt: 1}))

	sender := &fakeSender{}
	n, err := NewTelegram(sender, 42, nil)
	require.NoError(t, err)
	gapErr := make(chan error, 1)
	n.afterBaseline = func() {
		gapErr <- store.Append(ctx, board.Post{ID: "gap", Nickname: "g", Content: "in between", CreatedAt: 2})
	}

	done := make(chan error, 1)
	go func() { done <- n.Watch(ctx, store) }()
	require.NoError(t, <-gapErr)

	require.Eventually(t, func() bool {
		return len(sender.messages()) == 1
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, []string{"g: in between"}, sender.messages())

	cancel()
	require.NoError(t, <-done)
}
