// Package notify forwards new board posts to chat services.
package notify

import (
	"context"
	"fmt"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	tb "gopkg.in/telebot.v3"

	"github.com/Laisky/sparkboard/internal/board"
	"github.com/Laisky/sparkboard/library/log"
)

const (
	queueSize = 64
	// maxPreviewRunes truncates long posts in notifications.
	maxPreviewRunes = 300
)

// Sender is the subset of *tb.Bot used to deliver messages.
type Sender interface {
	Send(to tb.Recipient, what any, opts ...any) (*tb.Message, error)
}

// NewTelegramBot creates a send-only bot, api may be empty for the official endpoint
func NewTelegramBot(token, api string) (*tb.Bot, error) {
	bot, err := tb.NewBot(tb.Settings{
		Token: token,
		URL:   api,
		Poller: &tb.LongPoller{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "new telegram bot")
	}

	return bot, nil
}

// Telegram posts every new board post to one chat.
type Telegram struct {
	sender Sender
	chat   *tb.Chat
	logger logSDK.Logger

	// afterBaseline runs between Watch's first read and its Subscribe, tests only
	afterBaseline func()
}

// NewTelegram creates a notifier sending to chatID
func NewTelegram(sender Sender, chatID int64, logger logSDK.Logger) (*Telegram, error) {
	if sender == nil {
		return nil, errors.New("telegram sender is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	if logger == nil {
		logger = log.Logger.Named("telegram_notifier")
	}

	return &Telegram{
		sender: sender,
		chat:   &tb.Chat{ID: chatID},
		logger: logger,
	}, nil
}

// Watch forwards posts appended to store after the call, blocking until
// ctx is done. Posts are queued so a slow chat API never stalls a submission;
// when the queue is full, notifications are dropped.
func (t *Telegram) Watch(ctx context.Context, store *board.Store) error {
	existing, err := store.ReadAll(ctx)
	if err != nil {
		return errors.Wrap(err, "load existing posts")
	}

	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.ID] = true
	}
	if t.afterBaseline != nil {
		t.afterBaseline()
	}

	changes := make(chan []board.Post, queueSize)
	unsubscribe := store.Subscribe(func(posts []board.Post) {
		select {
		case changes <- posts:
		default:
			t.logger.Warn("telegram queue full, drop board change")
		}
	})
	defer unsubscribe()

	// posts appended between the baseline and Subscribe raised no change
	if current, err := store.ReadAll(ctx); err != nil {
		t.logger.Warn("reload posts after subscribe", zap.Error(err))
	} else {
		t.announce(current, seen)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case posts := <-changes:
			t.announce(posts, seen)
		}
	}
}

// announce sends every post not in seen, oldest first so the chat reads
// chronologically.
func (t *Telegram) announce(posts []board.Post, seen map[string]bool) {
	for i := len(posts) - 1; i >= 0; i-- {
		p := posts[i]
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if err := t.Notify(p); err != nil {
			t.logger.Warn("notify telegram", zap.String("post", p.ID), zap.Error(err))
		}
	}
}

// Notify sends one post
func (t *Telegram) Notify(post board.Post) error {
	if _, err := t.sender.Send(t.chat, FormatPost(post), &tb.SendOptions{
		DisableWebPagePreview: true,
	}); err != nil {
		return errors.Wrap(err, "send telegram message")
	}

	return nil
}

// FormatPost renders a post as plain text
func FormatPost(post board.Post) string {
	content := []rune(post.Content)
	text := string(content)
	if len(content) > maxPreviewRunes {
		text = string(content[:maxPreviewRunes]) + "…"
	}

	msg := fmt.Sprintf("%s: %s", post.Nickname, text)
	if post.ImageURL != "" {
		msg += "\n[image attached]"
	}
	return msg
}
