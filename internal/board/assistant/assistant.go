// Package assistant talks to a hosted model to moderate and summarize
// board posts.
package assistant

import (
	"context"
	"encoding/json"
	"strings"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/sparkboard/internal/board"
	"github.com/Laisky/sparkboard/internal/library/llm"
	"github.com/Laisky/sparkboard/library/log"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	moderationInstructions = `You moderate a public bulletin board.
Decide whether the post is inappropriate: harassment or defamation, extreme violence, or promotion of illegal activity.
Reply with one JSON object only: {"safe": boolean, "reason": string}.
"reason" briefly explains a rejection and is empty when the post is safe.`

	summaryInstructions = `You summarize the latest posts of a bulletin board.
Write a gentle, friendly summary in 2-3 sentences. Reply with the summary text only.`

	excerptSeparator = "\n---\n"

	moderationMaxTokens = 200
	summaryMaxTokens    = 400
)

var (
	_ board.Moderator  = (*Client)(nil)
	_ board.Summarizer = (*Client)(nil)
)

// TextGenerator is implemented by the llm helpers.
type TextGenerator interface {
	CreateText(ctx context.Context, apiKey string, req llm.ResponseRequest) (string, error)
}

// Client implements board.Moderator and board.Summarizer over a TextGenerator.
type Client struct {
	gen    TextGenerator
	apiKey string
	model  string
	logger logSDK.Logger
}

// New creates a client, empty model means DefaultModel
func New(gen TextGenerator, apiKey, model string, logger logSDK.Logger) (*Client, error) {
	if gen == nil {
		return nil, errors.New("text generator is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = log.Logger.Named("board_assistant")
	}

	return &Client{
		gen:    gen,
		apiKey: apiKey,
		model:  strings.TrimSpace(model),
		logger: logger,
	}, nil
}

// Check implements board.Moderator.
// Any transport or parse failure is returned as an error.
func (c *Client) Check(ctx context.Context, content string) (board.Verdict, error) {
	text, err := c.gen.CreateText(ctx, c.apiKey, llm.ResponseRequest{
		Model:           c.model,
		Instructions:    moderationInstructions,
		Input:           content,
		MaxOutputTokens: moderationMaxTokens,
		JSONOutput:      true,
	})
	if err != nil {
		return board.Verdict{}, errors.Wrap(err, "moderation request")
	}

	verdict, err := parseVerdict(text)
	if err != nil {
		return board.Verdict{}, errors.WithStack(err)
	}

	c.logger.Debug("moderation verdict",
		zap.Bool("safe", verdict.Safe),
		zap.String("reason", verdict.Reason))
	return verdict, nil
}

// Summarize implements board.Summarizer
func (c *Client) Summarize(ctx context.Context, posts []board.Excerpt) (string, error) {
	if len(posts) == 0 {
		return "", errors.New("no posts to summarize")
	}

	text, err := c.gen.CreateText(ctx, c.apiKey, llm.ResponseRequest{
		Model:           c.model,
		Instructions:    summaryInstructions,
		Input:           FormatExcerpts(posts),
		MaxOutputTokens: summaryMaxTokens,
		Temperature:     0.3,
	})
	if err != nil {
		return "", errors.Wrap(err, "summary request")
	}

	return strings.TrimSpace(text), nil
}

// FormatExcerpts renders posts as "nickname: content" blocks separated by "---".
func FormatExcerpts(posts []board.Excerpt) string {
	lines := make([]string, 0, len(posts))
	for _, p := range posts {
		lines = append(lines, p.Nickname+": "+p.Content)
	}
	return strings.Join(lines, excerptSeparator)
}

// parseVerdict decodes the model's JSON answer, tolerating a markdown fence.
func parseVerdict(text string) (board.Verdict, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw struct {
		Safe   *bool  `json:"safe"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return board.Verdict{}, errors.Wrapf(err, "parse moderation verdict %q", text)
	}
	if raw.Safe == nil {
		return board.Verdict{}, errors.Errorf("moderation verdict misses `safe`: %q", text)
	}

	return board.Verdict{Safe: *raw.Safe, Reason: strings.TrimSpace(raw.Reason)}, nil
}
