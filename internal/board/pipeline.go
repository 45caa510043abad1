package board

import (
	"context"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"

	"github.com/Laisky/sparkboard/library/log"
)

// AttemptState is the progress of one submission attempt.
type AttemptState string

const (
	StateIdle               AttemptState = "idle"
	StateValidating         AttemptState = "validating"
	StateRateChecking       AttemptState = "rate_checking"
	StateModerationChecking AttemptState = "moderation_checking"
	StatePersisting         AttemptState = "persisting"
	StateSucceeded          AttemptState = "succeeded"
	StateFailed             AttemptState = "failed"
)

// Pipeline turns form input into a stored post. Gates run in a fixed order
// and a failed attempt leaves neither a post nor a cooldown behind.
type Pipeline struct {
	store     *Store
	limiter   *RateLimiter
	moderator Moderator
	encoder   ImageEncoder
	archiver  ImageArchiver
	settings  Settings
	clock     Clock
	newID     func() string
	logger    logSDK.Logger

	// submissions are serialized
	mu sync.Mutex
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithSettings overrides the default settings. Zero fields keep their
// defaults, so a zero Cooldown still means DefaultCooldown.
func WithSettings(settings Settings) PipelineOption {
	return func(p *Pipeline) {
		p.settings = settings.withDefaults()
	}
}

// WithClock overrides the time source
func WithClock(clock Clock) PipelineOption {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithIDGenerator overrides post id generation
func WithIDGenerator(fn func() string) PipelineOption {
	return func(p *Pipeline) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// WithImageEncoder overrides the data URI encoder
func WithImageEncoder(encoder ImageEncoder) PipelineOption {
	return func(p *Pipeline) {
		if encoder != nil {
			p.encoder = encoder
		}
	}
}

// WithImageArchiver enables archiving raw images after they are stored
func WithImageArchiver(archiver ImageArchiver) PipelineOption {
	return func(p *Pipeline) {
		p.archiver = archiver
	}
}

// WithPipelineLogger sets the logger
func WithPipelineLogger(logger logSDK.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a pipeline appending into store.
// A nil moderator accepts all content.
func NewPipeline(store *Store, moderator Moderator, opts ...PipelineOption) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("post store is required")
	}

	p := &Pipeline{
		store:     store,
		moderator: moderator,
		settings:  DefaultSettings(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
		newID:  newPostID,
		logger: log.Logger.Named("board_pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.encoder == nil {
		p.encoder = DataURIEncoder{MaxBytes: p.settings.MaxImageBytes}
	}
	p.limiter = NewRateLimiter(store.Backend(), p.settings.RateLimitKey, p.settings.Cooldown)

	return p, nil
}

// Settings returns the effective settings
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// ValidateImage checks an image against the configured limits, usable
// as soon as the file is chosen.
func (p *Pipeline) ValidateImage(mediaType string, size int64) error {
	return validateImage(mediaType, size, p.settings.MaxImageBytes)
}

// Submit runs one submission attempt. Failures are *SubmissionError.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (*Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	att := &attempt{
		logger: p.logger.With(zap.String("attempt", gutils.UUID7Bytes().String())),
		state:  StateIdle,
	}

	post, err := p.submit(ctx, att, req)
	if err != nil {
		att.fail(err)
		return nil, err
	}

	att.transit(StateSucceeded, zap.String("post", post.ID))
	return post, nil
}

func (p *Pipeline) submit(ctx context.Context, att *attempt, req SubmitRequest) (*Post, error) {
	att.transit(StateValidating)
	content, err := NormalizeContent(req.Content)
	if err != nil {
		return nil, err
	}
	nickname, err := NormalizeNickname(req.Nickname)
	if err != nil {
		return nil, err
	}
	if req.Image != nil {
		if err = p.ValidateImage(req.Image.MediaType, req.Image.Size); err != nil {
			return nil, err
		}
	}

	att.transit(StateRateChecking)
	remaining, err := p.limiter.Remaining(ctx, p.clock())
	if err != nil {
		return nil, NewPersistenceError(err)
	}
	if remaining > 0 {
		return nil, NewRateLimitError(remaining)
	}

	att.transit(StateModerationChecking)
	if p.moderator != nil {
		verdict, err := p.moderator.Check(ctx, content)
		switch {
		case err != nil:
			att.logger.Warn("moderation check failed, allow content", zap.Error(err))
		case !verdict.Safe:
			return nil, NewModerationError(verdict.Reason)
		}
	}

	att.transit(StatePersisting)
	var img *EncodedImage
	if req.Image != nil {
		if img, err = p.encoder.Encode(ctx, req.Image); err != nil {
			if typed, ok := AsSubmissionError(err); ok {
				return nil, typed
			}
			att.logger.Warn("encode image", zap.Error(err))
			return nil, &SubmissionError{Kind: KindValidation, Message: MsgUnreadableImage, Err: err}
		}
	}

	now := p.clock()
	post := &Post{
		ID:        p.newID(),
		Nickname:  nickname,
		Content:   content,
		CreatedAt: now.UnixMilli(),
	}
	if img != nil {
		post.ImageURL = img.DataURI
	}

	if err = p.store.Append(ctx, *post); err != nil {
		return nil, err
	}

	// the post is stored, a lost marker only shortens the cooldown
	if err = p.limiter.Mark(ctx, now); err != nil {
		att.logger.Warn("update rate-limit marker", zap.Error(err))
	}

	if img != nil && p.archiver != nil {
		if err = p.archiver.Archive(ctx, *post, img); err != nil {
			att.logger.Warn("archive image", zap.String("post", post.ID), zap.Error(err))
		}
	}

	return post, nil
}

type attempt struct {
	logger logSDK.Logger
	state  AttemptState
}

func (a *attempt) transit(to AttemptState, fields ...zap.Field) {
	fields = append(fields, zap.String("from", string(a.state)), zap.String("to", string(to)))
	a.logger.Debug("submission state", fields...)
	a.state = to
}

func (a *attempt) fail(err error) {
	kind := "unknown"
	if typed, ok := AsSubmissionError(err); ok {
		kind = string(typed.Kind)
	}

	a.logger.Info("submission failed",
		zap.String("state", string(a.state)),
		zap.String("kind", kind),
		zap.Error(err))
	a.state = StateFailed
}

// newPostID returns 8 random hex characters.
func newPostID() string {
	return uuid.NewString()[:8]
}
