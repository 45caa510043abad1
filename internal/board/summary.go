package board

import (
	"context"
	"strings"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/sparkboard/library/log"
)

const (
	// SummaryNoPosts is returned for an empty board, without asking the summarizer.
	SummaryNoPosts = "no posts yet"
	// SummaryUnavailable replaces the synopsis whenever it cannot be produced.
	SummaryUnavailable = "summary unavailable"
)

// SummaryService produces a synopsis of the newest posts. It never fails.
type SummaryService struct {
	store      *Store
	summarizer Summarizer
	limit      int
	logger     logSDK.Logger
}

// NewSummaryService creates a summary service, limit <= 0 means DefaultSummaryPosts
func NewSummaryService(store *Store, summarizer Summarizer, limit int, logger logSDK.Logger) *SummaryService {
	if limit <= 0 {
		limit = DefaultSummaryPosts
	}
	if logger == nil {
		logger = log.Logger.Named("board_summary")
	}

	return &SummaryService{
		store:      store,
		summarizer: summarizer,
		limit:      limit,
		logger:     logger,
	}
}

// Summarize returns a synopsis of the newest posts, SummaryNoPosts for an
// empty board, or SummaryUnavailable on any failure.
func (s *SummaryService) Summarize(ctx context.Context) string {
	posts, err := s.store.ReadAll(ctx)
	if err != nil {
		s.logger.Warn("load posts for summary", zap.Error(err))
		return SummaryUnavailable
	}
	if len(posts) == 0 {
		return SummaryNoPosts
	}
	if s.summarizer == nil {
		return SummaryUnavailable
	}

	if len(posts) > s.limit {
		posts = posts[:s.limit]
	}
	excerpts := make([]Excerpt, 0, len(posts))
	for _, post := range posts {
		excerpts = append(excerpts, Excerpt{Nickname: post.Nickname, Content: post.Content})
	}

	text, err := s.summarizer.Summarize(ctx, excerpts)
	if err != nil {
		s.logger.Warn("summarize posts", zap.Error(err))
		return SummaryUnavailable
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return SummaryUnavailable
	}
	return text
}
