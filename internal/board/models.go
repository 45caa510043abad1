// Package board implements the bulletin board: the post store, the
// submission pipeline and the summary refresh.
package board

import (
	"context"
	"time"
)

// Post is one message on the board, immutable once created.
type Post struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Content  string `json:"content"`
	// ImageURL is a base64 data URI, empty when the post has no image.
	ImageURL string `json:"imageUrl,omitempty"`
	// CreatedAt is epoch milliseconds.
	CreatedAt int64 `json:"createdAt"`
}

// CreatedTime returns CreatedAt as a UTC time
func (p Post) CreatedTime() time.Time {
	return time.UnixMilli(p.CreatedAt).UTC()
}

// SubmitRequest is the raw form input of one submission.
type SubmitRequest struct {
	Nickname string
	Content  string
	Image    *ImageFile
}

// Verdict is the outcome of a content safety check.
type Verdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

// Excerpt is the part of a post handed to the summarizer.
type Excerpt struct {
	Nickname string
	Content  string
}

// Moderator checks whether content may be published.
type Moderator interface {
	Check(ctx context.Context, content string) (Verdict, error)
}

// Summarizer writes a short synopsis of recent posts, newest first.
type Summarizer interface {
	Summarize(ctx context.Context, posts []Excerpt) (string, error)
}

// Clock provides the current time.
type Clock func() time.Time
