package web

import (
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/jinzhu/copier"

	"github.com/Laisky/sparkboard/internal/board"
)

// PostDTO is a post as rendered by the HTTP API.
type PostDTO struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Content   string `json:"content"`
	ImageURL  string `json:"imageUrl,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	// CreatedAtISO is CreatedAt rendered as RFC 3339 in UTC.
	CreatedAtISO string `json:"createdAtIso"`
}

// NewPostDTO converts a board post
func NewPostDTO(post board.Post) (*PostDTO, error) {
	dto := new(PostDTO)
	if err := copier.Copy(dto, &post); err != nil {
		return nil, errors.Wrap(err, "copy post")
	}

	dto.CreatedAtISO = post.CreatedTime().UTC().Format(time.RFC3339)
	return dto, nil
}

// PostsResponse is the body of GET /api/posts and of every stream event.
type PostsResponse struct {
	Posts []*PostDTO `json:"posts"`
	Count int        `json:"count"`
}

func newPostsResponse(posts []board.Post) (*PostsResponse, error) {
	resp := &PostsResponse{
		Posts: make([]*PostDTO, 0, len(posts)),
		Count: len(posts),
	}
	for _, p := range posts {
		dto, err := NewPostDTO(p)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		resp.Posts = append(resp.Posts, dto)
	}

	return resp, nil
}

// CreatePostRequest is the JSON body of POST /api/posts.
type CreatePostRequest struct {
	Nickname string `json:"nickname"`
	Content  string `json:"content"`
}

// ValidateImageRequest is the JSON body of POST /api/images/validate.
type ValidateImageRequest struct {
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
}

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Kind             string `json:"kind"`
	Message          string `json:"message"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`
}

// ErrorResponse wraps ErrorBody
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
