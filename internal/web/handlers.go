package web

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/sparkboard/internal/board"
)

const (
	kindBadRequest = "bad_request"
	kindInternal   = "internal"

	imageFormField = "image"
)

type handlers struct {
	posts        PostFeed
	submitter    Submitter
	summary      Summarizer
	pingInterval time.Duration
}

func (h *handlers) listPosts(c *gin.Context) {
	logger := gmw.GetLogger(c).Named("list_posts")

	posts, err := h.posts.ReadAll(c)
	if err != nil {
		logger.Error("read posts", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, ErrorBody{Kind: kindInternal, Message: "failed to read posts"})
		return
	}

	resp, err := newPostsResponse(posts)
	if err != nil {
		logger.Error("render posts", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, ErrorBody{Kind: kindInternal, Message: "failed to render posts"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handlers) createPost(c *gin.Context) {
	logger := gmw.GetLogger(c).Named("create_post")

	req, ok := parseSubmitRequest(c)
	if !ok {
		return
	}

	post, err := h.submitter.Submit(c, req)
	if err != nil {
		writeSubmissionError(c, err)
		return
	}

	dto, err := NewPostDTO(*post)
	if err != nil {
		logger.Error("render post", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, ErrorBody{Kind: kindInternal, Message: "failed to render post"})
		return
	}

	logger.Info("post created", zap.String("post_id", post.ID))
	c.JSON(http.StatusCreated, gin.H{"post": dto})
}

// parseSubmitRequest reads a multipart form (with an optional image) or a
// JSON body. It writes the error response itself and returns false on failure.
func parseSubmitRequest(c *gin.Context) (board.SubmitRequest, bool) {
	if !isMultipart(c) {
		var body CreatePostRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			abortWithError(c, http.StatusBadRequest, ErrorBody{Kind: kindBadRequest, Message: "invalid request body"})
			return board.SubmitRequest{}, false
		}

		return board.SubmitRequest{Nickname: body.Nickname, Content: body.Content}, true
	}

	req := board.SubmitRequest{
		Nickname: c.PostForm("nickname"),
		Content:  c.PostForm("content"),
	}

	fh, err := c.FormFile(imageFormField)
	switch {
	case err == nil:
		req.Image = imageFromHeader(fh)
	case errors.Is(err, http.ErrMissingFile):
	default:
		abortWithError(c, http.StatusBadRequest, ErrorBody{Kind: kindBadRequest, Message: "invalid multipart form"})
		return board.SubmitRequest{}, false
	}

	return req, true
}

func (h *handlers) validateImage(c *gin.Context) {
	var (
		mediaType string
		size      int64
	)

	if isMultipart(c) {
		fh, err := c.FormFile(imageFormField)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, ErrorBody{Kind: kindBadRequest, Message: "image file is required"})
			return
		}
		mediaType, size = fh.Header.Get("Content-Type"), fh.Size
	} else {
		var body ValidateImageRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			abortWithError(c, http.StatusBadRequest, ErrorBody{Kind: kindBadRequest, Message: "invalid request body"})
			return
		}
		mediaType, size = body.MediaType, body.Size
	}

	if err := h.submitter.ValidateImage(mediaType, size); err != nil {
		writeSubmissionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) getSummary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"summary": h.summary.Summarize(c)})
}

// streamPosts pushes a `posts` event with the full list on connect and after
// every change, plus a `ping` event to keep proxies from closing the stream.
func (h *handlers) streamPosts(c *gin.Context) {
	logger := gmw.GetLogger(c).Named("stream_posts")

	// each snapshot is complete, so a slow client only needs the latest one
	updates := make(chan []board.Post, 1)
	unsubscribe := h.posts.Subscribe(func(posts []board.Post) {
		for {
			select {
			case updates <- posts:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	initial, err := h.posts.ReadAll(c)
	if err != nil {
		logger.Error("read posts", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, ErrorBody{Kind: kindInternal, Message: "failed to read posts"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	if !sendPosts(c, initial) {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	done := c.Request.Context().Done()
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-done:
			return false
		case posts := <-updates:
			return sendPosts(c, posts)
		case t := <-ticker.C:
			c.SSEvent("ping", strconv.FormatInt(t.UnixMilli(), 10))
			return true
		}
	})

	logger.Debug("posts stream closed")
}

func sendPosts(c *gin.Context, posts []board.Post) bool {
	resp, err := newPostsResponse(posts)
	if err != nil {
		gmw.GetLogger(c).Error("render posts event", zap.Error(err))
		return false
	}

	c.SSEvent("posts", resp)
	c.Writer.Flush()
	return true
}

func imageFromHeader(fh *multipart.FileHeader) *board.ImageFile {
	return &board.ImageFile{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Size:      fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

// writeSubmissionError maps pipeline errors onto HTTP statuses.
func writeSubmissionError(c *gin.Context, err error) {
	serr, ok := board.AsSubmissionError(err)
	if !ok {
		gmw.GetLogger(c).Error("submission failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, ErrorBody{Kind: kindInternal, Message: "internal error"})
		return
	}

	body := ErrorBody{
		Kind:    string(serr.Kind),
		Message: serr.Message,
	}

	status := http.StatusInternalServerError
	switch serr.Kind {
	case board.KindValidation:
		status = http.StatusBadRequest
	case board.KindRateLimit:
		status = http.StatusTooManyRequests
		body.RemainingSeconds = serr.RemainingSeconds
		c.Header("Retry-After", strconv.Itoa(serr.RemainingSeconds))
	case board.KindModeration:
		status = http.StatusUnprocessableEntity
	case board.KindPersistence:
		status = http.StatusServiceUnavailable
		gmw.GetLogger(c).Error("persist post", zap.Error(err))
	}

	abortWithError(c, status, body)
}

func abortWithError(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}
