package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/sparkboard/internal/board"
	"github.com/Laisky/sparkboard/internal/board/storage"
)

type stubModerator struct {
	mu      sync.Mutex
	verdict board.Verdict
}

func (m *stubModerator) Check(context.Context, string) (board.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verdict, nil
}

func (m *stubModerator) set(v board.Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdict = v
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, posts []board.Excerpt) (string, error) {
	return "people said hi", nil
}

type webFixture struct {
	backend   *storage.Memory
	store     *board.Store
	pipeline  *board.Pipeline
	summary   *board.SummaryService
	moderator *stubModerator
	now       time.Time
	mu        sync.Mutex
}

func newWebFixture(t *testing.T) *webFixture {
	t.Helper()

	f := &webFixture{
		backend:   storage.NewMemory(),
		moderator: &stubModerator{verdict: board.Verdict{Safe: true}},
		now:       time.UnixMilli(1_700_000_000_000).UTC(),
	}

	var err error
	f.store, err = board.NewStore(f.backend)
	require.NoError(t, err)
	f.pipeline, err = board.NewPipeline(f.store, f.moderator, board.WithClock(f.clock))
	require.NoError(t, err)
	f.summary = board.NewSummaryService(f.store, stubSummarizer{}, 10, nil)

	return f
}

func (f *webFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *webFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *webFixture) router(t *testing.T) *gin.Engine {
	t.Helper()
	setupGinTestMode()

	router, err := NewRouter(Dependencies{
		Posts:        f.store,
		Submitter:    f.pipeline,
		Summary:      f.summary,
		PingInterval: time.Hour,
	})
	require.NoError(t, err)
	return router
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postMultipart(t *testing.T, router http.Handler, path string,
	fields map[string]string, fileName, fileType string, data []byte,
) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+fileName+`"`)
		h.Set("Content-Type", fileType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestListPosts(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	router := f.router(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"posts":[],"count":0}`, w.Body.String())

	require.NoError(t, f.store.Append(context.Background(), board.Post{ID: "a", Nickname: "ann", Content: "first", CreatedAt: 100}))
	require.NoError(t, f.store.Append(context.Background(), board.Post{ID: "b", Nickname: "bob", Content: "second", CreatedAt: 200}))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp PostsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	require.Equal(t, "b", resp.Posts[0].ID)
	require.Equal(t, "a", resp.Posts[1].ID)
	require.Equal(t, "1970-01-01T00:00:00Z", resp.Posts[1].CreatedAtISO)
}

func TestCreatePostJSON(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	router := f.router(t)

	w := postJSON(t, router, "/api/posts", CreatePostRequest{Nickname: "  ann ", Content: " hello "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Post PostDTO `json:"post"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "ann", resp.Post.Nickname)
	require.Equal(t, "hello", resp.Post.Content)
	require.Equal(t, f.clock().UnixMilli(), resp.Post.CreatedAt)
	require.Empty(t, resp.Post.ImageURL)

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestCreatePostErrors(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	router := f.router(t)

	t.Run("bad body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, kindBadRequest, decodeError(t, w).Kind)
	})

	t.Run("validation", func(t *testing.T) {
		w := postJSON(t, router, "/api/posts", CreatePostRequest{Content: "   "})
		require.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeError(t, w)
		require.Equal(t, string(board.KindValidation), body.Kind)
		require.Equal(t, board.MsgEmptyContent, body.Message)
	})

	t.Run("rate limit", func(t *testing.T) {
		w := postJSON(t, router, "/api/posts", CreatePostRequest{Content: "one"})
		require.Equal(t, http.StatusCreated, w.Code)

		f.advance(12345 * time.Millisecond)
		w = postJSON(t, router, "/api/posts", CreatePostRequest{Content: "two"})
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		require.Equal(t, "18", w.Header().Get("Retry-After"))
		body := decodeError(t, w)
		require.Equal(t, string(board.KindRateLimit), body.Kind)
		require.Equal(t, 18, body.RemainingSeconds)

		f.advance(time.Minute)
	})

	t.Run("moderation", func(t *testing.T) {
		f.moderator.set(board.Verdict{Safe: false, Reason: "harassment"})
		defer f.moderator.set(board.Verdict{Safe: true})

		w := postJSON(t, router, "/api/posts", CreatePostRequest{Content: "mean words"})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decodeError(t, w)
		require.Equal(t, string(board.KindModeration), body.Kind)
		require.Equal(t, "harassment", body.Message)
	})

	t.Run("persistence", func(t *testing.T) {
		f.backend.FailWrites(errors.New("disk full"))
		defer f.backend.FailWrites(nil)

		w := postJSON(t, router, "/api/posts", CreatePostRequest{Content: "lost"})
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		require.Equal(t, string(board.KindPersistence), decodeError(t, w).Kind)
	})
}

func TestCreatePostMultipartWithImage(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	router := f.router(t)

	w := postMultipart(t, router, "/api/posts",
		map[string]string{"nickname": "ann", "content": "look"},
		"cat.png", "image/png", []byte("png-bytes"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	posts, err := f.store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.True(t, strings.HasPrefix(posts[0].ImageURL, "data:image/png;base64,"))

	f.advance(time.Minute)
	w = postMultipart(t, router, "/api/posts",
		map[string]string{"content": "gif"},
		"cat.gif", "image/gif", []byte("gif-bytes"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, board.MsgUnsupportedType, decodeError(t, w).Message)

	w = postMultipart(t, router, "/api/posts", map[string]string{"content": "no image"}, "", "", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestValidateImage(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	router := f.router(t)

	w := postJSON(t, router, "/api/images/validate", ValidateImageRequest{MediaType: "image/webp", Size: 1024})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, router, "/api/images/validate", ValidateImageRequest{MediaType: "image/jpeg", Size: board.MaxImageBytes + 1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, board.MsgImageTooLarge, decodeError(t, w).Message)

	w = postMultipart(t, router, "/api/images/validate", nil, "a.bmp", "image/bmp", []byte("x"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, board.MsgUnsupportedType, decodeError(t, w).Message)

	w = postMultipart(t, router, "/api/images/validate", nil, "", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, kindBadRequest, decodeError(t, w).Kind)
}

func TestGetSummary(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	router := f.router(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"summary":"no posts yet"}`, w.Body.String())

	require.NoError(t, f.store.Append(context.Background(), board.Post{ID: "a", Nickname: "ann", Content: "hi", CreatedAt: 1}))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	require.JSONEq(t, `{"summary":"people said hi"}`, w.Body.String())
}

func TestStreamPosts(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	srv := httptest.NewServer(f.router(t))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/posts/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint: errcheck

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	first := readPostsEvent(t, reader)
	require.Equal(t, 0, first.Count)

	require.NoError(t, f.store.Append(context.Background(), board.Post{ID: "a", Nickname: "ann", Content: "hi", CreatedAt: 1}))

	second := readPostsEvent(t, reader)
	require.Equal(t, 1, second.Count)
	require.Equal(t, "a", second.Posts[0].ID)
}

// readPostsEvent reads lines until one complete `posts` event was parsed.
func readPostsEvent(t *testing.T, reader *bufio.Reader) PostsResponse {
	t.Helper()

	var event string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && event == "posts":
			var resp PostsResponse
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &resp))
			return resp
		}
	}
}
