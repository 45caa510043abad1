// Package web serves the board over HTTP with gin.
package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/sparkboard/internal/board"
	"github.com/Laisky/sparkboard/library/log"
)

const (
	defaultPingInterval    = 15 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	maxMultipartMemory     = 8 << 20
)

// PostFeed lists posts and pushes every new snapshot to subscribers.
type PostFeed interface {
	ReadAll(ctx context.Context) ([]board.Post, error)
	Subscribe(fn func([]board.Post)) (unsubscribe func())
}

// Submitter runs the submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, req board.SubmitRequest) (*board.Post, error)
	ValidateImage(mediaType string, size int64) error
}

// Summarizer returns a synopsis of the newest posts, never failing.
type Summarizer interface {
	Summarize(ctx context.Context) string
}

// Dependencies wires the board services into the router.
type Dependencies struct {
	Posts     PostFeed
	Submitter Submitter
	Summary   Summarizer
	// MCP is mounted at /mcp when not nil.
	MCP http.Handler
	// AllowedHosts are the CORS origins (and their subdomains) allowed to
	// call the API from a browser.
	AllowedHosts []string
	// PingInterval is the keepalive period of the posts stream.
	PingInterval time.Duration
	// FrontendDir is a built web client served for unmatched GET routes.
	FrontendDir string
	Logger       logSDK.Logger
}

// NewRouter builds the gin engine serving the board API.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	switch {
	case deps.Posts == nil:
		return nil, errors.New("posts feed is required")
	case deps.Submitter == nil:
		return nil, errors.New("submitter is required")
	case deps.Summary == nil:
		return nil, errors.New("summary service is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.Logger.Named("web")
	}
	pingInterval := deps.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}

	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory
	router.ContextWithFallback = true
	router.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLogger(logger.Named("gin")),
		),
		newCORSMiddleware(deps.AllowedHosts),
	)

	h := &handlers{
		posts:        deps.Posts,
		submitter:    deps.Submitter,
		summary:      deps.Summary,
		pingInterval: pingInterval,
	}

	router.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	api := router.Group("/api")
	api.GET("/posts", h.listPosts)
	api.POST("/posts", h.createPost)
	api.GET("/posts/stream", h.streamPosts)
	api.POST("/images/validate", h.validateImage)
	api.GET("/summary", h.getSummary)

	if deps.MCP != nil {
		router.Any("/mcp", gin.WrapH(deps.MCP))
	}

	if spa := newFrontendHandler(deps.FrontendDir, logger.Named("frontend")); spa != nil {
		router.NoRoute(gin.WrapH(spa))
	}

	return router, nil
}

// RunServer serves handler on addr until ctx is done, then shuts down gracefully.
func RunServer(ctx context.Context, addr string, handler http.Handler) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Logger.Info("listening on http", zap.String("addr", addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server exit")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}

	log.Logger.Info("http server stopped", zap.String("addr", addr))
	return nil
}

// newCORSMiddleware allows browsers on allowedHosts (or any of their
// subdomains) to call the API with credentials.
func newCORSMiddleware(allowedHosts []string) gin.HandlerFunc {
	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts = append(hosts, h)
		}
	}

	return func(ctx *gin.Context) {
		origin := strings.TrimSpace(ctx.Request.Header.Get("Origin"))
		allowedOrigin := ""

		if origin != "" {
			parsedOriginURL, err := url.Parse(origin)
			if err == nil && isAllowedHost(hosts, parsedOriginURL.Hostname()) {
				allowedOrigin = origin
			}
		}

		if allowedOrigin != "" {
			ctx.Header("Access-Control-Allow-Origin", allowedOrigin)
			ctx.Header("Access-Control-Allow-Credentials", "true")
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS, HEAD")
			ctx.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Mcp-Session-Id, Last-Event-ID")
			ctx.Header("Access-Control-Max-Age", "86400") // 24 hours
			ctx.Header("Vary", "Origin")

			if ctx.Request.Method == http.MethodOptions {
				ctx.AbortWithStatus(http.StatusNoContent)
				return
			}
		} else if origin != "" && ctx.Request.Method == http.MethodOptions {
			// deny preflight from disallowed origins
			ctx.AbortWithStatus(http.StatusForbidden)
			return
		}

		ctx.Next()
	}
}

func isAllowedHost(allowed []string, host string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}

	for _, h := range allowed {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}

	return false
}
