package web

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
)

// frontendDirEnvKey overrides settings.web.frontend_dir.
const frontendDirEnvKey = "SPARKBOARD_FRONTEND_DIR"

// spaHandler serves a built single page app, falling back to index.html
// for client-side routes.
type spaHandler struct {
	root   string
	index  []byte
	logger logSDK.Logger
}

// newFrontendHandler returns nil when no usable frontend build is found.
func newFrontendHandler(dir string, logger logSDK.Logger) http.Handler {
	if override := strings.TrimSpace(os.Getenv(frontendDirEnvKey)); override != "" {
		dir = override
	}
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Debug("inspect frontend dir", zap.Error(err), zap.String("path", dir))
		}
		logger.Warn("frontend assets not found", zap.String("path", dir))
		return nil
	}

	indexPath := filepath.Join(dir, "index.html")
	indexBytes, err := os.ReadFile(indexPath)
	if err != nil {
		logger.Warn("read frontend index", zap.Error(err), zap.String("path", indexPath))
		return nil
	}

	logger.Info("frontend assets located", zap.String("path", dir))
	return &spaHandler{
		root:   dir,
		index:  indexBytes,
		logger: logger,
	}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	clean := strings.TrimPrefix(filepath.Clean("/"+r.URL.Path), "/")
	if strings.Contains(clean, "..") {
		h.logger.Warn("reject potential path traversal", zap.String("path", r.URL.Path))
		http.NotFound(w, r)
		return
	}
	if clean == "" {
		h.serveIndex(w, r)
		return
	}

	fsPath := filepath.Join(h.root, clean)
	if info, err := os.Stat(fsPath); err == nil && !info.IsDir() {
		http.ServeFile(w, r, fsPath)
		return
	}

	// missing static assets are 404, everything else is a client route
	if strings.Contains(filepath.Base(clean), ".") {
		http.NotFound(w, r)
		return
	}

	h.serveIndex(w, r)
}

func (h *spaHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	// gin has already set 404 when this runs as the NoRoute handler
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(h.index); err != nil {
		h.logger.Warn("write frontend index", zap.Error(err))
	}
}
