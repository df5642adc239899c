// Package preview serves a built bundle locally with the same headers
// the CDN is expected to send, so cross-origin isolation and WASM
// streaming can be exercised before anything is published. With watch
// enabled it live-reloads connected pages when the bundle changes.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/srnarasim/dataprism-tooling/model"
)

// reloadPath is the websocket endpoint injected pages connect to.
const reloadPath = "/__reload"

const reloadScript = `<script>(function () {
  var ws = new WebSocket("ws://" + location.host + "` + reloadPath + `");
  ws.onmessage = function () { location.reload(); };
  ws.onclose = function () { setTimeout(function () { location.reload(); }, 1000); };
})();</script>`

// Options configures a preview server.
type Options struct {
	Dir   string // bundle directory to serve
	Addr  string // listen address, e.g. 127.0.0.1:4173
	Watch bool   // rebroadcast reloads on file changes
}

// Server serves one bundle directory.
type Server struct {
	dir   string
	addr  string
	watch bool
	hub   *Hub
}

// New returns a server for opts. Dir must exist.
func New(opts Options) (*Server, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrDirectoryNotFound, opts.Dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", model.ErrDirectoryNotFound, opts.Dir)
	}
	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:4173"
	}
	return &Server{
		dir:   opts.Dir,
		addr:  addr,
		watch: opts.Watch,
		hub:   NewHub(),
	}, nil
}

// URL is the address pages should load, suitable for the validate
// battery.
func (s *Server) URL() string {
	return "http://" + s.addr
}

// Handler builds the router: reload socket plus asset serving with
// CDN-equivalent headers.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get(reloadPath, s.hub.HandleConnect)
	r.Get("/*", s.serveAsset)
	r.Head("/*", s.serveAsset)
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hub.Run(ctx)
	if s.watch {
		go func() {
			if err := s.watchLoop(ctx); err != nil {
				logrus.WithError(err).Warn("file watch stopped")
			}
		}()
	}

	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("preview listening on %s (dir %s)", s.URL(), s.dir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	return srv.Shutdown(shutCtx)
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	rel := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
	if rel == "." || rel == "" {
		rel = "index.html"
	}
	if strings.HasPrefix(rel, "..") {
		http.NotFound(w, r)
		return
	}

	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		rel = path.Join(rel, "index.html")
		full = filepath.Join(full, "index.html")
	}

	data, err := os.ReadFile(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if s.watch && strings.HasSuffix(rel, ".html") {
		data = injectReload(data)
	}

	h := w.Header()
	h.Set("Content-Type", model.MimeTypeFor(rel))
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Embedder-Policy", "require-corp")
	h.Set("Cross-Origin-Resource-Policy", "cross-origin")
	h.Set("Cache-Control", "no-cache")
	h.Set("Content-Length", fmt.Sprint(len(data)))

	if r.Method == http.MethodHead {
		return
	}
	w.Write(data)
}

// injectReload splices the reload script into an HTML page, before
// </body> when present.
func injectReload(page []byte) []byte {
	marker := []byte("</body>")
	if i := bytes.LastIndex(page, marker); i >= 0 {
		out := make([]byte, 0, len(page)+len(reloadScript))
		out = append(out, page[:i]...)
		out = append(out, reloadScript...)
		out = append(out, page[i:]...)
		return out
	}
	return append(page, reloadScript...)
}
