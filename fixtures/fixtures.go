// CLAUDE:SUMMARY Chi HTTP server for the demo pages and stub engine scripts used by the audit suite.
// Package fixtures serves the pages the audit suite runs against, and the
// stub engine scripts that exercise the client's error paths.
//
// Routes:
//
//	GET /                  index.html
//	GET /{page}.html       embedded page
//	GET /scripts/{name}.js embedded script, or a file from Config.ScriptDir
//	GET /healthz           "ok"
//
// strict-csp.html is served with a Content-Security-Policy that forbids
// eval and inline scripts.
package fixtures

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/axecheck/axe"
	"github.com/hazyhaar/axecheck/horosafe"
	"github.com/hazyhaar/axecheck/shield"
)

//go:embed pages/*.html scripts/*.js
var files embed.FS

// DefaultAddr is the address the suite expects the fixture server on.
const DefaultAddr = "localhost:5005"

// StrictCSP is the policy sent with strict-csp.html.
const StrictCSP = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'"

// pageHeaders are extra response headers per page.
var pageHeaders = map[string]map[string]string{
	"strict-csp.html": {"Content-Security-Policy": StrictCSP},
}

// Config configures a fixture Server.
type Config struct {
	// Addr to listen on. Default DefaultAddr.
	Addr string
	// ScriptDir, when set, is searched before the embedded scripts, so a
	// real axe.min.js can be served next to the stubs.
	ScriptDir string
	Logger    *slog.Logger
}

// Pages lists the embedded page names, sorted.
func Pages() []string {
	return list("pages", ".html")
}

// Scripts lists the embedded script names, sorted.
func Scripts() []string {
	return list("scripts", ".js")
}

// Script returns an embedded script as an engine source, for instance
// Script("axe-error.js").
func Script(name string) *axe.Script {
	return axe.ScriptFS(files, path.Join("scripts", name))
}

func list(dir, ext string) []string {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Handler returns the fixture router.
func Handler(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	for _, mw := range shield.DefaultStack(logger) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		serveEmbedded(w, r, "pages/index.html", "text/html; charset=utf-8")
	})
	r.Get("/{page}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "page")
		if !strings.HasSuffix(name, ".html") || horosafe.ValidateIdentifier(strings.TrimSuffix(name, ".html")) != nil {
			http.NotFound(w, r)
			return
		}
		for k, v := range pageHeaders[name] {
			w.Header().Set(k, v)
		}
		serveEmbedded(w, r, "pages/"+name, "text/html; charset=utf-8")
	})
	r.Get("/scripts/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if !strings.HasSuffix(name, ".js") {
			http.NotFound(w, r)
			return
		}
		if cfg.ScriptDir != "" {
			if p, err := horosafe.SafePath(cfg.ScriptDir, name); err == nil {
				if data, err := os.ReadFile(p); err == nil {
					w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
					w.Write(data)
					return
				}
			}
		}
		if horosafe.ValidateIdentifier(strings.TrimSuffix(name, ".js")) != nil {
			http.NotFound(w, r)
			return
		}
		serveEmbedded(w, r, "scripts/"+name, "text/javascript; charset=utf-8")
	})
	return r
}

func serveEmbedded(w http.ResponseWriter, r *http.Request, name, contentType string) {
	data, err := files.ReadFile(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			shield.GetLogger(r.Context()).Error("fixtures: read", "file", name, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// Server runs the fixture handler on a TCP address.
type Server struct {
	cfg    Config
	logger *slog.Logger
	ln     net.Listener
	srv    *http.Server
}

// New creates a Server. It does not listen until Start.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: cfg.Logger}
}

// Start binds the listener and serves in the background until ctx is
// cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("fixtures: listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           Handler(s.cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("fixtures: serving", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("fixtures: serve", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

// URL returns the base URL of a started server, e.g. "http://127.0.0.1:5005".
func (s *Server) URL() string {
	if s.ln == nil {
		return "http://" + s.cfg.Addr
	}
	return "http://" + s.ln.Addr().String()
}

// Close shuts the server down, waiting up to five seconds for requests.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
