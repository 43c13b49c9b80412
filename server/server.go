// Package server serves the translation catalog: a browser UI to search,
// edit and delete entries, plus endpoints that trigger scans.
//
// Routes, relative to the configured prefix:
//
//	GET  /                listing page (AJAX: {success, html, tab})
//	GET  /list            listing as JSON
//	POST /update          upsert one entry
//	POST /delete          remove one entry
//	POST /scan            synchronize stores with the sources
//	POST /scan-translate  same, with machine translation
//
// /metrics and /healthz are always mounted at the root.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/minios-linux/transcan/catalog"
	"github.com/minios-linux/transcan/metrics"
	"github.com/minios-linux/transcan/scan"
)

// ScanFunc runs a synchronization for locales.
type ScanFunc func(ctx context.Context, locales []string, translate bool) (*scan.Report, error)

// Options configures a Server.
type Options struct {
	Catalog *catalog.Catalog
	// Prefix is the path the UI is mounted under ("" or "/translation-scanner").
	Prefix  string
	PerPage int
	// DefaultLocales are used by scan and delete requests that name none,
	// and as tabs while the lang directory is still empty.
	DefaultLocales []string
	Scan           ScanFunc
	// CacheSize bounds the number of locales kept in the listing cache.
	CacheSize int
	Log       zerolog.Logger
}

// cached is a locale listing together with the stamp of the files it was
// read from.
type cached struct {
	stamp   string
	entries []catalog.Entry
}

// Server handles the catalog routes.
type Server struct {
	opts  Options
	cache *lru.Cache[string, cached]
	tmpl  *template.Template
	mux   *http.ServeMux

	// mu serializes store mutations and scans.
	mu sync.Mutex

	// cacheMu guards gen together with cache fills and purges, so a listing
	// read before a mutation is never stored after it.
	cacheMu sync.Mutex
	gen     uint64
}

// New builds a Server from opts.
func New(opts Options) (*Server, error) {
	if opts.Catalog == nil {
		return nil, errors.New("server: catalog is required")
	}
	opts.Prefix = "/" + strings.Trim(opts.Prefix, "/")
	if opts.Prefix == "/" {
		opts.Prefix = ""
	}
	if opts.PerPage < 1 {
		opts.PerPage = catalog.DefaultPerPage
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = 64
	}

	cache, err := lru.New[string, cached](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating catalog cache: %w", err)
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{opts: opts, cache: cache, tmpl: tmpl, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	p := s.opts.Prefix
	s.mux.HandleFunc("GET "+p+"/{$}", s.handleIndex)
	s.mux.HandleFunc("GET "+p+"/list", s.handleList)
	s.mux.HandleFunc("POST "+p+"/update", s.handleUpdate)
	s.mux.HandleFunc("POST "+p+"/delete", s.handleDelete)
	s.mux.HandleFunc("POST "+p+"/scan", s.handleScan(false))
	s.mux.HandleFunc("POST "+p+"/scan-translate", s.handleScan(true))
	if p != "" {
		s.mux.Handle("GET "+p, http.RedirectHandler(p+"/", http.StatusMovedPermanently))
	}
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the root handler with logging, request ids, metrics and
// panic recovery applied.
func (s *Server) Handler() http.Handler {
	return s.recoverer(s.requestID(instrument(s.mux)))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. onListen, if set, is called with the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, onListen func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if onListen != nil {
		onListen(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// entries returns the listing of locale. A cached listing is used only while
// the stores on disk still carry the stamp it was read with, so edits made
// outside the server (a CLI scan, a text editor) show up on the next request.
func (s *Server) entries(locale string) []catalog.Entry {
	stamp := s.opts.Catalog.Stamp(locale)
	if c, ok := s.cache.Get(locale); ok && c.stamp == stamp {
		return c.entries
	}

	s.cacheMu.Lock()
	gen := s.gen
	s.cacheMu.Unlock()

	e := s.opts.Catalog.LoadLocale(locale)

	s.cacheMu.Lock()
	if s.gen == gen {
		s.cache.Add(locale, cached{stamp: stamp, entries: e})
	}
	s.cacheMu.Unlock()
	return e
}

// invalidate drops cached listings after the stores changed.
func (s *Server) invalidate() {
	s.cacheMu.Lock()
	s.gen++
	s.cache.Purge()
	s.cacheMu.Unlock()
}
