// Package api exposes composite rendering over HTTP for the services that
// own templates, uploads and sharing.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ivlev/eventframe/internal/export"
	"github.com/ivlev/eventframe/internal/geometry"
	"github.com/ivlev/eventframe/internal/source"
	"github.com/ivlev/eventframe/internal/template"
)

// Options configures a Server.
type Options struct {
	TemplatesDir   string
	AppOrigin      string
	FetchTimeout   time.Duration
	MaxUploadBytes int64
	MaxZoom        float64
	ClampPan       bool
}

// Server renders composites for the templates in a Store. Template artwork
// is loaded once and cached until the next reload.
type Server struct {
	opts     Options
	store    *template.Store
	resolver template.Resolver
	loader   *source.Loader
	exporter *export.Exporter
	logger   *slog.Logger

	mu      sync.Mutex
	artwork map[string]*source.Bitmap
}

func NewServer(store *template.Store, loader *source.Loader, exporter *export.Exporter, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = source.DefaultTimeout
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = geometry.DefaultMaxZoom
	}
	return &Server{
		opts:     opts,
		store:    store,
		resolver: template.Resolver{Origin: opts.AppOrigin, Client: &http.Client{Timeout: opts.FetchTimeout}},
		loader:   loader,
		exporter: exporter,
		logger:   logger,
		artwork:  make(map[string]*source.Bitmap),
	}
}

// Reload rereads the templates directory and drops cached artwork.
func (s *Server) Reload() (int, error) {
	if s.opts.TemplatesDir == "" {
		return 0, errors.New("no templates directory configured")
	}
	n, err := s.store.LoadDir(s.opts.TemplatesDir)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.artwork = make(map[string]*source.Bitmap)
	s.mu.Unlock()
	s.logger.Info("templates loaded", "dir", s.opts.TemplatesDir, "count", n)
	return n, nil
}

// artworkFor returns the template's decoded artwork, loading it on first use.
func (s *Server) artworkFor(ctx context.Context, def *template.Definition) (*source.Bitmap, error) {
	s.mu.Lock()
	bmp, ok := s.artwork[def.ID]
	s.mu.Unlock()
	if ok {
		return bmp, nil
	}

	bmp, err := s.loader.LoadImage(ctx, s.resolver.Artwork(def))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.artwork[def.ID] = bmp
	s.mu.Unlock()
	return bmp, nil
}
