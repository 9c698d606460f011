// Package editor holds the state of one participant editing a template: the
// loaded bitmaps, the photo position and the preview surface, plus the
// controller that turns pointer, pinch and slider input into position
// changes.
package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/ivlev/eventframe/internal/compositor"
	"github.com/ivlev/eventframe/internal/geometry"
	"github.com/ivlev/eventframe/internal/source"
	"github.com/ivlev/eventframe/internal/surface"
	"github.com/ivlev/eventframe/internal/template"
)

// ErrNoPhoto is returned by operations that need a participant photo.
var ErrNoPhoto = errors.New("no photo loaded")

// Config wires a Session.
type Config struct {
	Template    *template.Definition
	Artwork     *source.Bitmap
	Placeholder *source.Bitmap // optional
	Preview     *surface.Surface
	Loader      *source.Loader
	Compositor  *compositor.Compositor
	Logger      *slog.Logger
	// MaxZoom bounds zoom at MaxZoom times the cover fit. Zero means
	// geometry.DefaultMaxZoom.
	MaxZoom float64
	// ClampPan keeps the photo covering the frame while panning and zooming.
	ClampPan bool
}

// Session is one editing session. All methods are safe to call from the
// input goroutine while a photo load completes on another.
type Session struct {
	mu sync.Mutex

	def         *template.Definition
	canvas      geometry.Dimensions
	frame       geometry.Rect
	artwork     *source.Bitmap
	placeholder *source.Bitmap
	photo       *source.Bitmap
	photoGen    uint64
	pos         geometry.Position
	fit         float64

	preview  *surface.Surface
	comp     *compositor.Compositor
	loader   *source.Loader
	latest   source.Latest
	maxZoom  float64
	clampPan bool
	paints   uint64
	logger   *slog.Logger
}

// NewSession validates cfg and paints the first preview: the placeholder if
// the template has one, otherwise a blank surface.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Template == nil || cfg.Artwork == nil || cfg.Preview == nil {
		return nil, errors.New("session needs a template, its artwork and a preview surface")
	}
	if err := cfg.Template.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Loader == nil {
		cfg.Loader = source.NewLoader(cfg.Logger, 0)
	}
	if cfg.Compositor == nil {
		cfg.Compositor = compositor.New(nil, cfg.Logger)
	}
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = geometry.DefaultMaxZoom
	}

	canvas := cfg.Template.Canvas()
	s := &Session{
		def:         cfg.Template,
		canvas:      canvas,
		frame:       geometry.FrameToAbsolute(cfg.Template.Frame(), canvas),
		artwork:     cfg.Artwork,
		placeholder: cfg.Placeholder,
		preview:     cfg.Preview,
		comp:        cfg.Compositor,
		loader:      cfg.Loader,
		maxZoom:     cfg.MaxZoom,
		clampPan:    cfg.ClampPan,
		logger:      cfg.Logger.With("template", cfg.Template.ID),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repaintLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open loads the template artwork and placeholder together and starts a
// session. Either both load or the session is not created.
func Open(ctx context.Context, def *template.Definition, r template.Resolver, cfg Config) (*Session, error) {
	if cfg.Loader == nil {
		cfg.Loader = source.NewLoader(cfg.Logger, 0)
	}
	srcs := []source.Source{r.Artwork(def)}
	if ph := r.Placeholder(def); ph != nil {
		srcs = append(srcs, ph)
	}
	bitmaps, err := cfg.Loader.LoadImages(ctx, srcs)
	if err != nil {
		return nil, err
	}
	cfg.Template = def
	cfg.Artwork = bitmaps[0]
	if len(bitmaps) > 1 {
		cfg.Placeholder = bitmaps[1]
	}
	return NewSession(cfg)
}

// LoadPhoto loads a participant photo and, if no newer load was started in
// the meantime, makes it current at cover fit and repaints. A superseded
// load reports applied == false with a nil error.
func (s *Session) LoadPhoto(ctx context.Context, src source.Source) (applied bool, err error) {
	ctx, tok := s.latest.Begin(ctx)
	bmp, err := s.loader.LoadImage(ctx, src)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.latest.IsLatest(tok) {
		s.logger.Debug("stale photo load discarded", "source", src.Name())
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.setPhotoLocked(bmp)
	return true, s.repaintLocked()
}

// SetPhoto makes an already decoded bitmap current, superseding any load in
// flight.
func (s *Session) SetPhoto(bmp *source.Bitmap) error {
	s.latest.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPhotoLocked(bmp)
	return s.repaintLocked()
}

func (s *Session) setPhotoLocked(bmp *source.Bitmap) {
	s.photo = bmp
	s.photoGen++
	s.pos = geometry.FitPosition(bmp.Width(), bmp.Height(), s.frame)
	s.fit = s.pos.Scale
	s.logger.Debug("photo set", "photo", bmp.Name(), "fit", s.fit)
}

// PhotoGeneration counts the photos made current so far.
func (s *Session) PhotoGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photoGen
}

// HasPhoto reports whether a participant photo is loaded.
func (s *Session) HasPhoto() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photo != nil
}

// Position is the current photo position.
func (s *Session) Position() geometry.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// ZoomBounds is the allowed scale interval for the current photo.
func (s *Session) ZoomBounds() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return geometry.ZoomBounds(s.fit, s.maxZoom)
}

// PanBy moves the photo by a pointer delta in preview logical units. The
// offset is not bounded unless pan clamping is on.
func (s *Session) PanBy(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo == nil {
		return ErrNoPhoto
	}
	cx, cy := s.preview.ToCanvas(dx, dy, s.canvas)
	next := s.pos
	next.OffsetX += cx
	next.OffsetY += cy
	if err := next.Validate(); err != nil {
		return err
	}
	s.pos = next
	s.constrainLocked()
	return nil
}

// SetScale stores scale clamped to the zoom bounds.
func (s *Session) SetScale(scale float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo == nil {
		return ErrNoPhoto
	}
	s.pos.Scale = geometry.ClampScale(scale, s.fit, s.maxZoom)
	s.constrainLocked()
	return nil
}

// SetPosition replaces the position, e.g. when restoring a saved edit. Scale
// is clamped like SetScale; non-finite fields are rejected and leave the
// position unchanged.
func (s *Session) SetPosition(p geometry.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo == nil {
		return ErrNoPhoto
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.Scale = geometry.ClampScale(p.Scale, s.fit, s.maxZoom)
	s.pos = p
	s.constrainLocked()
	return nil
}

func (s *Session) constrainLocked() {
	if s.clampPan {
		s.pos = geometry.ClampOffset(s.pos, s.photo.Width(), s.photo.Height(), s.frame)
	}
}

// Scene is what the next render draws. ok is false while there is neither
// a photo nor a placeholder.
func (s *Session) Scene() (scene compositor.Scene, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sceneLocked()
}

func (s *Session) sceneLocked() (compositor.Scene, bool) {
	scene := compositor.Scene{
		Template: s.artwork,
		Frame:    s.def.Frame(),
		Canvas:   s.canvas,
	}
	switch {
	case s.photo != nil:
		scene.Photo = s.photo
		scene.Position = s.pos
		scene.Anchor = compositor.Centered
	case s.placeholder != nil:
		scene.Photo = s.placeholder
		scene.Position = s.def.PlaceholderPosition(s.placeholder.Width(), s.placeholder.Height(), s.frame)
		scene.Anchor = compositor.OriginRelative
	default:
		return scene, false
	}
	return scene, true
}

// Repaint renders the current scene onto the preview surface.
func (s *Session) Repaint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repaintLocked()
}

func (s *Session) repaintLocked() error {
	s.paints++
	scene, ok := s.sceneLocked()
	if !ok {
		s.preview.Clear()
		return nil
	}
	return s.comp.Render(s.preview, scene)
}

// Paints counts preview repaints.
func (s *Session) Paints() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paints
}

// Preview returns the preview surface. Read it only between repaints.
func (s *Session) Preview() *surface.Surface { return s.preview }

func (s *Session) Template() *template.Definition { return s.def }

// Close cancels any photo load in flight and drops the bitmaps.
func (s *Session) Close() {
	s.latest.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photo, s.placeholder = nil, nil
	s.logger.Debug("session closed", "paints", s.paints)
}
