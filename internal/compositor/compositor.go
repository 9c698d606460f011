// Package compositor renders a participant photo into a template's frame.
//
// A render always runs in the same order: clear the surface, draw the photo
// clipped to the absolute frame rectangle, then draw the template over the
// whole canvas. The template is the top layer, so its artwork covers the
// photo's edges, and the clip keeps the photo out of everything else.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/eventframe/internal/geometry"
	"github.com/ivlev/eventframe/internal/source"
	"github.com/ivlev/eventframe/internal/surface"
)

// ErrIncompleteScene is returned when a render lacks the photo or the
// template. A half composite is never drawn.
var ErrIncompleteScene = errors.New("scene needs both a photo and a template")

// Anchor selects the point Position offsets are measured from.
type Anchor int

const (
	// Centered measures offsets from the frame's center. Used while editing,
	// it keeps the visual center stable under zoom.
	Centered Anchor = iota
	// OriginRelative measures offsets from the frame's top-left corner. Used
	// for placeholder defaults that carry an absolute starting point.
	OriginRelative
)

func (a Anchor) String() string {
	if a == OriginRelative {
		return "origin-relative"
	}
	return "centered"
}

// Scene is everything one render reads. The compositor keeps none of it.
type Scene struct {
	Photo    *source.Bitmap
	Template *source.Bitmap
	Frame    geometry.FrameRect
	Position geometry.Position
	Canvas   geometry.Dimensions
	Anchor   Anchor
}

// HighQuality is the interpolator for one-shot export renders.
var HighQuality draw.Interpolator = draw.CatmullRom

// Compositor draws scenes onto surfaces with a fixed interpolator.
type Compositor struct {
	interp draw.Interpolator
	logger *slog.Logger
}

// New returns a Compositor. A nil interpolator means ApproxBiLinear; a nil
// logger discards output.
func New(interp draw.Interpolator, logger *slog.Logger) *Compositor {
	if interp == nil {
		interp = draw.ApproxBiLinear
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Compositor{interp: interp, logger: logger}
}

// ParseInterpolator maps a config name to an x/image interpolator.
func ParseInterpolator(name string) (draw.Interpolator, error) {
	switch strings.ToLower(name) {
	case "nearest":
		return draw.NearestNeighbor, nil
	case "bilinear", "":
		return draw.ApproxBiLinear, nil
	case "catmullrom", "catmull-rom":
		return draw.CatmullRom, nil
	}
	return nil, fmt.Errorf("unknown interpolator: %s", name)
}

// Render paints scene onto s.
func (c *Compositor) Render(s *surface.Surface, scene Scene) error {
	if scene.Photo == nil || scene.Template == nil {
		return ErrIncompleteScene
	}
	if scene.Canvas.Empty() {
		return fmt.Errorf("%w: canvas %s", surface.ErrEmpty, scene.Canvas)
	}
	start := time.Now()

	s.Clear()

	k := s.DeviceScale(scene.Canvas)
	frame := geometry.FrameToAbsolute(scene.Frame, scene.Canvas)
	clip := frame.Scale(k).Pixels()

	photo := PhotoRect(frame, scene.Photo.Width(), scene.Photo.Height(), scene.Position, scene.Anchor)
	c.drawInto(s.Region(clip), photo.Scale(k), scene.Photo.Image())

	full := geometry.Rect{Width: float64(scene.Canvas.Width), Height: float64(scene.Canvas.Height)}
	c.drawInto(s.Canvas(), full.Scale(k), scene.Template.Image())

	if scene.Photo.Tainted() || scene.Template.Tainted() {
		s.Taint()
	}

	c.logger.Debug("composite rendered",
		"surface", s.Kind().String(),
		"bounds", s.Bounds().String(),
		"clip", clip.String(),
		"anchor", scene.Anchor.String(),
		"elapsed", time.Since(start))
	return nil
}

// PhotoRect is the rectangle, in canvas units, the photo occupies before
// clipping: its natural size times Position.Scale, placed by anchor.
func PhotoRect(frame geometry.Rect, width, height int, p geometry.Position, anchor Anchor) geometry.Rect {
	w := float64(width) * p.Scale
	h := float64(height) * p.Scale
	if anchor == OriginRelative {
		return geometry.Rect{X: frame.X + p.OffsetX, Y: frame.Y + p.OffsetY, Width: w, Height: h}
	}
	cx, cy := frame.Center()
	return geometry.Rect{X: cx + p.OffsetX - w/2, Y: cy + p.OffsetY - h/2, Width: w, Height: h}
}

// drawInto scales src onto dst so its bounds land on r (physical pixels).
// Pixels outside dst's bounds are left alone.
func (c *Compositor) drawInto(dst draw.Image, r geometry.Rect, src image.Image) {
	sb := src.Bounds()
	if sb.Empty() || r.Width <= 0 || r.Height <= 0 {
		return
	}
	sx := r.Width / float64(sb.Dx())
	sy := r.Height / float64(sb.Dy())

	if sx == 1 && sy == 1 && r.X == math.Trunc(r.X) && r.Y == math.Trunc(r.Y) {
		dp := image.Pt(int(r.X), int(r.Y))
		draw.Draw(dst, image.Rectangle{Min: dp, Max: dp.Add(sb.Size())}, src, sb.Min, draw.Over)
		return
	}

	m := f64.Aff3{
		sx, 0, r.X - float64(sb.Min.X)*sx,
		0, sy, r.Y - float64(sb.Min.Y)*sy,
	}
	c.interp.Transform(dst, m, src, sb, draw.Over, nil)
}
