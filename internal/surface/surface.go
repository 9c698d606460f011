// Package surface owns the raster targets compositions are drawn into.
//
// A Surface has a logical size, the units callers draw and point in, and a
// pixel ratio mapping logical units to physical pixels. Preview surfaces
// follow the on-screen size and device pixel ratio; export surfaces are
// always the template's full canvas at ratio 1.
package surface

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/ivlev/eventframe/internal/geometry"
	"github.com/ivlev/eventframe/internal/system"
)

// ErrTainted is returned when reading back a surface that has received
// pixels from a cross-origin bitmap without read permission.
var ErrTainted = errors.New("surface is tainted by a cross-origin image")

// ErrEmpty is returned for surfaces without area.
var ErrEmpty = errors.New("surface has zero size")

// Kind names a resolution context.
type Kind int

const (
	Preview Kind = iota
	Export
)

func (k Kind) String() string {
	if k == Export {
		return "export"
	}
	return "preview"
}

// Surface is a drawable RGBA buffer with a logical coordinate space.
type Surface struct {
	kind    Kind
	width   int
	height  int
	ratio   float64
	buf     *image.RGBA
	pooled  bool
	tainted bool
}

// NewPreview allocates an on-screen surface of width x height logical units at
// the given device pixel ratio.
func NewPreview(width, height int, pixelRatio float64) (*Surface, error) {
	s := &Surface{kind: Preview}
	if err := s.Setup(width, height, pixelRatio); err != nil {
		return nil, err
	}
	return s, nil
}

// NewExport allocates a full-resolution offscreen surface for canvas. Its
// buffer comes from the shared pool; call Release when done with it unless
// the pixels are handed to a caller.
func NewExport(canvas geometry.Dimensions) (*Surface, error) {
	if canvas.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, canvas)
	}
	if err := system.EnsureMemory(system.RGBABytes(canvas.Width, canvas.Height)); err != nil {
		return nil, err
	}
	buf := system.GetImage(canvas)
	return &Surface{
		kind:   Export,
		width:  canvas.Width,
		height: canvas.Height,
		ratio:  1,
		buf:    buf,
		pooled: true,
	}, nil
}

// Setup sizes the surface to width x height logical units at pixelRatio. The
// buffer is reallocated only when the physical size changes, and the ratio is
// stored rather than multiplied, so repeating a call is a no-op.
func (s *Surface) Setup(width, height int, pixelRatio float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrEmpty, width, height)
	}
	if pixelRatio <= 0 || math.IsNaN(pixelRatio) || math.IsInf(pixelRatio, 0) {
		pixelRatio = 1
	}
	phys := image.Rect(0, 0,
		int(math.Round(float64(width)*pixelRatio)),
		int(math.Round(float64(height)*pixelRatio)))
	if phys.Empty() {
		return fmt.Errorf("%w: %dx%d at ratio %.2f", ErrEmpty, width, height, pixelRatio)
	}

	if s.buf == nil || s.buf.Rect != phys {
		s.Release()
		s.buf = image.NewRGBA(phys)
		s.pooled = false
	}
	s.width, s.height, s.ratio = width, height, pixelRatio
	return nil
}

// Clear resets every pixel to transparent. It does not reset the tainted
// flag, which lasts for the surface's lifetime.
func (s *Surface) Clear() {
	draw.Draw(s.buf, s.buf.Rect, image.Transparent, image.Point{}, draw.Src)
}

func (s *Surface) Kind() Kind              { return s.kind }
func (s *Surface) LogicalSize() (int, int) { return s.width, s.height }
func (s *Surface) PixelRatio() float64     { return s.ratio }

// Bounds is the physical pixel rectangle.
func (s *Surface) Bounds() image.Rectangle { return s.buf.Rect }

// Canvas is the draw target. Reading pixels back goes through Pixels.
func (s *Surface) Canvas() draw.Image { return s.buf }

// Region is a draw target restricted to r in physical pixels. Drawing through
// it never touches pixels outside r.
func (s *Surface) Region(r image.Rectangle) draw.Image {
	return s.buf.SubImage(r.Intersect(s.buf.Rect)).(*image.RGBA)
}

// Taint marks the surface as holding unreadable cross-origin pixels.
func (s *Surface) Taint() { s.tainted = true }

func (s *Surface) Tainted() bool { return s.tainted }

// Pixels returns the physical buffer for read-back.
func (s *Surface) Pixels() (*image.RGBA, error) {
	if s.tainted {
		return nil, ErrTainted
	}
	return s.buf, nil
}

// Detach hands the buffer to the caller for good; the surface stops owning it
// and will not return it to the pool.
func (s *Surface) Detach() (*image.RGBA, error) {
	img, err := s.Pixels()
	if err != nil {
		return nil, err
	}
	s.pooled = false
	return img, nil
}

// Release returns a pooled buffer. The surface must not be used afterwards.
func (s *Surface) Release() {
	if s.pooled && s.buf != nil {
		system.PutImage(s.buf)
	}
	s.pooled = false
}

// ViewScale maps canvas units to the surface's logical units. Only the width
// is consulted so preview and export share one factor.
func (s *Surface) ViewScale(canvas geometry.Dimensions) float64 {
	if canvas.Width <= 0 {
		return 1
	}
	return float64(s.width) / float64(canvas.Width)
}

// DeviceScale maps canvas units to physical pixels.
func (s *Surface) DeviceScale(canvas geometry.Dimensions) float64 {
	return s.ViewScale(canvas) * s.ratio
}

// ToCanvas converts a distance in logical surface units (pointer space) to
// canvas units.
func (s *Surface) ToCanvas(dx, dy float64, canvas geometry.Dimensions) (float64, float64) {
	k := s.ViewScale(canvas)
	return dx / k, dy / k
}
