package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidFrame is returned by FrameRect.Validate.
var ErrInvalidFrame = errors.New("invalid photo frame")

// FitMode selects how AutoFitScale relates a bitmap to a target rectangle.
type FitMode int

const (
	// Cover fills the target, cropping whatever overflows.
	Cover FitMode = iota
	// Contain keeps the whole bitmap visible, possibly leaving gaps.
	Contain
)

func (m FitMode) String() string {
	switch m {
	case Cover:
		return "cover"
	case Contain:
		return "contain"
	default:
		return fmt.Sprintf("FitMode(%d)", int(m))
	}
}

// ParseFitMode maps "cover" / "contain" to a FitMode.
func ParseFitMode(s string) (FitMode, error) {
	switch s {
	case "cover", "":
		return Cover, nil
	case "contain":
		return Contain, nil
	}
	return Cover, fmt.Errorf("unknown fit mode: %s", s)
}

// Dimensions is an output raster size in pixels.
type Dimensions struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Empty reports whether d has no area.
func (d Dimensions) Empty() bool {
	return d.Width <= 0 || d.Height <= 0
}

// FrameRect is a rectangle in template-normalized coordinates. Every field is
// a fraction of the matching canvas dimension.
type FrameRect struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Validate checks that the frame lies inside the unit square and has area.
func (f FrameRect) Validate() error {
	switch {
	case math.IsNaN(f.X) || math.IsNaN(f.Y) || math.IsNaN(f.Width) || math.IsNaN(f.Height):
		return fmt.Errorf("%w: NaN component", ErrInvalidFrame)
	case f.X < 0 || f.Y < 0:
		return fmt.Errorf("%w: negative origin (%.4f, %.4f)", ErrInvalidFrame, f.X, f.Y)
	case f.Width <= 0 || f.Height <= 0:
		return fmt.Errorf("%w: non-positive size %.4fx%.4f", ErrInvalidFrame, f.Width, f.Height)
	case f.X+f.Width > 1 || f.Y+f.Height > 1:
		return fmt.Errorf("%w: extends past the canvas", ErrInvalidFrame)
	}
	return nil
}

// Rect is an absolute rectangle in canvas units.
type Rect struct {
	X, Y, Width, Height float64
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the geometric center of r.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Scale multiplies every component by k.
func (r Rect) Scale(k float64) Rect {
	return Rect{X: r.X * k, Y: r.Y * k, Width: r.Width * k, Height: r.Height * k}
}

// Pixels rounds r to the nearest whole-pixel edges.
func (r Rect) Pixels() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.Right())),
		int(math.Round(r.Bottom())),
	)
}

// FrameToAbsolute converts a normalized frame into canvas units. The result
// never leaves [0,canvas.Width]x[0,canvas.Height] for a valid frame, even when
// floating point products overshoot by an ulp.
func FrameToAbsolute(frame FrameRect, canvas Dimensions) Rect {
	cw, ch := float64(canvas.Width), float64(canvas.Height)
	r := Rect{
		X:      frame.X * cw,
		Y:      frame.Y * ch,
		Width:  frame.Width * cw,
		Height: frame.Height * ch,
	}
	if r.Right() > cw {
		r.Width = cw - r.X
	}
	if r.Bottom() > ch {
		r.Height = ch - r.Y
	}
	return r
}

// AutoFitScale returns the factor that makes a bitmap cover or fit inside a
// frame. Non-positive dimensions are a programming error and panic.
func AutoFitScale(bitmapWidth, bitmapHeight, frameWidth, frameHeight float64, mode FitMode) float64 {
	if bitmapWidth <= 0 || bitmapHeight <= 0 || frameWidth <= 0 || frameHeight <= 0 {
		panic(fmt.Sprintf("geometry: degenerate fit %gx%g into %gx%g", bitmapWidth, bitmapHeight, frameWidth, frameHeight))
	}
	scaleX := frameWidth / bitmapWidth
	scaleY := frameHeight / bitmapHeight
	if mode == Contain {
		return math.Min(scaleX, scaleY)
	}
	return math.Max(scaleX, scaleY)
}
