package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPosition is returned for positions with NaN or infinite fields.
var ErrInvalidPosition = errors.New("invalid photo position")

// DefaultMaxZoom bounds zoom relative to the cover fit.
const DefaultMaxZoom = 3.0

// Position places a bitmap relative to a frame. Offsets are canvas units;
// Scale multiplies the bitmap's natural pixel size.
type Position struct {
	OffsetX float64 `yaml:"offset_x" json:"offset_x"`
	OffsetY float64 `yaml:"offset_y" json:"offset_y"`
	Scale   float64 `yaml:"scale" json:"scale"`
}

// Validate rejects non-finite offsets and scales.
func (p Position) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"offset_x", p.OffsetX},
		{"offset_y", p.OffsetY},
		{"scale", p.Scale},
	} {
		if !Finite(f.v) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidPosition, f.name, f.v)
		}
	}
	return nil
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FitPosition is the starting position for a freshly loaded photo: zero
// offset at cover scale.
func FitPosition(bitmapWidth, bitmapHeight int, frame Rect) Position {
	return Position{
		Scale: AutoFitScale(float64(bitmapWidth), float64(bitmapHeight), frame.Width, frame.Height, Cover),
	}
}

// ZoomBounds returns the allowed scale interval [fit, fit*maxZoom].
func ZoomBounds(fit, maxZoom float64) (float64, float64) {
	if maxZoom < 1 {
		maxZoom = 1
	}
	return fit, fit * maxZoom
}

// ClampScale limits scale to [fit, fit*maxZoom].
func ClampScale(scale, fit, maxZoom float64) float64 {
	lo, hi := ZoomBounds(fit, maxZoom)
	if math.IsNaN(scale) || scale < lo {
		return lo
	}
	if scale > hi {
		return hi
	}
	return scale
}

// ClampOffset limits a centered offset so a bitmap drawn at p.Scale keeps
// covering the frame. Axes where the bitmap is smaller than the frame pin the
// offset to zero.
func ClampOffset(p Position, bitmapWidth, bitmapHeight int, frame Rect) Position {
	maxX := math.Max(0, (float64(bitmapWidth)*p.Scale-frame.Width)/2)
	maxY := math.Max(0, (float64(bitmapHeight)*p.Scale-frame.Height)/2)
	p.OffsetX = clamp(p.OffsetX, -maxX, maxX)
	p.OffsetY = clamp(p.OffsetY, -maxY, maxY)
	return p
}

// clamp treats NaN as zero before bounding it.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
