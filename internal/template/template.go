// Package template reads event template definitions: the artwork, the
// normalized photo frame and the optional placeholder shown before a
// participant picks a photo.
package template

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivlev/eventframe/internal/geometry"
	"github.com/ivlev/eventframe/internal/source"
)

// Format is a supported output format. Each maps to a fixed canvas size.
type Format string

const (
	Square    Format = "square"
	Story     Format = "story"
	Landscape Format = "landscape"
	Portrait  Format = "portrait"
)

var canvases = map[Format]geometry.Dimensions{
	Square:    {Width: 1080, Height: 1080},
	Story:     {Width: 1080, Height: 1920},
	Landscape: {Width: 1200, Height: 630},
	Portrait:  {Width: 1080, Height: 1350},
}

// Dimensions returns the canvas size for f.
func (f Format) Dimensions() (geometry.Dimensions, bool) {
	d, ok := canvases[f]
	return d, ok
}

// Formats lists the supported formats in a stable order.
func Formats() []Format {
	out := make([]Format, 0, len(canvases))
	for f := range canvases {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Definition is one template as authored by an organizer.
type Definition struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Format  Format `yaml:"format"`
	Caption string `yaml:"caption,omitempty"`
	// ShareURL is the event landing page encoded in the poster QR.
	ShareURL string `yaml:"share_url,omitempty"`

	ImageURL    string  `yaml:"image_url"`
	FrameX      float64 `yaml:"photo_frame_x"`
	FrameY      float64 `yaml:"photo_frame_y"`
	FrameWidth  float64 `yaml:"photo_frame_width"`
	FrameHeight float64 `yaml:"photo_frame_height"`

	PlaceholderURL   string   `yaml:"placeholder_image_url,omitempty"`
	PlaceholderScale *float64 `yaml:"placeholder_scale,omitempty"`
	PlaceholderX     *float64 `yaml:"placeholder_x,omitempty"`
	PlaceholderY     *float64 `yaml:"placeholder_y,omitempty"`

	// Dir resolves relative image paths. Set by Read.
	Dir string `yaml:"-"`
}

// Canvas is the output resolution of the template's format.
func (d *Definition) Canvas() geometry.Dimensions {
	c, _ := d.Format.Dimensions()
	return c
}

func (d *Definition) Frame() geometry.FrameRect {
	return geometry.FrameRect{X: d.FrameX, Y: d.FrameY, Width: d.FrameWidth, Height: d.FrameHeight}
}

func (d *Definition) HasPlaceholder() bool { return d.PlaceholderURL != "" }

// Validate checks the definition can be rendered.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("template id is required")
	}
	if _, ok := d.Format.Dimensions(); !ok {
		return fmt.Errorf("template %s: unknown format %q", d.ID, d.Format)
	}
	if d.ImageURL == "" {
		return fmt.Errorf("template %s: image_url is required", d.ID)
	}
	if err := d.Frame().Validate(); err != nil {
		return fmt.Errorf("template %s: %w", d.ID, err)
	}
	if d.PlaceholderScale != nil && *d.PlaceholderScale <= 0 {
		return fmt.Errorf("template %s: placeholder_scale must be positive", d.ID)
	}
	return nil
}

// PlaceholderPosition places a placeholder bitmap of bw x bh pixels inside
// frame (absolute canvas units). Offsets are fractions of the frame size,
// measured from its top-left corner; without a scale the bitmap is
// cover-fitted.
func (d *Definition) PlaceholderPosition(bw, bh int, frame geometry.Rect) geometry.Position {
	p := geometry.FitPosition(bw, bh, frame)
	if d.PlaceholderScale != nil {
		p.Scale = *d.PlaceholderScale
	}
	if d.PlaceholderX != nil {
		p.OffsetX = *d.PlaceholderX * frame.Width
	}
	if d.PlaceholderY != nil {
		p.OffsetY = *d.PlaceholderY * frame.Height
	}
	return p
}

// Resolver turns image references into sources. Remote references are
// requested with the app origin so their pixels stay readable when the host
// allows it.
type Resolver struct {
	Origin string
	Client *http.Client
}

func (r Resolver) Artwork(d *Definition) source.Source {
	return r.resolve(d.ImageURL, d.Dir)
}

func (r Resolver) Placeholder(d *Definition) source.Source {
	if !d.HasPlaceholder() {
		return nil
	}
	return r.resolve(d.PlaceholderURL, d.Dir)
}

func (r Resolver) resolve(ref, dir string) source.Source {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return source.URL{Address: ref, Origin: r.Origin, Mode: source.Anonymous, Client: r.Client}
	}
	ref = strings.TrimPrefix(ref, "file://")
	if !filepath.IsAbs(ref) && dir != "" {
		ref = filepath.Join(dir, ref)
	}
	return source.File{Path: ref}
}
