// Package source acquires the raster images a composition is built from:
// participant photos, template artwork and placeholders.
package source

import (
	"context"
	"image"
	"os"
)

// Source produces the encoded bytes of one image.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string
	// Fetch returns the encoded image. It must honour ctx cancellation.
	Fetch(ctx context.Context) (Payload, error)
}

// Payload is an encoded image plus how it was obtained.
type Payload struct {
	Data []byte
	// Tainted marks a cross-origin payload whose origin did not grant pixel
	// read access. Bitmaps decoded from it taint any surface they touch.
	Tainted bool
}

// Bitmap is a decoded, immutable raster.
type Bitmap struct {
	img     image.Image
	name    string
	tainted bool
}

// NewBitmap wraps an already decoded image as a readable bitmap.
func NewBitmap(name string, img image.Image) *Bitmap {
	return &Bitmap{img: img, name: name}
}

func (b *Bitmap) Image() image.Image      { return b.img }
func (b *Bitmap) Name() string            { return b.name }
func (b *Bitmap) Bounds() image.Rectangle { return b.img.Bounds() }
func (b *Bitmap) Width() int              { return b.img.Bounds().Dx() }
func (b *Bitmap) Height() int             { return b.img.Bounds().Dy() }

// Tainted reports whether pixels of b may not be read back after drawing.
func (b *Bitmap) Tainted() bool { return b.tainted }

// File reads an image from the local filesystem.
type File struct {
	Path string
}

func (f File) Name() string { return f.Path }

func (f File) Fetch(ctx context.Context) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Data: data}, nil
}

// Bytes is an image already in memory, e.g. an upload from a file picker or
// a camera capture.
type Bytes struct {
	Label string
	Data  []byte
}

func (b Bytes) Name() string { return b.Label }

func (b Bytes) Fetch(ctx context.Context) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, err
	}
	return Payload{Data: b.Data}, nil
}
