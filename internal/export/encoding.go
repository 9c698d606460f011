package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
)

// Encoding is an output file format.
type Encoding string

const (
	PNG  Encoding = "png"
	JPEG Encoding = "jpeg"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 92

// ParseEncoding accepts "png", "jpeg" and "jpg", case-insensitively. An
// empty name means PNG.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "png", "":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	}
	return "", fmt.Errorf("unsupported encoding: %s", name)
}

func (e Encoding) Ext() string {
	if e == JPEG {
		return ".jpg"
	}
	return ".png"
}

func (e Encoding) ContentType() string {
	if e == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

var pngEncoder = png.Encoder{CompressionLevel: png.DefaultCompression}

func encodeImage(w io.Writer, img *image.RGBA, enc Encoding, quality int) error {
	switch enc {
	case PNG:
		return pngEncoder.Encode(w, img)
	case JPEG:
		if quality < 1 {
			quality = 1
		}
		if quality > 100 {
			quality = 100
		}
		return jpeg.Encode(w, flatten(img, color.White), &jpeg.Options{Quality: quality})
	}
	return fmt.Errorf("unsupported encoding: %s", enc)
}

// flatten composites img over an opaque background. JPEG has no alpha.
func flatten(img *image.RGBA, bg color.Color) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	draw.Draw(out, out.Rect, image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out, out.Rect, img, img.Rect.Min, draw.Over)
	return out
}
