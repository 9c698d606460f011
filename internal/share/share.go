// Package share pairs an exported composite with what a social composer
// needs: the raw bitmap for the clipboard, the file for upload and the
// caption text. It also renders the QR code organizers print on posters.
package share

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/ivlev/eventframe/internal/compositor"
	"github.com/ivlev/eventframe/internal/export"
	"github.com/ivlev/eventframe/internal/template"
)

// DefaultQRSize is the edge length of poster QR codes in pixels.
const DefaultQRSize = 512

// Bundle is everything a share action hands to the clipboard and the
// posting provider. Bitmap and File come from one render.
type Bundle struct {
	Bitmap      *image.RGBA
	File        []byte
	FileName    string
	ContentType string
	Caption     string
}

// NewBundle wraps an export result with its caption.
func NewBundle(res *export.Result, caption string) *Bundle {
	return &Bundle{
		Bitmap:      res.Bitmap,
		File:        res.File,
		FileName:    res.FileName,
		ContentType: res.ContentType(),
		Caption:     caption,
	}
}

// Prepare exports scene once and bundles it with the template's caption.
func Prepare(e *export.Exporter, scene compositor.Scene, def *template.Definition) (*Bundle, error) {
	res, err := e.Export(scene, def.Name)
	if err != nil {
		return nil, err
	}
	return NewBundle(res, def.Caption), nil
}

// EventQR returns a PNG QR code linking to an event landing page.
func EventQR(link string, size int) ([]byte, error) {
	if link == "" {
		return nil, errors.New("share url is empty")
	}
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid share url: %q", link)
	}
	if size <= 0 {
		size = DefaultQRSize
	}

	pngBytes, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	if _, err := png.DecodeConfig(bytes.NewReader(pngBytes)); err != nil {
		return nil, err
	}
	return pngBytes, nil
}

// EventQRImage is EventQR decoded, for drawing onto posters.
func EventQRImage(link string, size int) (image.Image, error) {
	b, err := EventQR(link, size)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(b))
}
