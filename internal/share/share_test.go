package share

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/ivlev/eventframe/internal/compositor"
	"github.com/ivlev/eventframe/internal/export"
	"github.com/ivlev/eventframe/internal/geometry"
	"github.com/ivlev/eventframe/internal/source"
	"github.com/ivlev/eventframe/internal/template"
)

func TestPrepareBundle(t *testing.T) {
	def := &template.Definition{
		ID:          "launch",
		Name:        "Product Launch",
		Format:      template.Landscape,
		Caption:     "I'm at the launch! #launch2026",
		ImageURL:    "art.png",
		FrameX:      0.5,
		FrameY:      0,
		FrameWidth:  0.5,
		FrameHeight: 1,
	}
	photo := image.NewRGBA(image.Rect(0, 0, 60, 60))
	draw.Draw(photo, photo.Rect, image.NewUniform(color.RGBA{G: 200, A: 255}), image.Point{}, draw.Src)

	canvas := def.Canvas()
	scene := compositor.Scene{
		Photo:    source.NewBitmap("photo", photo),
		Template: source.NewBitmap("art", image.NewRGBA(image.Rect(0, 0, 12, 6))),
		Frame:    def.Frame(),
		Position: geometry.FitPosition(60, 60, geometry.FrameToAbsolute(def.Frame(), canvas)),
		Canvas:   canvas,
	}

	b, err := Prepare(export.New(compositor.New(nil, nil), export.Options{}, nil), scene, def)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if b.Caption != def.Caption {
		t.Errorf("expected caption %q, got %q", def.Caption, b.Caption)
	}
	if b.FileName != "product-launch.png" || b.ContentType != "image/png" {
		t.Errorf("unexpected file %s (%s)", b.FileName, b.ContentType)
	}
	if b.Bitmap.Bounds() != image.Rect(0, 0, 1200, 630) {
		t.Errorf("expected 1200x630 bitmap, got %v", b.Bitmap.Bounds())
	}
	if len(b.File) == 0 {
		t.Error("expected encoded file")
	}
}

func TestEventQR(t *testing.T) {
	img, err := EventQRImage("https://events.example.com/summit-2026", 256)
	if err != nil {
		t.Fatalf("EventQRImage failed: %v", err)
	}
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 256 {
		t.Errorf("expected 256x256, got %v", img.Bounds())
	}

	b, err := EventQR("https://events.example.com/summit-2026", 0)
	if err != nil || len(b) == 0 {
		t.Errorf("expected default-size QR, got %d bytes, %v", len(b), err)
	}

	for _, bad := range []string{"", "not a url", "/relative/path"} {
		if _, err := EventQR(bad, 128); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
