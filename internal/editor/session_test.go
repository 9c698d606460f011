package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ivlev/eventframe/internal/compositor"
	"github.com/ivlev/eventframe/internal/geometry"
	"github.com/ivlev/eventframe/internal/source"
	"github.com/ivlev/eventframe/internal/surface"
	"github.com/ivlev/eventframe/internal/template"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	gray  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func pngBytes(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(w, h, c)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// testDefinition is a square template whose frame is the middle quarter.
func testDefinition() *template.Definition {
	return &template.Definition{
		ID:          "test",
		Name:        "Test",
		Format:      template.Square,
		ImageURL:    "artwork.png",
		FrameX:      0.25,
		FrameY:      0.25,
		FrameWidth:  0.5,
		FrameHeight: 0.5,
	}
}

func newTestSession(t *testing.T, clampPan bool) *Session {
	t.Helper()
	preview, err := surface.NewPreview(360, 360, 1)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(Config{
		Template: testDefinition(),
		// Fully transparent artwork so the photo is visible everywhere.
		Artwork:    source.NewBitmap("artwork", image.NewRGBA(image.Rect(0, 0, 10, 10))),
		Preview:    preview,
		Compositor: compositor.New(nil, nil),
		ClampPan:   clampPan,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

// previewCenter samples the middle of the frame on the 360px preview.
func previewCenter(t *testing.T, s *Session) color.RGBA {
	t.Helper()
	px, err := s.Preview().Pixels()
	if err != nil {
		t.Fatal(err)
	}
	return px.RGBAAt(180, 180)
}

// gatedSource delivers its payload only once released and ignores
// cancellation, like a decode that cannot be interrupted.
type gatedSource struct {
	name    string
	data    []byte
	started chan struct{}
	release chan struct{}
}

func newGatedSource(name string, data []byte) *gatedSource {
	return &gatedSource{name: name, data: data, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) Name() string { return g.name }

func (g *gatedSource) Fetch(ctx context.Context) (source.Payload, error) {
	close(g.started)
	<-g.release
	return source.Payload{Data: g.data}, nil
}

func TestLoadPhotoResetsToCoverFit(t *testing.T) {
	s := newTestSession(t, false)
	if s.Paints() != 1 {
		t.Errorf("expected one initial paint, got %d", s.Paints())
	}

	applied, err := s.LoadPhoto(context.Background(), source.Bytes{Label: "photo", Data: pngBytes(t, 200, 100, red)})
	if err != nil || !applied {
		t.Fatalf("LoadPhoto: applied=%v err=%v", applied, err)
	}

	// Frame is 540x540 canvas units; a 200x100 photo covers it at 5.4.
	want := geometry.Position{Scale: 5.4}
	if got := s.Position(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if c := previewCenter(t, s); c != red {
		t.Errorf("expected red at frame center, got %v", c)
	}

	s.SetPosition(geometry.Position{OffsetX: 40, Scale: 8})
	if _, err := s.LoadPhoto(context.Background(), source.Bytes{Label: "again", Data: pngBytes(t, 100, 100, green)}); err != nil {
		t.Fatal(err)
	}
	if got := s.Position(); got != (geometry.Position{Scale: 5.4}) {
		t.Errorf("expected position reset for new photo, got %+v", got)
	}
}

func TestLoadPhotoFailureKeepsState(t *testing.T) {
	s := newTestSession(t, false)
	s.SetPhoto(source.NewBitmap("first", solidImage(100, 100, green)))
	before := s.Position()

	applied, err := s.LoadPhoto(context.Background(), source.Bytes{Label: "corrupt", Data: []byte("not an image")})
	var le *source.LoadError
	if applied || !errors.As(err, &le) {
		t.Fatalf("expected LoadError, got applied=%v err=%v", applied, err)
	}
	if s.Position() != before {
		t.Errorf("position changed after failed load")
	}
	if c := previewCenter(t, s); c != green {
		t.Errorf("expected previous photo to remain, got %v", c)
	}
}

func TestLatestPhotoWins(t *testing.T) {
	s := newTestSession(t, false)
	slowA := newGatedSource("a", pngBytes(t, 100, 100, red))

	type result struct {
		applied bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		applied, err := s.LoadPhoto(context.Background(), slowA)
		done <- result{applied, err}
	}()
	<-slowA.started

	applied, err := s.LoadPhoto(context.Background(), source.Bytes{Label: "b", Data: pngBytes(t, 100, 100, green)})
	if err != nil || !applied {
		t.Fatalf("load B: applied=%v err=%v", applied, err)
	}

	close(slowA.release)
	select {
	case r := <-done:
		if r.applied || r.err != nil {
			t.Errorf("stale load A should be discarded silently, got applied=%v err=%v", r.applied, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("load A never completed")
	}

	if c := previewCenter(t, s); c != green {
		t.Errorf("expected photo B on the preview, got %v", c)
	}
	if sc, _ := s.Scene(); sc.Photo.Name() != "b" {
		t.Errorf("expected scene photo b, got %s", sc.Photo.Name())
	}
}

func TestScaleClamping(t *testing.T) {
	s := newTestSession(t, false)
	if err := s.SetScale(2); !errors.Is(err, ErrNoPhoto) {
		t.Errorf("expected ErrNoPhoto, got %v", err)
	}
	s.SetPhoto(source.NewBitmap("photo", solidImage(200, 100, red)))

	lo, hi := s.ZoomBounds()
	if lo != 5.4 || math.Abs(hi-16.2) > 1e-9 {
		t.Fatalf("expected zoom bounds [5.4, 16.2], got [%v, %v]", lo, hi)
	}

	tests := []struct {
		in, want float64
	}{
		{1, lo},
		{lo, lo},
		{10, 10},
		{hi, hi},
		{100, hi},
		{-3, lo},
		{math.NaN(), lo},
	}
	for _, tt := range tests {
		s.SetScale(tt.in)
		if got := s.Position().Scale; got != tt.want {
			t.Errorf("SetScale(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestPanClamping(t *testing.T) {
	free := newTestSession(t, false)
	clamped := newTestSession(t, true)
	for _, s := range []*Session{free, clamped} {
		s.SetPhoto(source.NewBitmap("photo", solidImage(200, 100, red)))
		s.PanBy(1000, 1000)
	}

	if got := free.Position(); math.Abs(got.OffsetX-3000) > 1e-6 || math.Abs(got.OffsetY-3000) > 1e-6 {
		t.Errorf("unclamped pan should keep the full delta, got %+v", got)
	}
	// At 5.4 the photo is 1080x540 against a 540x540 frame.
	if got := clamped.Position(); got.OffsetX != 270 || got.OffsetY != 0 {
		t.Errorf("expected clamped offset (270,0), got %+v", got)
	}
}

func TestNonFinitePositionRejected(t *testing.T) {
	tests := []struct {
		name string
		pos  geometry.Position
	}{
		{"NaN x", geometry.Position{OffsetX: math.NaN(), Scale: 6}},
		{"+Inf y", geometry.Position{OffsetY: math.Inf(1), Scale: 6}},
		{"-Inf x", geometry.Position{OffsetX: math.Inf(-1), Scale: 6}},
	}

	for _, clampPan := range []bool{false, true} {
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s clamp=%v", tt.name, clampPan), func(t *testing.T) {
				s := newTestSession(t, clampPan)
				s.SetPhoto(source.NewBitmap("photo", solidImage(200, 100, red)))
				before := s.Position()

				if err := s.SetPosition(tt.pos); !errors.Is(err, geometry.ErrInvalidPosition) {
					t.Fatalf("expected ErrInvalidPosition, got %v", err)
				}
				if err := s.PanBy(tt.pos.OffsetX, tt.pos.OffsetY); !errors.Is(err, geometry.ErrInvalidPosition) {
					t.Fatalf("expected ErrInvalidPosition from PanBy, got %v", err)
				}
				if got := s.Position(); got != before {
					t.Errorf("position changed to %+v", got)
				}
				if err := s.Repaint(); err != nil {
					t.Fatal(err)
				}
				if c := previewCenter(t, s); c != red {
					t.Errorf("expected photo in the frame, got %v", c)
				}
			})
		}
	}
}

func TestPlaceholderShownUntilPhoto(t *testing.T) {
	def := testDefinition()
	def.PlaceholderURL = "silhouette.png"
	x, y := 0.0, 0.0
	def.PlaceholderX, def.PlaceholderY = &x, &y

	preview, _ := surface.NewPreview(360, 360, 1)
	s, err := NewSession(Config{
		Template:    def,
		Artwork:     source.NewBitmap("artwork", image.NewRGBA(image.Rect(0, 0, 10, 10))),
		Placeholder: source.NewBitmap("silhouette", solidImage(100, 100, gray)),
		Preview:     preview,
	})
	if err != nil {
		t.Fatal(err)
	}

	scene, ok := s.Scene()
	if !ok || scene.Anchor != compositor.OriginRelative || scene.Photo.Name() != "silhouette" {
		t.Fatalf("expected origin-relative placeholder scene, got %+v", scene)
	}
	if c := previewCenter(t, s); c != gray {
		t.Errorf("expected placeholder at frame center, got %v", c)
	}

	s.SetPhoto(source.NewBitmap("photo", solidImage(100, 100, red)))
	scene, _ = s.Scene()
	if scene.Anchor != compositor.Centered || scene.Photo.Name() != "photo" {
		t.Errorf("expected centered photo scene, got anchor %v", scene.Anchor)
	}
}

func TestOpenLoadsArtworkAndPlaceholder(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "artwork.png"), pngBytes(t, 20, 20, color.RGBA{}), 0644)
	os.WriteFile(filepath.Join(dir, "silhouette.png"), pngBytes(t, 10, 10, gray), 0644)

	def := testDefinition()
	def.Dir = dir
	def.PlaceholderURL = "silhouette.png"

	preview, _ := surface.NewPreview(360, 360, 1)
	s, err := Open(context.Background(), def, template.Resolver{}, Config{Preview: preview})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
	if _, ok := s.Scene(); !ok {
		t.Error("expected placeholder scene after Open")
	}

	def.PlaceholderURL = "missing.png"
	if _, err := Open(context.Background(), def, template.Resolver{}, Config{Preview: preview}); err == nil {
		t.Error("expected Open to fail when the placeholder is missing")
	}
}
