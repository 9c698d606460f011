package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ivlev/eventframe/internal/compositor"
	"github.com/ivlev/eventframe/internal/export"
	"github.com/ivlev/eventframe/internal/source"
	"github.com/ivlev/eventframe/internal/template"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	navy = color.RGBA{B: 128, A: 255}
)

func pngOf(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// newTestServer writes two square templates: "summit" with a navy frame
// around a transparent window and a share url, and "plain" without one.
func newTestServer(t *testing.T, extra ...*template.Definition) (*Server, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	art := solidImage(1080, 1080, navy)
	draw.Draw(art, image.Rect(270, 270, 810, 810), image.Transparent, image.Point{}, draw.Src)
	os.WriteFile(filepath.Join(dir, "window.png"), pngOf(t, art), 0644)

	defs := []*template.Definition{
		{ID: "summit", Name: "Summit Square", Format: template.Square, ImageURL: "window.png",
			FrameX: 0.25, FrameY: 0.25, FrameWidth: 0.5, FrameHeight: 0.5,
			ShareURL: "https://events.example.com/summit", Caption: "See you there"},
		{ID: "plain", Name: "Plain", Format: template.Square, ImageURL: "window.png",
			FrameX: 0, FrameY: 0, FrameWidth: 1, FrameHeight: 1},
	}
	for _, d := range append(defs, extra...) {
		if err := template.Write(d, filepath.Join(dir, d.ID+".yaml")); err != nil {
			t.Fatal(err)
		}
	}

	srv := NewServer(
		template.NewStore(),
		source.NewLoader(nil, 0),
		export.New(compositor.New(nil, nil), export.Options{}, nil),
		Options{TemplatesDir: dir, AppOrigin: "https://app.example.com"},
		nil,
	)
	if _, err := srv.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	return srv, srv.Handler()
}

func multipartBody(t *testing.T, photo []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if photo != nil {
		fw, err := w.CreateFormFile("photo", "me.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(photo)
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()
	return &body, w.FormDataContentType()
}

func postComposite(t *testing.T, h http.Handler, id string, photo []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, photo, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/templates/"+id+"/composite", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestMetadataRoutes(t *testing.T) {
	_, h := newTestServer(t)

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/api/health", http.StatusOK, `"status":"ok"`},
		{"/api/formats", http.StatusOK, `"story"`},
		{"/api/templates", http.StatusOK, `"count":2`},
		{"/api/templates/summit", http.StatusOK, `"width":1080`},
		{"/api/templates/missing", http.StatusNotFound, "template not found"},
	}
	for _, tt := range tests {
		rec := get(h, tt.path)
		if rec.Code != tt.status || !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("GET %s: expected %d containing %s, got %d %s", tt.path, tt.status, tt.want, rec.Code, rec.Body.String())
		}
	}

	var formats struct {
		Formats []formatInfo `json:"formats"`
	}
	json.Unmarshal(get(h, "/api/formats").Body.Bytes(), &formats)
	if len(formats.Formats) != 4 {
		t.Errorf("expected 4 formats, got %d", len(formats.Formats))
	}
}

func TestComposite(t *testing.T) {
	_, h := newTestServer(t)
	photo := pngOf(t, solidImage(200, 100, red))

	rec := postComposite(t, h, "summit", photo, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "summit-square.png") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 1080, 1080) {
		t.Fatalf("expected 1080x1080, got %v", img.Bounds())
	}
	if got := color.RGBAModel.Convert(img.At(540, 540)); got != red {
		t.Errorf("expected photo in the window, got %v", got)
	}
	if got := color.RGBAModel.Convert(img.At(20, 20)); got != navy {
		t.Errorf("expected artwork outside the window, got %v", got)
	}
}

func TestCompositeJPEG(t *testing.T) {
	_, h := newTestServer(t)
	rec := postComposite(t, h, "summit", pngOf(t, solidImage(50, 50, red)), map[string]string{
		"encoding": "jpg",
		"offset_x": "100",
		"scale":    "20",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".jpg") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
}

func TestCompositeErrors(t *testing.T) {
	_, h := newTestServer(t)
	photo := pngOf(t, solidImage(20, 20, red))

	tests := []struct {
		name   string
		id     string
		photo  []byte
		fields map[string]string
		status int
	}{
		{"unknown template", "nope", photo, nil, http.StatusNotFound},
		{"missing photo", "summit", nil, nil, http.StatusBadRequest},
		{"corrupt photo", "summit", []byte("garbage"), nil, http.StatusUnprocessableEntity},
		{"bad scale", "summit", photo, map[string]string{"scale": "big"}, http.StatusBadRequest},
		{"bad encoding", "summit", photo, map[string]string{"encoding": "gif"}, http.StatusBadRequest},
		{"NaN offset", "summit", photo, map[string]string{"offset_x": "NaN"}, http.StatusBadRequest},
		{"infinite offset", "summit", photo, map[string]string{"offset_y": "Inf"}, http.StatusBadRequest},
		{"negative infinite offset", "summit", photo, map[string]string{"offset_x": "-Inf"}, http.StatusBadRequest},
		{"infinite scale", "summit", photo, map[string]string{"scale": "+Inf"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postComposite(t, h, tt.id, tt.photo, tt.fields)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCompositeUploadTooLarge(t *testing.T) {
	srv, h := newTestServer(t)

	// Far but finite offsets are allowed; the clip keeps them harmless.
	rec := postComposite(t, h, "summit", pngOf(t, solidImage(20, 20, red)), map[string]string{"offset_x": "1e308"})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a finite offset, got %d: %s", rec.Code, rec.Body.String())
	}

	srv.opts.MaxUploadBytes = 1024
	rec = postComposite(t, h, "summit", bytes.Repeat([]byte{0xff}, 4096), nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCompositeTaintedArtwork(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Access-Control-Allow-Origin: pixels are not readable.
		w.Write(pngOf(t, solidImage(10, 10, navy)))
	}))
	defer remote.Close()

	_, h := newTestServer(t, &template.Definition{
		ID: "remote", Name: "Remote", Format: template.Square, ImageURL: remote.URL + "/art.png",
		FrameX: 0.1, FrameY: 0.1, FrameWidth: 0.5, FrameHeight: 0.5,
	})
	rec := postComposite(t, h, "remote", pngOf(t, solidImage(20, 20, red)), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for tainted export, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestQR(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(h, "/api/templates/summit/qr?size=300")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cfg, err := png.DecodeConfig(rec.Body)
	if err != nil || cfg.Width != 300 {
		t.Errorf("expected 300px PNG, got %+v, %v", cfg, err)
	}

	if rec := get(h, "/api/templates/plain/qr"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without share url, got %d", rec.Code)
	}
	if rec := get(h, "/api/templates/summit/qr?size=-4"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad size, got %d", rec.Code)
	}
}

func TestReload(t *testing.T) {
	srv, h := newTestServer(t)
	os.Remove(filepath.Join(srv.opts.TemplatesDir, "plain.yaml"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/templates/reload", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("unexpected reload response %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(h, "/api/templates/plain"); rec.Code != http.StatusNotFound {
		t.Errorf("expected removed template to be gone, got %d", rec.Code)
	}
}
