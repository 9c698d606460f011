// Package export renders full-resolution composites for download and share.
//
// Every export allocates its own surface at the template's canvas size and
// renders once. The encoded file and the raw bitmap in a Result come from
// that single render, whatever size the preview was.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/ivlev/eventframe/internal/compositor"
	"github.com/ivlev/eventframe/internal/surface"
	"github.com/ivlev/eventframe/internal/system"
)

// EncodingError reports a composite that could not be serialized: a tainted
// surface, a zero-sized canvas or an encoder failure. Retrying after fixing
// the cause is safe.
type EncodingError struct {
	Format Encoding
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("export %s failed: %v", e.Format, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Result is one export.
type Result struct {
	// File is the encoded image.
	File []byte
	// Bitmap is the rendered pixels, for clipboard placement. It belongs to
	// the caller.
	Bitmap   *image.RGBA
	FileName string
	Encoding Encoding
}

// ContentType is the MIME type of File.
func (r *Result) ContentType() string { return r.Encoding.ContentType() }

// Options configures an Exporter.
type Options struct {
	Encoding Encoding
	// JPEGQuality is 1-100; zero means DefaultJPEGQuality.
	JPEGQuality int
}

// Exporter renders scenes at output resolution.
type Exporter struct {
	comp    *compositor.Compositor
	enc     Encoding
	quality int
	logger  *slog.Logger
}

// New returns an Exporter. A nil compositor uses CatmullRom, the highest
// quality interpolator; a nil logger discards output.
func New(comp *compositor.Compositor, opts Options, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if comp == nil {
		comp = compositor.New(compositor.HighQuality, logger)
	}
	if opts.Encoding == "" {
		opts.Encoding = PNG
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	return &Exporter{comp: comp, enc: opts.Encoding, quality: opts.JPEGQuality, logger: logger}
}

// Encoding is the exporter's default encoding.
func (e *Exporter) Encoding() Encoding { return e.enc }

// Export renders scene and returns both the encoded file and the bitmap.
// name seeds the file name.
func (e *Exporter) Export(scene compositor.Scene, name string) (*Result, error) {
	return e.ExportAs(scene, name, e.enc)
}

// ExportAs is Export with an explicit encoding.
func (e *Exporter) ExportAs(scene compositor.Scene, name string, enc Encoding) (*Result, error) {
	enc, s, err := e.render(scene, enc)
	if err != nil {
		return nil, err
	}
	img, err := s.Detach()
	if err != nil {
		s.Release()
		return nil, &EncodingError{Format: enc, Err: err}
	}

	file, err := e.encode(img, enc)
	if err != nil {
		return nil, err
	}
	return &Result{File: file, Bitmap: img, FileName: FileName(name, enc), Encoding: enc}, nil
}

// ExportFile renders and encodes scene without keeping the bitmap. The
// render buffer goes back to the pool.
func (e *Exporter) ExportFile(scene compositor.Scene, name string, enc Encoding) ([]byte, string, error) {
	enc, s, err := e.render(scene, enc)
	if err != nil {
		return nil, "", err
	}
	defer s.Release()

	img, err := s.Pixels()
	if err != nil {
		return nil, "", &EncodingError{Format: enc, Err: err}
	}
	file, err := e.encode(img, enc)
	if err != nil {
		return nil, "", err
	}
	return file, FileName(name, enc), nil
}

// render draws scene on a fresh export surface and normalizes enc.
func (e *Exporter) render(scene compositor.Scene, enc Encoding) (Encoding, *surface.Surface, error) {
	parsed, err := ParseEncoding(string(enc))
	if err != nil {
		return enc, nil, &EncodingError{Format: enc, Err: err}
	}
	enc = parsed
	if scene.Canvas.Empty() {
		return enc, nil, &EncodingError{Format: enc, Err: fmt.Errorf("%w: canvas %s", surface.ErrEmpty, scene.Canvas)}
	}
	start := time.Now()

	s, err := surface.NewExport(scene.Canvas)
	if err != nil {
		return enc, nil, err
	}
	if err := e.comp.Render(s, scene); err != nil {
		s.Release()
		return enc, nil, err
	}

	e.logger.Debug("export rendered",
		"canvas", scene.Canvas.String(),
		"encoding", string(enc),
		"tainted", s.Tainted(),
		"buffers_reused", system.CanvasPoolStats().Reused,
		"elapsed", time.Since(start))
	return enc, s, nil
}

func (e *Exporter) encode(img *image.RGBA, enc Encoding) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeImage(&buf, img, enc, e.quality); err != nil {
		return nil, &EncodingError{Format: enc, Err: err}
	}
	if buf.Len() == 0 {
		return nil, &EncodingError{Format: enc, Err: errors.New("encoder produced no data")}
	}
	return buf.Bytes(), nil
}
