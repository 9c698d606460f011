package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultDPI rasterises PDF artwork at print resolution.
const DefaultDPI = 300

// LoadError reports an unreachable or undecodable source. Retrying means
// picking the file again.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("could not load image %q: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader fetches and decodes sources into bitmaps.
type Loader struct {
	DPI    int
	logger *slog.Logger
}

// NewLoader returns a Loader. A nil logger discards output.
func NewLoader(logger *slog.Logger, dpi int) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Loader{DPI: dpi, logger: logger}
}

// LoadImage fetches and decodes one source. Failures come back as *LoadError.
func (l *Loader) LoadImage(ctx context.Context, src Source) (*Bitmap, error) {
	start := time.Now()

	payload, err := src.Fetch(ctx)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	img, err := decode(payload.Data, l.DPI)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	// A result that arrives after cancellation belongs to a superseded request.
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}

	b := img.Bounds()
	l.logger.Debug("image loaded",
		"source", src.Name(),
		"width", b.Dx(),
		"height", b.Dy(),
		"tainted", payload.Tainted,
		"elapsed", time.Since(start))

	return &Bitmap{img: img, name: src.Name(), tainted: payload.Tainted}, nil
}

// LoadImages loads every source concurrently. It succeeds only if all of them
// do: the first failure cancels the rest and is returned.
func (l *Loader) LoadImages(ctx context.Context, srcs []Source) ([]*Bitmap, error) {
	out := make([]*Bitmap, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		g.Go(func() error {
			bmp, err := l.LoadImage(gctx, src)
			if err != nil {
				return err
			}
			out[i] = bmp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.logger.Warn("image set failed to load", "count", len(srcs), "error", err)
		return nil, err
	}
	return out, nil
}
