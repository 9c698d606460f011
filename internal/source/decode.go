package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var pdfMagic = []byte("%PDF-")

var errEmptyPayload = errors.New("empty image data")

// decode turns an encoded payload into an image. PDFs are rasterised from
// their first page; everything else goes through the registered codecs with
// EXIF orientation applied, so camera photos come out upright.
func decode(data []byte, dpi int) (image.Image, error) {
	if len(data) == 0 {
		return nil, errEmptyPayload
	}
	if bytes.HasPrefix(data, pdfMagic) {
		return rasterizePDF(data, dpi)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decoded image has no pixels")
	}
	return img, nil
}

func rasterizePDF(data []byte, dpi int) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	img, err := doc.ImageDPI(0, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render pdf page: %w", err)
	}
	return img, nil
}
