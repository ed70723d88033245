// Package raster turns raster images, and the images embedded in DOCX
// containers, into JPEG pages ready for PDF assembly.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"archivia/internal/docformat"
)

const (
	jpegQuality = 90
	maxPixels   = 50_000_000
)

var (
	ErrUnsupported = errors.New("unsupported image type")
	ErrUnreadable  = errors.New("image dimensions unreadable")
	ErrDecode      = errors.New("image decode failed")
)

// Page is one JPEG-encoded page and its pixel size.
type Page struct {
	JPEG   []byte
	Width  int
	Height int
}

// Rasterize converts src of the given sniffed type into a JPEG page.
// JPEG input is passed through untouched. PNG and WEBP are flattened onto
// white (JPEG has no alpha) and re-encoded at quality 90.
func Rasterize(src []byte, mimeType string) (Page, error) {
	if !docformat.IsRasterImage(mimeType) {
		return Page{}, ErrUnsupported
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return Page{}, ErrUnreadable
	}
	if mimeType == docformat.MIMEJPEG {
		return Page{JPEG: src, Width: cfg.Width, Height: cfg.Height}, nil
	}
	// only inputs that get decoded are bounded
	if cfg.Width*cfg.Height > maxPixels {
		return Page{}, fmt.Errorf("%w: %dx%d exceeds pixel limit", ErrDecode, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return flatten(img)
}

func flatten(img image.Image) (Page, error) {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Page{JPEG: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}
