package raster

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"archivia/internal/docformat"
)

const (
	mediaPrefix   = "word/media/"
	maxMediaBytes = 32 << 20
)

// ErrNoImages is returned when a DOCX holds no embedded JPEG, PNG or WEBP media.
var ErrNoImages = errors.New("no raster images in document")

// DocxPages rasterizes every JPEG, PNG or WEBP stored under word/media/ in
// container order, one page per image. Entries of other types are skipped;
// a qualifying image that fails to rasterize fails the whole call.
func DocxPages(src []byte) ([]Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	var pages []Page
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, mediaPrefix) || f.FileInfo().IsDir() {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		mt := docformat.DetectMIME(data)
		if !docformat.IsRasterImage(mt) {
			continue
		}
		page, err := Rasterize(data, mt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		pages = append(pages, page)
	}

	if len(pages) == 0 {
		return nil, ErrNoImages
	}
	return pages, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrDecode, f.Name, maxMediaBytes)
	}
	return data, nil
}
