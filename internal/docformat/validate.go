package docformat

import (
	"archive/zip"
	"bytes"
)

const pdfTrailerWindow = 2048

var (
	pdfMagic  = []byte("%PDF")
	pdfEOF    = []byte("%%EOF")
	jpegMagic = []byte{0xFF, 0xD8}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
	zipMagic  = []byte("PK")
)

// Validate runs the structural checks for mimeType. It is intentionally
// shallow: a PDF with a valid header and trailer but a broken body passes.
func Validate(buf []byte, mimeType string) error {
	var ok bool
	switch mimeType {
	case MIMEPDF:
		ok = validPDF(buf)
	case MIMEJPEG:
		ok = bytes.HasPrefix(buf, jpegMagic)
	case MIMEPNG:
		ok = bytes.HasPrefix(buf, pngMagic)
	case MIMEWEBP:
		ok = len(buf) >= 12 && bytes.Equal(buf[0:4], riffMagic) && bytes.Equal(buf[8:12], webpMagic)
	case MIMEDOCX, MIMEZIP:
		ok = validDocx(buf)
	}
	if !ok {
		return ErrRejected
	}
	return nil
}

func validPDF(buf []byte) bool {
	if !bytes.HasPrefix(buf, pdfMagic) {
		return false
	}
	tail := buf
	if len(tail) > pdfTrailerWindow {
		tail = tail[len(tail)-pdfTrailerWindow:]
	}
	return bytes.Contains(tail, pdfEOF)
}

func validDocx(buf []byte) bool {
	if !bytes.HasPrefix(buf, zipMagic) {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return false
	}
	var contentTypes, document bool
	for _, f := range zr.File {
		switch f.Name {
		case "[Content_Types].xml":
			contentTypes = true
		case "word/document.xml":
			document = true
		}
	}
	return contentTypes && document
}
