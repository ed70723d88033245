// Package docformat decides what an uploaded file really is and rejects
// forged or corrupt content before it reaches storage.
//
// Every rejection is the same ErrRejected value so callers cannot tell which
// check failed; the only signal a client gets is "invalid document".
package docformat

import "errors"

// MaxUploadSize is the upload ceiling, checked before any content inspection.
const MaxUploadSize = 10 << 20

// MIME types accepted by the pipeline.
const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWEBP = "image/webp"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEZIP  = "application/zip"
)

var (
	// ErrRejected is returned for every sniffing or structural validation failure.
	ErrRejected = errors.New("invalid document")
	// ErrTooLarge is returned when the content exceeds MaxUploadSize.
	ErrTooLarge = errors.New("file too large")
)

// allowed maps a lower-cased extension to the content types it may carry.
var allowed = map[string][]string{
	"pdf":  {MIMEPDF},
	"jpg":  {MIMEJPEG},
	"jpeg": {MIMEJPEG},
	"png":  {MIMEPNG},
	"webp": {MIMEWEBP},
	"docx": {MIMEDOCX, MIMEZIP},
}

// IsDocx reports whether a sniffed type is one of the DOCX container types.
func IsDocx(mimeType string) bool {
	return mimeType == MIMEDOCX || mimeType == MIMEZIP
}

// IsRasterImage reports whether a sniffed type is an image the rasterizer understands.
func IsRasterImage(mimeType string) bool {
	switch mimeType {
	case MIMEJPEG, MIMEPNG, MIMEWEBP:
		return true
	}
	return false
}

// CheckSize enforces MaxUploadSize.
func CheckSize(n int64) error {
	if n > MaxUploadSize {
		return ErrTooLarge
	}
	return nil
}
