package docformat

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format is the trusted identity of an upload.
type Format struct {
	MIME string
	// Ext is the normalized extension without the dot ("jpeg" becomes "jpg").
	Ext string
}

// Sniff derives the content type from buf and checks it against the
// allow-list for the extension of filename. Client-declared content types
// are never consulted.
func Sniff(buf []byte, filename string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	accepted, ok := allowed[ext]
	if !ok {
		return Format{}, ErrRejected
	}

	detected := DetectMIME(buf)
	if !slices.Contains(accepted, detected) {
		return Format{}, ErrRejected
	}

	if ext == "jpeg" {
		ext = "jpg"
	}
	return Format{MIME: detected, Ext: ext}, nil
}

// DetectMIME returns the bare media type of buf (parameters stripped).
func DetectMIME(buf []byte) string {
	mt, _, _ := strings.Cut(mimetype.Detect(buf).String(), ";")
	return strings.TrimSpace(mt)
}
