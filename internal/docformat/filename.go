package docformat

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFilename replaces everything outside [A-Za-z0-9._-] with an
// underscore and trims leading and trailing underscores.
func SanitizeFilename(name string) string {
	return strings.Trim(unsafeFilenameChars.ReplaceAllString(name, "_"), "_")
}

// StoredName builds the on-disk name for an upload from a fresh random
// token and the normalized extension. User-supplied names never contribute.
func StoredName(f Format) string {
	return SanitizeFilename("doc_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "." + f.Ext)
}
