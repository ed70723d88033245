// Package storage holds the byte store behind uploaded documents. Keys are
// slash-separated paths relative to the store root, e.g. "2024/doc_ab12.pdf".
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrExists     = errors.New("object already exists")
	ErrInvalidKey = errors.New("invalid object key")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known, or -1.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is implemented by the local upload directory and by S3-compatible buckets.
type Storage interface {
	// Put writes a new object. Existing keys are never overwritten.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get returns the object content as a stream; the caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
	// Ping checks that the store is reachable and writable.
	Ping(ctx context.Context) error
}

// CleanKey normalizes key and rejects anything that could escape the root.
func CleanKey(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) || strings.HasPrefix(key, "/") || strings.ContainsRune(key, 0) {
		return "", ErrInvalidKey
	}
	k := path.Clean(filepath.ToSlash(key))
	if k == "." || k == ".." || strings.HasPrefix(k, "../") {
		return "", ErrInvalidKey
	}
	return k, nil
}
