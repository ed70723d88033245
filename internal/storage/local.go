package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o750
	tempGlob = ".upload-*"
)

// localStorage keeps objects as plain files below a root directory.
type localStorage struct {
	fs afero.Fs
}

// NewLocal returns a Storage rooted at dir, creating it when missing.
// All keys resolve inside dir; the base-path filesystem refuses anything else.
func NewLocal(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload root is required")
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return NewLocalFs(afero.NewBasePathFs(osFs, dir)), nil
}

// NewLocalFs wraps an already rooted filesystem, e.g. afero.NewMemMapFs in tests.
func NewLocalFs(fs afero.Fs) Storage {
	return &localStorage{fs: fs}
}

// Put writes to a temp file in the target directory and renames it into
// place, so a half-written upload is never visible under its key.
func (l *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	k, err := CleanKey(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	exists, err := afero.Exists(l.fs, k)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", k, err)
	}
	if exists {
		return ObjectInfo{}, ErrExists
	}

	dir := path.Dir(k)
	if err := l.fs.MkdirAll(dir, dirPerm); err != nil {
		return ObjectInfo{}, fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(l.fs, dir, tempGlob)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && opt.Size >= 0 && n != opt.Size {
		err = fmt.Errorf("short write: %d of %d bytes", n, opt.Size)
	}
	if err == nil {
		err = l.fs.Rename(tmpName, k)
	}
	if err != nil {
		_ = l.fs.Remove(tmpName)
		return ObjectInfo{}, fmt.Errorf("write %s: %w", k, err)
	}

	return ObjectInfo{
		Key:         k,
		Size:        n,
		ContentType: opt.ContentType,
		Metadata:    opt.Metadata,
	}, nil
}

func (l *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	k, err := CleanKey(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := l.fs.Open(k)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open %s: %w", k, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", k, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, ObjectInfo{}, ErrNotFound
	}
	return f, ObjectInfo{Key: k, Size: st.Size(), LastModified: st.ModTime()}, nil
}

func (l *localStorage) Delete(ctx context.Context, key string) error {
	k, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(k); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", k, err)
	}
	return nil
}

// Ping creates and removes a probe file in the root.
func (l *localStorage) Ping(ctx context.Context) error {
	f, err := afero.TempFile(l.fs, ".", ".health-*")
	if err != nil {
		return fmt.Errorf("upload root not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return l.fs.Remove(name)
}
