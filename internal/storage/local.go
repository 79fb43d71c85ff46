// Package storage persists named output images.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spherical/pdf2jpeg/internal/domain"
)

const defaultDirMode = 0o755

// LocalSink writes objects as files in a directory.
// Existing files with the same name are overwritten.
type LocalSink struct {
	dir string
}

// NewLocalSink creates the directory if needed.
func NewLocalSink(dir string) (*LocalSink, error) {
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}
	return &LocalSink{dir: dir}, nil
}

// Put writes r to <dir>/<name>.
func (s *LocalSink) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", domain.IOError(fmt.Sprintf("failed to create %s", path), err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", domain.IOError(fmt.Sprintf("failed to write %s", path), err)
	}
	if err := f.Close(); err != nil {
		return "", domain.IOError(fmt.Sprintf("failed to close %s", path), err)
	}

	return path, nil
}

// Location returns the target directory.
func (s *LocalSink) Location() string {
	return s.dir
}
