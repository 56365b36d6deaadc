// Package local writes exported calendars below a directory on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for empty object paths or paths leaving the base directory.
var ErrInvalidPath = errors.New("invalid object path")

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where calendars are written.
	BaseDir string
}

// BlobStore writes calendars to the local filesystem. Each write lands in a
// temp file first and is renamed into place, so readers never see a partial
// calendar.
type BlobStore struct {
	baseDir string
}

// New creates a local blob store, creating BaseDir when missing.
func New(cfg Config) (*BlobStore, error) {
	dir := strings.TrimSpace(cfg.BaseDir)
	if dir == "" {
		return nil, errors.New("local blob store: base directory is required")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("local blob store: create %s: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("local blob store: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local blob store: %s is not a directory", dir)
	}
	return &BlobStore{baseDir: dir}, nil
}

// PutObject writes data at objectPath below the base directory and returns a
// file:// URI.
func (s *BlobStore) PutObject(_ context.Context, objectPath string, _ string, data []byte) (string, error) {
	rel := filepath.FromSlash(strings.TrimSpace(objectPath))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	target := filepath.Join(s.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("create parent of %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".calendar-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", rel, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", rel, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("publish %s: %w", rel, err)
	}
	return "file://" + target, nil
}
