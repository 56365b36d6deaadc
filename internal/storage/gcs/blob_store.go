// Package gcs publishes exported calendars to a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// ErrInvalidPath is returned for object names that are empty or not clean relative paths.
var ErrInvalidPath = errors.New("invalid object path")

// Config names the destination bucket.
type Config struct {
	Bucket string
	// CacheControl is applied to every object.
	CacheControl string
}

// BlobStore uploads calendars as bucket objects.
type BlobStore struct {
	bucket       *storage.BucketHandle
	name         string
	cacheControl string
}

// New binds a BlobStore to cfg.Bucket.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("gcs blob store: storage client is required")
	}
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("gcs blob store: bucket name is required")
	}
	return &BlobStore{
		bucket:       client.Bucket(name),
		name:         name,
		cacheControl: cfg.CacheControl,
	}, nil
}

// PutObject uploads data to objectPath and returns its gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, objectPath string, contentType string, data []byte) (string, error) {
	name, err := cleanObjectName(objectPath)
	if err != nil {
		return "", err
	}
	w := s.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = s.cacheControl
	w.ContentDisposition = fmt.Sprintf("inline; filename=%q", path.Base(name))

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	return ObjectURI(s.name, name), nil
}

// ObjectURI formats gs://bucket/name.
func ObjectURI(bucket, name string) string {
	return "gs://" + bucket + "/" + name
}

func cleanObjectName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || strings.HasPrefix(name, "/") || path.Clean(name) != name || strings.HasPrefix(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, raw)
	}
	return name, nil
}
