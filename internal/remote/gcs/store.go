// Package gcs keeps one dataset object per sync id in a Cloud Storage bucket.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/cashflow-planner/internal/domain"
)

// DefaultPrefix is the object prefix used when none is configured.
const DefaultPrefix = "sync"

// Store is a remote store backed by Cloud Storage.
type Store struct {
	client  *storage.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewStore creates a storage client using Application Default Credentials.
func NewStore(ctx context.Context, bucket, prefix string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewStore: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating storage client: %w", err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, bucket: bucket, prefix: prefix, timeout: 2 * time.Minute}, nil
}

// Close closes the storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ObjectName returns the object holding syncID's dataset.
func ObjectName(prefix, syncID string) string {
	return path.Join(prefix, syncID+".json")
}

// Pull implements syncer.RemoteStore. A missing object means no remote data yet.
func (s *Store) Pull(ctx context.Context, syncID string) (*domain.Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name := ObjectName(s.prefix, syncID)
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Pull: opening object %s/%s: %w", s.bucket, name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Pull: reading object %s/%s: %w", s.bucket, name, err)
	}

	var ds domain.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("Pull: decoding object %s/%s: %w", s.bucket, name, err)
	}
	return &ds, nil
}

// Push implements syncer.RemoteStore by overwriting the object.
func (s *Store) Push(ctx context.Context, syncID string, ds domain.Dataset) error {
	data, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("Push: encoding dataset: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name := ObjectName(s.prefix, syncID)
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Push: writing object %s/%s: %w", s.bucket, name, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("Push: finalizing object %s/%s: %w", s.bucket, name, err)
	}
	return nil
}
