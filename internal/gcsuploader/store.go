package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

// ErrNotFound is returned by Fetch when no object exists at the location.
var ErrNotFound = errors.New("backup object not found")

// DefaultWriteTimeout bounds a single backup upload.
const DefaultWriteTimeout = 2 * time.Minute

// StorageService saves and loads whole backup documents by gs:// URI.
type StorageService interface {
	Upload(ctx context.Context, uri string, data []byte) error
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCSStorageService stores backups in Cloud Storage using Application Default
// Credentials. The client is created on first use and shared afterwards.
type GCSStorageService struct {
	WriteTimeout time.Duration

	once    sync.Once
	client  *storage.Client
	initErr error
}

var _ StorageService = (*GCSStorageService)(nil)

// NewGCSStorageService creates a service with DefaultWriteTimeout.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{WriteTimeout: DefaultWriteTimeout}
}

func (s *GCSStorageService) storageClient(ctx context.Context) (*storage.Client, error) {
	s.once.Do(func() {
		s.client, s.initErr = storage.NewClient(ctx)
	})
	if s.initErr != nil {
		return nil, fmt.Errorf("creating storage client: %w", s.initErr)
	}
	return s.client, nil
}

// Upload replaces the object at uri with data as a JSON document.
func (s *GCSStorageService) Upload(ctx context.Context, uri string, data []byte) error {
	loc, err := ParseLocation(uri)
	if err != nil {
		return fmt.Errorf("Upload: %w", err)
	}
	client, err := s.storageClient(ctx)
	if err != nil {
		return fmt.Errorf("Upload: %w", err)
	}

	if s.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.WriteTimeout)
		defer cancel()
	}

	w := client.Bucket(loc.Bucket).Object(loc.Object).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Upload: writing %s: %w", loc, err)
	}
	// the object only becomes visible once Close succeeds
	if err := w.Close(); err != nil {
		return fmt.Errorf("Upload: finalizing %s: %w", loc, err)
	}
	return nil
}

// Fetch reads the whole object at uri. A missing object yields ErrNotFound.
func (s *GCSStorageService) Fetch(ctx context.Context, uri string) ([]byte, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	client, err := s.storageClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := client.Bucket(loc.Bucket).Object(loc.Object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("Fetch: %s: %w", loc, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Fetch: opening %s: %w", loc, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading %s: %w", loc, err)
	}
	return data, nil
}

// Close releases the shared client if one was created.
func (s *GCSStorageService) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
