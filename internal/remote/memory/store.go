// Package memory is an in-process remote store, used offline and in tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dvloznov/cashflow-planner/internal/domain"
)

// Store keeps one encoded dataset per sync id. Datasets are stored in their
// serialized form so callers never share memory with the store.
type Store struct {
	mu   sync.RWMutex
	rows map[string][]byte

	// PullFunc and PushFunc, when set, replace the default behavior.
	PullFunc func(ctx context.Context, syncID string) (*domain.Dataset, error)
	PushFunc func(ctx context.Context, syncID string, ds domain.Dataset) error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{rows: make(map[string][]byte)}
}

// Pull implements syncer.RemoteStore.
func (s *Store) Pull(ctx context.Context, syncID string) (*domain.Dataset, error) {
	if s.PullFunc != nil {
		return s.PullFunc(ctx, syncID)
	}

	s.mu.RLock()
	raw, ok := s.rows[syncID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var ds domain.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("Pull: decoding dataset %s: %w", syncID, err)
	}
	return &ds, nil
}

// Push implements syncer.RemoteStore.
func (s *Store) Push(ctx context.Context, syncID string, ds domain.Dataset) error {
	if s.PushFunc != nil {
		return s.PushFunc(ctx, syncID, ds)
	}

	raw, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("Push: encoding dataset %s: %w", syncID, err)
	}

	s.mu.Lock()
	s.rows[syncID] = raw
	s.mu.Unlock()
	return nil
}
