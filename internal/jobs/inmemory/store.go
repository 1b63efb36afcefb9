package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/cashflow-planner/internal/jobs"
)

// DefaultCapacity is the number of runs kept when NewStore is given zero.
const DefaultCapacity = 200

// Store is an in-memory implementation of RunStore.
// It is safe for concurrent use and keeps only the most recent runs.
// Data is lost on restart.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]*jobs.SyncRun
	capacity int
}

// NewStore creates a new in-memory run store holding at most capacity runs.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		runs:     make(map[string]*jobs.SyncRun),
		capacity: capacity,
	}
}

// SaveRun implements the RunStore interface.
// It saves or updates a run, evicting the oldest runs past capacity.
func (s *Store) SaveRun(ctx context.Context, run *jobs.SyncRun) error {
	if run.RunID == "" {
		return fmt.Errorf("SaveRun: run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy so later changes by the caller are not visible.
	runCopy := copyRun(run)
	s.runs[run.RunID] = runCopy

	for len(s.runs) > s.capacity {
		s.evictOldestLocked()
	}
	return nil
}

// GetRun implements the RunStore interface.
func (s *Store) GetRun(ctx context.Context, runID string) (*jobs.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("GetRun: %s: %w", runID, jobs.ErrRunNotFound)
	}
	return copyRun(run), nil
}

// ListRuns implements the RunStore interface.
func (s *Store) ListRuns(ctx context.Context, filter jobs.RunFilter) ([]*jobs.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*jobs.SyncRun, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if filter.Trigger != "" && run.Trigger != filter.Trigger {
			continue
		}
		result = append(result, copyRun(run))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].RunID < result[j].RunID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.SyncRun{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

func (s *Store) evictOldestLocked() {
	var oldest *jobs.SyncRun
	for _, run := range s.runs {
		if oldest == nil || run.StartedAt.Before(oldest.StartedAt) {
			oldest = run
		}
	}
	if oldest != nil {
		delete(s.runs, oldest.RunID)
	}
}

func copyRun(run *jobs.SyncRun) *jobs.SyncRun {
	c := *run
	if run.CompletedAt != nil {
		t := *run.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Ensure Store implements RunStore interface.
var _ jobs.RunStore = (*Store)(nil)
