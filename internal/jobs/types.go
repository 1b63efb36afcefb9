// Package jobs describes sync runs and where their history is kept.
package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id is unknown to the store.
var ErrRunNotFound = errors.New("sync run not found")

// Trigger represents what started a sync run.
type Trigger string

const (
	// TriggerStartup is the sync performed when the process starts.
	TriggerStartup Trigger = "startup"
	// TriggerChange is the debounced sync after local edits.
	TriggerChange Trigger = "change"
	// TriggerForeground is the sync after the app regains focus.
	TriggerForeground Trigger = "foreground"
	// TriggerManual is a sync requested explicitly by the user.
	TriggerManual Trigger = "manual"
	// TriggerPeriodic is a sync started by the daemon's ticker.
	TriggerPeriodic Trigger = "periodic"
)

// RunStatus represents the current status of a sync run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is in flight.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates the merged dataset was pushed.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the pull or push failed.
	RunStatusFailed RunStatus = "failed"
)

// SyncRun records one pull-merge-push cycle.
type SyncRun struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"run_id"`

	// SyncID is the remote row the run synchronized with.
	SyncID string `json:"sync_id"`

	Trigger Trigger   `json:"trigger"`
	Status  RunStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the run failed.
	Error string `json:"error,omitempty"`

	// RemoteFound is false when no remote row existed yet.
	RemoteFound bool `json:"remote_found"`

	// Counts of the dataset that was pushed.
	Transactions int `json:"transactions"`
	Plans        int `json:"plans"`
	Tombstones   int `json:"tombstones"`
}

// Finish marks the run completed or failed at t.
func (r *SyncRun) Finish(t time.Time, err error) {
	r.CompletedAt = &t
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusCompleted
}

// Duration is the time the run took, or zero while it is still running.
func (r *SyncRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunStore defines the interface for storing and retrieving sync run history.
type RunStore interface {
	// SaveRun saves or updates a run.
	SaveRun(ctx context.Context, run *SyncRun) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID string) (*SyncRun, error)

	// ListRuns retrieves runs, newest first, with optional filtering.
	ListRuns(ctx context.Context, filter RunFilter) ([]*SyncRun, error)
}

// RunFilter defines filtering criteria for listing runs.
type RunFilter struct {
	// Status filters runs by status.
	Status RunStatus

	// Trigger filters runs by trigger.
	Trigger Trigger

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
