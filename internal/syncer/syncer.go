// Package syncer runs the pull-merge-push cycle against a remote store.
//
// Every trigger (startup, debounced local change, foreground, manual, periodic)
// funnels into Sync. At most one cycle is in flight; a request arriving while one
// runs is dropped, not queued.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/jobs"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// DefaultDebounce is the quiet period after the last local change before syncing.
const DefaultDebounce = 3 * time.Second

var (
	// ErrSyncInProgress is returned when a sync request is dropped because another runs.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrSyncDisabled is returned when sync is not configured.
	ErrSyncDisabled = errors.New("sync is disabled")
)

// Status is the externally visible state of synchronization.
type Status string

const (
	StatusDisabled Status = "disabled"
	StatusIdle     Status = "idle"
	StatusSyncing  Status = "syncing"
	StatusSynced   Status = "synced"
	StatusError    Status = "error"
)

// RemoteStore holds one full dataset per sync id.
type RemoteStore interface {
	// Pull returns the stored dataset, or nil when none exists yet.
	Pull(ctx context.Context, syncID string) (*domain.Dataset, error)

	// Push replaces the stored dataset.
	Push(ctx context.Context, syncID string, ds domain.Dataset) error
}

// Local is the state being synchronized.
type Local interface {
	State() ledger.State
	MergeRemote(remote domain.Dataset) domain.Dataset
}

// Config controls the service.
type Config struct {
	Enabled  bool
	SyncID   string
	Debounce time.Duration
}

// StatusInfo is a point-in-time view of the service.
type StatusInfo struct {
	Status       Status     `json:"status"`
	SyncID       string     `json:"syncId,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
}

// Service synchronizes a Local with a RemoteStore.
type Service struct {
	cfg    Config
	local  Local
	remote RemoteStore
	runs   jobs.RunStore
	clock  domain.Clock
	log    zerolog.Logger

	inflight *semaphore.Weighted
	wg       sync.WaitGroup

	mu       sync.Mutex
	baseCtx  context.Context
	debounce *time.Timer
	stopped  bool
	status   Status
	lastSync *time.Time
	lastErr  string
}

// New creates a sync service. A disabled config or an empty sync id yields a
// service whose status stays StatusDisabled.
func New(cfg Config, local Local, remote RemoteStore, runs jobs.RunStore, clock domain.Clock, log zerolog.Logger) *Service {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.SyncID == "" || remote == nil {
		cfg.Enabled = false
	}

	status := StatusIdle
	if !cfg.Enabled {
		status = StatusDisabled
	}

	return &Service{
		cfg:      cfg,
		local:    local,
		remote:   remote,
		runs:     runs,
		clock:    clock,
		log:      log.With().Str("component", "syncer").Str("sync_id", cfg.SyncID).Logger(),
		inflight: semaphore.NewWeighted(1),
		baseCtx:  context.Background(),
		status:   status,
	}
}

// Start records ctx as the parent of background syncs and performs the startup sync
// in the background.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	if !s.cfg.Enabled {
		s.log.Info().Msg("Sync disabled")
		return
	}
	s.trigger(jobs.TriggerStartup)
}

// Notify reports a local change. Calls within the debounce window collapse into a
// single sync after the window passes without further changes.
func (s *Service) Notify() {
	if !s.cfg.Enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.cfg.Debounce, func() {
		s.trigger(jobs.TriggerChange)
	})
}

// Listen adapts Notify to ledger change notifications. Changes produced by a merge
// are ignored so a sync does not schedule another.
func (s *Service) Listen(_ ledger.State, _ []ledger.Field, origin ledger.Origin) {
	if origin == ledger.OriginLocal {
		s.Notify()
	}
}

// Foreground triggers a sync after the application regains focus.
func (s *Service) Foreground() {
	if s.cfg.Enabled {
		s.trigger(jobs.TriggerForeground)
	}
}

// Periodic triggers a sync from a ticker.
func (s *Service) Periodic() {
	if s.cfg.Enabled {
		s.trigger(jobs.TriggerPeriodic)
	}
}

// trigger runs a sync in the background and only logs its outcome.
func (s *Service) trigger(trigger jobs.Trigger) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	ctx := s.baseCtx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if _, err := s.Sync(ctx, trigger); err != nil && !errors.Is(err, ErrSyncInProgress) {
			s.log.Warn().Err(err).Str("trigger", string(trigger)).Msg("Background sync failed")
		}
	}()
}

// Sync performs one pull-merge-push cycle and records it as a run. It returns
// ErrSyncInProgress without side effects when another cycle is running.
func (s *Service) Sync(ctx context.Context, trigger jobs.Trigger) (*jobs.SyncRun, error) {
	if !s.cfg.Enabled {
		return nil, ErrSyncDisabled
	}
	if !s.inflight.TryAcquire(1) {
		s.log.Debug().Str("trigger", string(trigger)).Msg("Sync request dropped, cycle in flight")
		return nil, ErrSyncInProgress
	}
	defer s.inflight.Release(1)

	return s.run(ctx, trigger)
}

// run performs the cycle. The caller holds inflight.
func (s *Service) run(ctx context.Context, trigger jobs.Trigger) (*jobs.SyncRun, error) {
	run := &jobs.SyncRun{
		RunID:     uuid.New().String(),
		SyncID:    s.cfg.SyncID,
		Trigger:   trigger,
		Status:    jobs.RunStatusRunning,
		StartedAt: s.clock.Now(),
	}
	s.saveRun(ctx, run)
	s.setStatus(StatusSyncing, nil)

	log := s.log.With().Str("run_id", run.RunID).Str("trigger", string(trigger)).Logger()
	log.Info().Msg("Sync started")

	pushed, err := s.cycle(ctx, run)
	if err == nil {
		run.Transactions = len(pushed.Transactions)
		run.Plans = len(pushed.Plans)
		run.Tombstones = len(pushed.DeletedIDs)
	}
	run.Finish(s.clock.Now(), err)
	s.saveRun(ctx, run)

	if err != nil {
		s.setStatus(StatusError, err)
		log.Error().Err(err).Dur("duration", run.Duration()).Msg("Sync failed")
		return run, err
	}
	s.setStatus(StatusSynced, nil)

	log.Info().
		Bool("remote_found", run.RemoteFound).
		Int("transactions", run.Transactions).
		Int("plans", run.Plans).
		Int("tombstones", run.Tombstones).
		Dur("duration", run.Duration()).
		Msg("Sync completed")
	return run, nil
}

func (s *Service) cycle(ctx context.Context, run *jobs.SyncRun) (domain.Dataset, error) {
	remote, err := s.remote.Pull(ctx, s.cfg.SyncID)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("Sync: pulling remote dataset: %w", err)
	}

	var merged domain.Dataset
	if remote == nil {
		merged = s.local.State().Dataset
	} else {
		run.RemoteFound = true
		merged = s.local.MergeRemote(*remote)
	}

	if err := s.remote.Push(ctx, s.cfg.SyncID, merged); err != nil {
		return domain.Dataset{}, fmt.Errorf("Sync: pushing merged dataset: %w", err)
	}
	return merged, nil
}

func (s *Service) saveRun(ctx context.Context, run *jobs.SyncRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		s.log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to record sync run")
	}
}

func (s *Service) setStatus(status Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = status
	switch status {
	case StatusSynced:
		now := s.clock.Now()
		s.lastSync = &now
		s.lastErr = ""
	case StatusError:
		s.lastErr = err.Error()
	}
}

// Status returns the current sync status.
func (s *Service) Status() StatusInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := StatusInfo{Status: s.status, LastError: s.lastErr}
	if s.cfg.Enabled {
		info.SyncID = s.cfg.SyncID
	}
	if s.lastSync != nil {
		t := *s.lastSync
		info.LastSyncedAt = &t
	}
	return info
}

// Runs lists recorded sync runs, newest first.
func (s *Service) Runs(ctx context.Context, filter jobs.RunFilter) ([]*jobs.SyncRun, error) {
	if s.runs == nil {
		return []*jobs.SyncRun{}, nil
	}
	runs, err := s.runs.ListRuns(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("Runs: listing sync runs: %w", err)
	}
	return runs, nil
}

// Flush runs a debounced sync that has not fired yet, waiting for any cycle in flight
// to finish first. It returns nil when none is pending.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.debounce != nil && s.debounce.Stop()
	s.debounce = nil
	s.mu.Unlock()

	if !pending || !s.cfg.Enabled {
		return nil
	}

	// a cycle already in flight may have read the ledger before the pending change
	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("Flush: waiting for sync in flight: %w", err)
	}
	defer s.inflight.Release(1)

	if _, err := s.run(ctx, jobs.TriggerChange); err != nil {
		return fmt.Errorf("Flush: %w", err)
	}
	return nil
}

// Stop cancels a pending debounced sync and waits for background syncs to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
