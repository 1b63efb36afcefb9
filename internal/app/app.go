// Package app assembles the ledger and its services from configuration. Every
// binary builds one App and closes it on exit.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/dvloznov/cashflow-planner/internal/backup"
	"github.com/dvloznov/cashflow-planner/internal/config"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/gcsuploader"
	infraBQ "github.com/dvloznov/cashflow-planner/internal/infra/bigquery"
	"github.com/dvloznov/cashflow-planner/internal/insights"
	"github.com/dvloznov/cashflow-planner/internal/jobs"
	"github.com/dvloznov/cashflow-planner/internal/jobs/inmemory"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/dvloznov/cashflow-planner/internal/localstore"
	"github.com/dvloznov/cashflow-planner/internal/remote/gcs"
	"github.com/dvloznov/cashflow-planner/internal/remote/memory"
	"github.com/dvloznov/cashflow-planner/internal/syncer"
	"github.com/rs/zerolog"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Clock    domain.Clock
	Store    *localstore.Store
	Ledger   *ledger.Ledger
	Runs     jobs.RunStore
	Sync     *syncer.Service
	Backup   *backup.Service
	Insights *insights.Service

	closers []io.Closer
}

// New opens local storage, loads the ledger and connects the sync backend. Sync
// stays disabled when it is not configured; it is not started.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Clock: domain.SystemClock{}}

	store, err := localstore.Open(ctx, cfg.DatabasePath, a.Clock, log)
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store)

	state, err := store.Load(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}
	a.Ledger = ledger.New(state, a.Clock, log)
	a.Ledger.OnChange(store.Listen)

	remote, runs, err := a.openRemote(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}
	a.Runs = runs

	a.Sync = syncer.New(syncer.Config{
		Enabled:  cfg.SyncConfigured(),
		SyncID:   cfg.SyncID,
		Debounce: cfg.SyncDebounce,
	}, a.Ledger, remote, runs, a.Clock, log)
	a.Ledger.OnChange(a.Sync.Listen)

	backups := gcsuploader.NewGCSStorageService()
	a.closers = append(a.closers, backups)
	a.Backup = backup.NewService(a.Ledger, backup.NewFiles(backups), a.Clock, log)

	var gen insights.Generator
	if g, err := insights.NewGeminiGenerator(ctx, cfg.GeminiModel); err != nil {
		log.Warn().Err(err).Msg("Insights generator unavailable")
	} else {
		gen = g
	}
	a.Insights = insights.NewService(gen, cfg.InsightsCacheTTL, log)

	log.Info().
		Str("database_path", cfg.DatabasePath).
		Str("sync_backend", cfg.SyncBackend).
		Str("sync_status", string(a.Sync.Status().Status)).
		Int("transactions", len(state.Dataset.Transactions)).
		Int("plans", len(state.Dataset.Plans)).
		Msg("Application initialized")
	return a, nil
}

// openRemote returns a nil remote when sync is not configured. BigQuery also keeps
// the sync run history; other backends record runs in memory.
func (a *App) openRemote(ctx context.Context) (syncer.RemoteStore, jobs.RunStore, error) {
	cfg := a.Config
	runs := jobs.RunStore(inmemory.NewStore(0))
	if !cfg.SyncConfigured() {
		return nil, runs, nil
	}

	switch cfg.SyncBackend {
	case config.BackendMemory:
		return memory.NewStore(), runs, nil

	case config.BackendBigQuery:
		client, err := infraBQ.NewClient(ctx, cfg.BQProjectID, cfg.BQDatasetID)
		if err != nil {
			return nil, nil, fmt.Errorf("openRemote: %w", err)
		}
		a.closers = append(a.closers, client)
		return infraBQ.NewSyncRowStore(client), infraBQ.NewSyncRunStore(client), nil

	default:
		store, err := gcs.NewStore(ctx, cfg.GCSBucket, cfg.SyncObjectPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("openRemote: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, runs, nil
	}
}

// Close stops sync and releases every opened resource in reverse order.
func (a *App) Close() {
	if a.Sync != nil {
		a.Sync.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}
