// Package handlers implements the HTTP API over the ledger and its services.
package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/cashflow-planner/internal/api/middleware"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Deps are the services behind the API. Sync, Backup and Insights may be nil, in
// which case their routes are not mounted.
type Deps struct {
	Ledger   *ledger.Ledger
	Sync     SyncService
	Backup   BackupService
	Insights InsightsService
	Limiter  *rate.Limiter
	Log      zerolog.Logger
}

// NewRouter wires every endpoint and the middleware chain.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID(d.Log))
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.AccessLog(d.Log))
	r.Use(middleware.CORS)
	if d.Limiter != nil {
		r.Use(middleware.RateLimit(d.Limiter, d.Log))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	ledgerHandler := NewLedgerHandler(d.Ledger, d.Log)
	periodHandler := NewPeriodHandler(d.Ledger, d.Log)

	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", ledgerHandler.Snapshot)
		r.Post("/settings/cycle-start-day", ledgerHandler.SetCycleStartDay)

		r.Get("/transactions", ledgerHandler.ListTransactions)
		r.Post("/transactions", ledgerHandler.CreateTransaction)
		r.Delete("/transactions/{id}", ledgerHandler.DeleteTransaction)

		r.Get("/plans", ledgerHandler.ListPlans)
		r.Post("/plans", ledgerHandler.CreatePlan)
		r.Delete("/plans/{id}", ledgerHandler.DeletePlan)
		r.Post("/plans/{id}/apply", ledgerHandler.ApplyPlan)
		r.Post("/plans/{id}/apply-now", ledgerHandler.ApplyNow)

		r.Route("/period", func(r chi.Router) {
			r.Get("/pending", periodHandler.Pending)
			r.Post("/change", periodHandler.Change)
			r.Post("/resolve", periodHandler.Resolve)
			r.Post("/finish", periodHandler.Finish)
			r.Post("/cancel", periodHandler.Cancel)
		})

		if d.Sync != nil {
			syncHandler := NewSyncHandler(d.Sync, d.Log)
			r.Post("/sync", syncHandler.Sync)
			r.Get("/sync/status", syncHandler.Status)
			r.Get("/sync/runs", syncHandler.ListRuns)
		}
		if d.Backup != nil {
			backupHandler := NewBackupHandler(d.Backup, d.Log)
			r.Get("/backup", backupHandler.Export)
			r.Post("/backup", backupHandler.Import)
		}
		if d.Insights != nil {
			r.Get("/insights", NewInsightsHandler(d.Ledger, d.Insights).Get)
		}
	})

	return r
}
