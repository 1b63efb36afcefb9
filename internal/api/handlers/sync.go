package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/cashflow-planner/internal/api/middleware"
	"github.com/dvloznov/cashflow-planner/internal/jobs"
	"github.com/dvloznov/cashflow-planner/internal/logger"
	"github.com/dvloznov/cashflow-planner/internal/syncer"
	"github.com/rs/zerolog"
)

// SyncService is the part of syncer.Service the API uses.
type SyncService interface {
	Sync(ctx context.Context, trigger jobs.Trigger) (*jobs.SyncRun, error)
	Foreground()
	Status() syncer.StatusInfo
	Runs(ctx context.Context, filter jobs.RunFilter) ([]*jobs.SyncRun, error)
}

// SyncHandler exposes manual sync and sync history.
type SyncHandler struct {
	svc SyncService
	log zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(svc SyncService, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{svc: svc, log: log}
}

// Sync handles POST /api/sync
//
// ?trigger=foreground schedules a background sync and returns immediately.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("trigger") == string(jobs.TriggerForeground) {
		h.svc.Foreground()
		middleware.WriteJSON(w, http.StatusAccepted, h.svc.Status())
		return
	}

	run, err := h.svc.Sync(r.Context(), jobs.TriggerManual)
	switch {
	case errors.Is(err, syncer.ErrSyncDisabled):
		middleware.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, syncer.ErrSyncInProgress):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case err != nil:
		log := logger.FromContextOr(r.Context(), h.log)
		log.Error().Err(err).Msg("Manual sync failed")
		middleware.WriteJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": "Sync failed",
			"run":   run,
		})
	default:
		middleware.WriteJSON(w, http.StatusOK, run)
	}
}

// Status handles GET /api/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.svc.Status())
}

// ListRuns handles GET /api/sync/runs
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.RunFilter{
		Status:  jobs.RunStatus(query.Get("status")),
		Trigger: jobs.Trigger(query.Get("trigger")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	runs, err := h.svc.Runs(r.Context(), filter)
	if err != nil {
		log := logger.FromContextOr(r.Context(), h.log)
		log.Error().Err(err).Msg("Failed to list sync runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list sync runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
