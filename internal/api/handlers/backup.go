package handlers

import (
	"io"
	"net/http"

	"github.com/dvloznov/cashflow-planner/internal/api/middleware"
	"github.com/dvloznov/cashflow-planner/internal/backup"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/logger"
	"github.com/rs/zerolog"
)

// maxBackupBytes bounds uploaded backup documents.
const maxBackupBytes = 20 << 20

// BackupService is the part of backup.Service the API uses.
type BackupService interface {
	Snapshot() backup.Document
	ImportBytes(data []byte) (domain.Dataset, error)
}

// BackupHandler downloads and restores backup documents.
type BackupHandler struct {
	svc BackupService
	log zerolog.Logger
}

// NewBackupHandler creates a new backup handler.
func NewBackupHandler(svc BackupService, log zerolog.Logger) *BackupHandler {
	return &BackupHandler{svc: svc, log: log}
}

// Export handles GET /api/backup
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	doc := h.svc.Snapshot()
	w.Header().Set("Content-Disposition", `attachment; filename="cashflow-backup-`+doc.ExportDate.Format("2006-01-02")+`.json"`)
	middleware.WriteJSON(w, http.StatusOK, doc)
}

// Import handles POST /api/backup
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBackupBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	merged, err := h.svc.ImportBytes(data)
	if err != nil {
		log := logger.FromContextOr(r.Context(), h.log)
		log.Warn().Err(err).Msg("Backup import rejected")
		middleware.WriteError(w, http.StatusBadRequest, "Invalid backup document")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": len(merged.Transactions),
		"plans":        len(merged.Plans),
		"deletedIds":   len(merged.DeletedIDs),
	})
}
