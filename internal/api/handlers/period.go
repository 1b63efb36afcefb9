package handlers

import (
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/api/middleware"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/rs/zerolog"
)

// PeriodHandler drives view date changes and period transitions.
type PeriodHandler struct {
	ledger *ledger.Ledger
	log    zerolog.Logger
}

// NewPeriodHandler creates a new period handler.
func NewPeriodHandler(l *ledger.Ledger, log zerolog.Logger) *PeriodHandler {
	return &PeriodHandler{ledger: l, log: log}
}

func (h *PeriodHandler) writeState(w http.ResponseWriter, status int, pending *ledger.Transition) {
	middleware.WriteJSON(w, status, map[string]interface{}{
		"viewDate": h.ledger.ViewDate(),
		"period":   h.ledger.Period(),
		"pending":  pending,
	})
}

// Change handles POST /api/period/change
func (h *PeriodHandler) Change(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date civil.Date `json:"date"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Date.IsValid() {
		middleware.WriteError(w, http.StatusBadRequest, "date is required")
		return
	}

	tr, err := h.ledger.ChangeViewDate(req.Date)
	if err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	if tr != nil {
		h.writeState(w, http.StatusAccepted, tr)
		return
	}
	h.writeState(w, http.StatusOK, nil)
}

// Pending handles GET /api/period/pending
func (h *PeriodHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, http.StatusOK, h.ledger.Pending())
}

// Resolve handles POST /api/period/resolve
func (h *PeriodHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID string        `json:"planId"`
		Action ledger.Action `json:"action"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.ledger.Resolve(req.PlanID, req.Action)
	if err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transaction": tx,
		"pending":     h.ledger.Pending(),
	})
}

// Finish handles POST /api/period/finish
func (h *PeriodHandler) Finish(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Finish(); err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	h.writeState(w, http.StatusOK, nil)
}

// Cancel handles POST /api/period/cancel
func (h *PeriodHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Cancel(); err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	h.writeState(w, http.StatusOK, nil)
}
