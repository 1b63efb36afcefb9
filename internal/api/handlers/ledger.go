package handlers

import (
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/api/middleware"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerHandler serves transactions, plans and the balance snapshot.
type LedgerHandler struct {
	ledger *ledger.Ledger
	log    zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(l *ledger.Ledger, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, log: log}
}

// Snapshot handles GET /api/snapshot
func (h *LedgerHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot":      h.ledger.Snapshot(),
		"viewDate":      h.ledger.ViewDate(),
		"cycleStartDay": h.ledger.State().Dataset.CycleStartDay,
	})
}

// ListTransactions handles GET /api/transactions
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := h.ledger.Transactions()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

type transactionRequest struct {
	Date        civil.Date       `json:"date"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Type        domain.EntryType `json:"type"`
	Category    string           `json:"category"`
}

// CreateTransaction handles POST /api/transactions
func (h *LedgerHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.ledger.AddTransaction(ledger.TransactionInput{
		Date:        req.Date,
		Description: req.Description,
		Amount:      req.Amount,
		Type:        req.Type,
		Category:    req.Category,
	})
	if err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *LedgerHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteTransaction(chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPlans handles GET /api/plans
func (h *LedgerHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.ledger.Plans()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
		"count": len(plans),
	})
}

type planRequest struct {
	Description    string           `json:"description"`
	Amount         decimal.Decimal  `json:"amount"`
	Type           domain.EntryType `json:"type"`
	Category       string           `json:"category"`
	Frequency      domain.Frequency `json:"frequency"`
	StartDate      civil.Date       `json:"startDate"`
	MaxOccurrences *int             `json:"maxOccurrences"`
	EndDate        *civil.Date      `json:"endDate"`
}

// CreatePlan handles POST /api/plans
func (h *LedgerHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeBody(w, r, &req) {
		return
	}

	plan, err := h.ledger.AddPlan(ledger.PlanInput{
		Description:    req.Description,
		Amount:         req.Amount,
		Type:           req.Type,
		Category:       req.Category,
		Frequency:      req.Frequency,
		StartDate:      req.StartDate,
		MaxOccurrences: req.MaxOccurrences,
		EndDate:        req.EndDate,
	})
	if err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, plan)
}

// DeletePlan handles DELETE /api/plans/{id}
func (h *LedgerHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeletePlan(chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyPlan handles POST /api/plans/{id}/apply
func (h *LedgerHandler) ApplyPlan(w http.ResponseWriter, r *http.Request) {
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

	tx, err := h.ledger.ApplyPlan(chi.URLParam(r, "id"), req.Date)
	if err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// ApplyNow handles POST /api/plans/{id}/apply-now
//
// Without a body the apply-now guard runs and a next-period occurrence answers 409.
// A body of {"shiftCycle": bool} confirms that decision.
func (h *LedgerHandler) ApplyNow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShiftCycle *bool `json:"shiftCycle"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	var (
		tx  domain.Transaction
		err error
	)
	if req.ShiftCycle != nil {
		tx, err = h.ledger.ConfirmApplyNow(id, *req.ShiftCycle)
	} else {
		tx, err = h.ledger.ApplyNow(id)
	}
	if err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// SetCycleStartDay handles POST /api/settings/cycle-start-day
func (h *LedgerHandler) SetCycleStartDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Day int `json:"day"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.ledger.SetCycleStartDay(req.Day); err != nil {
		writeLedgerError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"cycleStartDay": req.Day, "period": h.ledger.Period()})
}
