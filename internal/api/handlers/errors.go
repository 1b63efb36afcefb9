package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dvloznov/cashflow-planner/internal/api/middleware"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/rs/zerolog"
)

// writeLedgerError maps ledger sentinel errors to HTTP statuses.
func writeLedgerError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var decision *ledger.CycleDecisionError
	switch {
	case errors.As(err, &decision):
		middleware.WriteJSON(w, http.StatusConflict, map[string]string{
			"error":   err.Error(),
			"code":    "needs_cycle_decision",
			"planId":  decision.PlanID,
			"dueDate": decision.DueDate.String(),
		})
	case errors.Is(err, ledger.ErrInvalidInput):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrPlanNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrItemNotPending):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrTooFarAhead):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrPlanExhausted),
		errors.Is(err, ledger.ErrNoTransition),
		errors.Is(err, ledger.ErrTransitionInProgress):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("Ledger operation failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
