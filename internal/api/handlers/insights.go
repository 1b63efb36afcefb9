package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/cashflow-planner/internal/api/middleware"
	"github.com/dvloznov/cashflow-planner/internal/insights"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
)

// InsightsService is the part of insights.Service the API uses.
type InsightsService interface {
	Insights(ctx context.Context, in insights.Input) string
}

// InsightsHandler returns generated commentary on the current state.
type InsightsHandler struct {
	ledger *ledger.Ledger
	svc    InsightsService
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(l *ledger.Ledger, svc InsightsService) *InsightsHandler {
	return &InsightsHandler{ledger: l, svc: svc}
}

// Get handles GET /api/insights
func (h *InsightsHandler) Get(w http.ResponseWriter, r *http.Request) {
	state := h.ledger.State()
	text := h.svc.Insights(r.Context(), insights.Input{
		Transactions: state.Dataset.Transactions,
		Plans:        state.Dataset.Plans,
		Snapshot:     h.ledger.Snapshot(),
		Stamp:        state.Dataset.LastModified,
	})
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"insights": text})
}
