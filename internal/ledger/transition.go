package ledger

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/projection"
	"github.com/dvloznov/cashflow-planner/internal/schedule"
	"github.com/shopspring/decimal"
)

// Action resolves one pending occurrence during a period transition.
type Action string

const (
	// ActionPaid records the occurrence as a transaction on its due date.
	ActionPaid Action = "paid"
	// ActionCancel skips the occurrence.
	ActionCancel Action = "cancel"
	// ActionMove moves the occurrence to the transition target date.
	ActionMove Action = "move"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionPaid || a == ActionCancel || a == ActionMove
}

// PendingItem is an occurrence left open in the period being closed.
type PendingItem struct {
	PlanID      string           `json:"planId"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Type        domain.EntryType `json:"type"`
	DueDate     civil.Date       `json:"dueDate"`
	Overdue     bool             `json:"overdue"`
}

// Transition is a view change held back until open occurrences are dealt with.
type Transition struct {
	Target civil.Date      `json:"target"`
	From   schedule.Period `json:"from"`
	Items  []PendingItem   `json:"items"`
}

func (t *Transition) clone() *Transition {
	if t == nil {
		return nil
	}
	out := *t
	out.Items = append([]PendingItem(nil), t.Items...)
	return &out
}

func (t *Transition) indexOf(planID string) int {
	for i, item := range t.Items {
		if item.PlanID == planID {
			return i
		}
	}
	return -1
}

func (t *Transition) drop(i int) {
	t.Items = append(t.Items[:i], t.Items[i+1:]...)
}

// ChangeViewDate moves the view to target. Moving past the end of the current billing
// period makes target the start of the new cycle; if plans still have occurrences due
// in the current period or before it, the move is held as a pending Transition and
// returned. A nil Transition means the change was committed.
func (l *Ledger) ChangeViewDate(target civil.Date) (*Transition, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("ChangeViewDate: %w", invalid("date %q", target))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.transition != nil {
		return l.transition.clone(), fmt.Errorf("ChangeViewDate: %w", ErrTransitionInProgress)
	}

	current := l.periodLocked()
	if !target.After(current.End) {
		l.viewDate = target
		l.commitLocked(OriginLocal, FieldViewDate)
		return nil, nil
	}

	items := l.pendingLocked(current)
	if len(items) == 0 {
		l.advanceLocked(target)
		return nil, nil
	}

	l.transition = &Transition{Target: target, From: current, Items: items}
	l.log.Info().
		Str("target", target.String()).
		Int("pending", len(items)).
		Msg("Period transition awaiting resolution")
	return l.transition.clone(), nil
}

// Pending returns the transition in progress, or nil.
func (l *Ledger) Pending() *Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transition.clone()
}

// Resolve applies action to one pending item and commits it immediately. When the
// plan has disappeared since the transition began the item is dropped and
// ErrPlanNotFound is returned. The transaction is returned for ActionPaid.
func (l *Ledger) Resolve(planID string, action Action) (*domain.Transaction, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("Resolve: %w", invalid("action %q", action))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.transition
	if t == nil {
		return nil, fmt.Errorf("Resolve: %w", ErrNoTransition)
	}
	i := t.indexOf(planID)
	if i < 0 {
		return nil, fmt.Errorf("Resolve: %s: %w", planID, ErrItemNotPending)
	}
	item := t.Items[i]

	idx := l.planIndexLocked(planID)
	if idx < 0 {
		t.drop(i)
		return nil, fmt.Errorf("Resolve: %s: %w", planID, ErrPlanNotFound)
	}
	// the plan may have advanced since the transition was entered
	if due, ok := projection.NextDue(l.ds.Plans[idx]); !ok || due != item.DueDate {
		t.drop(i)
		return nil, fmt.Errorf("Resolve: %s: occurrence %s no longer due: %w", planID, item.DueDate, ErrItemNotPending)
	}

	var (
		tx     *domain.Transaction
		fields []Field
	)
	switch action {
	case ActionPaid:
		applied, f, err := l.applyLocked(planID, item.DueDate)
		if err != nil {
			t.drop(i)
			return nil, fmt.Errorf("Resolve: %w", err)
		}
		tx, fields = &applied, f
	case ActionCancel:
		fields = l.skipLocked(idx, l.stampLocked())
	case ActionMove:
		fields = l.moveLocked(idx, t.Target, l.stampLocked())
	}

	t.drop(i)
	l.log.Info().Str("plan_id", planID).Str("action", string(action)).Int("remaining", len(t.Items)).Msg("Pending item resolved")
	l.commitLocked(OriginLocal, fields...)
	return tx, nil
}

// Finish completes the transition: the target becomes the view date and its day the
// cycle start day. Unresolved items stay as they are on their plans.
func (l *Ledger) Finish() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.transition == nil {
		return fmt.Errorf("Finish: %w", ErrNoTransition)
	}
	if n := len(l.transition.Items); n > 0 {
		l.log.Warn().Int("unresolved", n).Msg("Finishing period transition with unresolved items")
	}
	target := l.transition.Target
	l.transition = nil
	l.advanceLocked(target)
	return nil
}

// Cancel abandons the transition. Items already resolved stay committed.
func (l *Ledger) Cancel() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.transition == nil {
		return fmt.Errorf("Cancel: %w", ErrNoTransition)
	}
	l.transition = nil
	l.log.Info().Msg("Period transition cancelled")
	return nil
}

func (l *Ledger) advanceLocked(target civil.Date) {
	l.viewDate = target
	l.ds.CycleStartDay = target.Day
	l.ds.LastModified = l.stampLocked()
	l.log.Info().Str("view_date", target.String()).Int("cycle_start_day", target.Day).Msg("Billing period advanced")
	l.commitLocked(OriginLocal, FieldViewDate, FieldCycleStartDay, FieldLastModified)
}

// pendingLocked lists plans whose next occurrence is due on or before the end of
// period, including occurrences overdue from earlier periods.
func (l *Ledger) pendingLocked(period schedule.Period) []PendingItem {
	var items []PendingItem
	for _, p := range l.ds.Plans {
		due, ok := projection.NextDue(p)
		if !ok || due.After(period.End) {
			continue
		}
		items = append(items, PendingItem{
			PlanID:      p.ID,
			Description: p.Description,
			Amount:      p.Amount,
			Type:        p.Type,
			DueDate:     due,
			Overdue:     due.Before(period.Start),
		})
	}
	return items
}
