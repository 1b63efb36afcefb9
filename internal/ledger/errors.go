package ledger

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
)

var (
	// ErrPlanNotFound is returned when no plan has the requested id.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrTransactionNotFound is returned when no transaction has the requested id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrPlanExhausted is returned when a plan cannot produce another occurrence.
	ErrPlanExhausted = errors.New("plan has no remaining occurrences")
	// ErrNeedsCycleDecision is returned by ApplyNow when the next occurrence falls in
	// the following billing period. The caller must choose via ConfirmApplyNow.
	ErrNeedsCycleDecision = errors.New("occurrence is due in the next billing period")
	// ErrTooFarAhead is returned by ApplyNow when the next occurrence is beyond the following period.
	ErrTooFarAhead = errors.New("occurrence is not due yet")
	// ErrInvalidInput wraps validation failures of new records.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoTransition is returned when a resolution action arrives while no transition is pending.
	ErrNoTransition = errors.New("no period transition in progress")
	// ErrTransitionInProgress is returned when the view date changes while items are still pending.
	ErrTransitionInProgress = errors.New("period transition already in progress")
	// ErrItemNotPending is returned when a plan is not among the pending items.
	ErrItemNotPending = errors.New("plan is not pending resolution")
)

// CycleDecisionError carries the due date that triggered ErrNeedsCycleDecision.
type CycleDecisionError struct {
	PlanID  string
	DueDate civil.Date
}

func (e *CycleDecisionError) Error() string {
	return fmt.Sprintf("plan %s: %v on %s", e.PlanID, ErrNeedsCycleDecision, e.DueDate)
}

func (e *CycleDecisionError) Unwrap() error {
	return ErrNeedsCycleDecision
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
