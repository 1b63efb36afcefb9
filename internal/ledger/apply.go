package ledger

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/projection"
	"github.com/google/uuid"
)

// ApplyPlan turns the plan's next occurrence into an unpaid transaction dated applyDate.
// One-time plans are removed afterwards; recurring plans advance by one occurrence.
func (l *Ledger) ApplyPlan(planID string, applyDate civil.Date) (domain.Transaction, error) {
	if !applyDate.IsValid() {
		return domain.Transaction{}, fmt.Errorf("ApplyPlan: %w", invalid("apply date %q", applyDate))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, fields, err := l.applyLocked(planID, applyDate)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ApplyPlan: %w", err)
	}
	l.commitLocked(OriginLocal, fields...)
	return tx, nil
}

// ApplyNow applies the plan's next occurrence at its due date, provided it is due in
// the current period or earlier. An occurrence due in the following period yields a
// *CycleDecisionError; anything later yields ErrTooFarAhead.
func (l *Ledger) ApplyNow(planID string) (domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	due, err := l.nextDueLocked(planID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ApplyNow: %w", err)
	}

	current := l.periodLocked()
	switch {
	case !due.After(current.End):
	case !due.After(current.Following(l.ds.CycleStartDay).End):
		return domain.Transaction{}, &CycleDecisionError{PlanID: planID, DueDate: due}
	default:
		return domain.Transaction{}, fmt.Errorf("ApplyNow: %s due %s: %w", planID, due, ErrTooFarAhead)
	}

	tx, fields, err := l.applyLocked(planID, due)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ApplyNow: %w", err)
	}
	l.commitLocked(OriginLocal, fields...)
	return tx, nil
}

// ConfirmApplyNow applies an occurrence that ApplyNow deferred to the caller. With
// shiftCycle the billing cycle moves so the due date starts the new current period;
// otherwise the cycle is left alone.
func (l *Ledger) ConfirmApplyNow(planID string, shiftCycle bool) (domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	due, err := l.nextDueLocked(planID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ConfirmApplyNow: %w", err)
	}
	if due.After(l.periodLocked().Following(l.ds.CycleStartDay).End) {
		return domain.Transaction{}, fmt.Errorf("ConfirmApplyNow: %s due %s: %w", planID, due, ErrTooFarAhead)
	}

	tx, fields, err := l.applyLocked(planID, due)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ConfirmApplyNow: %w", err)
	}

	if shiftCycle {
		l.ds.CycleStartDay = due.Day
		l.viewDate = due
		fields = append(fields, FieldCycleStartDay, FieldViewDate)
		l.log.Info().Str("plan_id", planID).Str("view_date", due.String()).Msg("Billing cycle shifted to occurrence")
	}

	l.commitLocked(OriginLocal, fields...)
	return tx, nil
}

func (l *Ledger) nextDueLocked(planID string) (civil.Date, error) {
	idx := l.planIndexLocked(planID)
	if idx < 0 {
		return civil.Date{}, fmt.Errorf("%s: %w", planID, ErrPlanNotFound)
	}
	due, ok := projection.NextDue(l.ds.Plans[idx])
	if !ok {
		return civil.Date{}, fmt.Errorf("%s: %w", planID, ErrPlanExhausted)
	}
	return due, nil
}

func (l *Ledger) applyLocked(planID string, applyDate civil.Date) (domain.Transaction, []Field, error) {
	idx := l.planIndexLocked(planID)
	if idx < 0 {
		return domain.Transaction{}, nil, fmt.Errorf("%s: %w", planID, ErrPlanNotFound)
	}
	plan := l.ds.Plans[idx]
	// past MaxOccurrences or past EndDate
	if _, ok := projection.NextDue(plan); !ok {
		return domain.Transaction{}, nil, fmt.Errorf("%s: %w", planID, ErrPlanExhausted)
	}

	now := l.stampLocked()
	tx := domain.Transaction{
		ID:            uuid.NewString(),
		Date:          applyDate,
		Description:   plan.Description,
		Amount:        plan.Amount,
		Type:          plan.Type,
		Category:      plan.Category,
		IsPaid:        false,
		RelatedPlanID: plan.ID,
		LastModified:  now,
	}
	l.ds.Transactions = append(l.ds.Transactions, tx)
	l.ds.LastModified = now

	fields := []Field{FieldTransactions, FieldPlans, FieldLastModified}
	if plan.IsRecurring() {
		l.ds.Plans[idx].OccurrencesGenerated++
		l.ds.Plans[idx].LastModified = now
	} else {
		l.removePlanLocked(plan.ID, now)
		fields = append(fields, FieldDeletedIDs)
	}

	l.log.Info().
		Str("plan_id", plan.ID).
		Str("transaction_id", tx.ID).
		Str("date", applyDate.String()).
		Msg("Plan occurrence applied")
	return tx, fields, nil
}

// skipLocked consumes the plan's next occurrence without producing cashflow.
func (l *Ledger) skipLocked(idx int, now domain.Stamp) []Field {
	plan := l.ds.Plans[idx]
	if !plan.IsRecurring() {
		l.removePlanLocked(plan.ID, now)
		return []Field{FieldPlans, FieldDeletedIDs, FieldLastModified}
	}
	l.ds.Plans[idx].OccurrencesGenerated++
	l.ds.Plans[idx].LastModified = now
	l.ds.LastModified = now
	return []Field{FieldPlans, FieldLastModified}
}

// moveLocked relocates the plan's next occurrence to target.
func (l *Ledger) moveLocked(idx int, target civil.Date, now domain.Stamp) []Field {
	plan := &l.ds.Plans[idx]
	l.ds.LastModified = now

	if !plan.IsRecurring() {
		plan.StartDate = target
		plan.LastModified = now
		return []Field{FieldPlans, FieldLastModified}
	}

	plan.OccurrencesGenerated++
	plan.LastModified = now
	moved := domain.RecurringPlan{
		ID:           uuid.NewString(),
		Description:  plan.Description,
		Amount:       plan.Amount,
		Type:         plan.Type,
		Category:     plan.Category,
		Frequency:    domain.OneTime,
		StartDate:    target,
		LastModified: now,
	}
	l.ds.Plans = append(l.ds.Plans, moved)
	l.log.Debug().Str("plan_id", plan.ID).Str("moved_plan_id", moved.ID).Msg("Occurrence moved to one-time plan")
	return []Field{FieldPlans, FieldLastModified}
}
