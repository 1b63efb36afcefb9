// Package ledger owns the in-memory dataset and every mutation applied to it:
// manual entries, plan application, period transitions and merges from sync.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/merge"
	"github.com/dvloznov/cashflow-planner/internal/projection"
	"github.com/dvloznov/cashflow-planner/internal/schedule"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Field names one independently persisted part of the state.
type Field string

const (
	FieldTransactions  Field = "transactions"
	FieldPlans         Field = "plans"
	FieldCycleStartDay Field = "cycleStartDay"
	FieldDeletedIDs    Field = "deletedIds"
	FieldLastModified  Field = "lastModified"
	FieldViewDate      Field = "viewDate"
)

// AllFields lists every persisted field.
var AllFields = []Field{FieldTransactions, FieldPlans, FieldCycleStartDay, FieldDeletedIDs, FieldLastModified, FieldViewDate}

// Origin tells listeners where a change came from.
type Origin string

const (
	// OriginLocal is a mutation made on this device.
	OriginLocal Origin = "local"
	// OriginSync is the result of merging a remote dataset.
	OriginSync Origin = "sync"
)

// State is the dataset plus the device-local view date.
type State struct {
	Dataset  domain.Dataset
	ViewDate civil.Date
}

// ChangeFunc is called after every committed change with a copy of the new state and
// the fields that changed. It runs while the ledger is locked and must not call back
// into the ledger.
type ChangeFunc func(state State, fields []Field, origin Origin)

// PlanView is a plan together with its next pending occurrence.
type PlanView struct {
	domain.RecurringPlan
	NextDue *civil.Date `json:"nextDue,omitempty"`
}

// TransactionInput describes a manually entered transaction.
type TransactionInput struct {
	Date        civil.Date
	Description string
	Amount      decimal.Decimal
	Type        domain.EntryType
	Category    string
}

// PlanInput describes a new plan.
type PlanInput struct {
	Description    string
	Amount         decimal.Decimal
	Type           domain.EntryType
	Category       string
	Frequency      domain.Frequency
	StartDate      civil.Date
	MaxOccurrences *int
	EndDate        *civil.Date
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu         sync.Mutex
	ds         domain.Dataset
	viewDate   civil.Date
	transition *Transition

	clock     domain.Clock
	log       zerolog.Logger
	listeners []ChangeFunc
}

// New creates a ledger over a previously loaded state. Missing settings are defaulted.
func New(state State, clock domain.Clock, log zerolog.Logger) *Ledger {
	ds := state.Dataset.Clone()
	if ds.CycleStartDay == 0 {
		ds.CycleStartDay = domain.DefaultCycleStartDay
	}
	ds.CycleStartDay = schedule.ClampCycleDay(ds.CycleStartDay)

	viewDate := state.ViewDate
	if !viewDate.IsValid() {
		viewDate = domain.Today(clock)
	}

	l := &Ledger{
		ds:       ds,
		viewDate: viewDate,
		clock:    clock,
		log:      log.With().Str("component", "ledger").Logger(),
	}
	l.repairPlanStarts(&l.ds)
	return l
}

func (l *Ledger) repairPlanStarts(ds *domain.Dataset) {
	if ids := ds.RepairPlanStarts(domain.Today(l.clock)); len(ids) > 0 {
		l.log.Warn().Strs("plan_ids", ids).Msg("Invalid plan start dates replaced with today")
	}
}

// OnChange registers a listener for committed changes.
func (l *Ledger) OnChange(fn ChangeFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// State returns a copy of the current state.
func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *Ledger) stateLocked() State {
	return State{Dataset: l.ds.Clone(), ViewDate: l.viewDate}
}

// ViewDate returns the date the user is looking at.
func (l *Ledger) ViewDate() civil.Date {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewDate
}

// Period returns the billing period containing the view date.
func (l *Ledger) Period() schedule.Period {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.periodLocked()
}

func (l *Ledger) periodLocked() schedule.Period {
	return schedule.PeriodFor(l.viewDate, l.ds.CycleStartDay)
}

// Snapshot computes balances for the current view.
func (l *Ledger) Snapshot() domain.FinancialSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return projection.BuildSnapshot(l.ds.Transactions, l.ds.Plans, l.ds.CycleStartDay, l.viewDate)
}

// Transactions lists transactions, newest first.
func (l *Ledger) Transactions() []domain.Transaction {
	l.mu.Lock()
	out := make([]domain.Transaction, len(l.ds.Transactions))
	copy(out, l.ds.Transactions)
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Plans lists plans by id with their next due date.
func (l *Ledger) Plans() []PlanView {
	l.mu.Lock()
	plans := l.ds.Clone().Plans
	l.mu.Unlock()

	sort.SliceStable(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })

	out := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		view := PlanView{RecurringPlan: p}
		if due, ok := projection.NextDue(p); ok {
			view.NextDue = &due
		}
		out = append(out, view)
	}
	return out
}

// AddTransaction records a manual, already paid transaction.
func (l *Ledger) AddTransaction(in TransactionInput) (domain.Transaction, error) {
	if err := validateEntry(in.Amount, in.Type); err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}
	if !in.Date.IsValid() {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", invalid("date %q", in.Date))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.stampLocked()
	tx := domain.Transaction{
		ID:           uuid.NewString(),
		Date:         in.Date,
		Description:  label(in.Description),
		Amount:       in.Amount,
		Type:         in.Type,
		Category:     domain.CleanLabel(in.Category),
		IsPaid:       true,
		LastModified: now,
	}
	l.ds.Transactions = append(l.ds.Transactions, tx)
	l.ds.LastModified = now

	l.log.Debug().Str("transaction_id", tx.ID).Msg("Transaction added")
	l.commitLocked(OriginLocal, FieldTransactions, FieldLastModified)
	return tx, nil
}

// DeleteTransaction removes a transaction and records a tombstone. When the
// transaction came from a plan, that plan gets the occurrence back.
func (l *Ledger) DeleteTransaction(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.txIndexLocked(id)
	if idx < 0 {
		return fmt.Errorf("DeleteTransaction: %s: %w", id, ErrTransactionNotFound)
	}
	tx := l.ds.Transactions[idx]

	now := l.stampLocked()
	l.ds.Transactions = append(l.ds.Transactions[:idx], l.ds.Transactions[idx+1:]...)
	l.ds.DeletedIDs.Record(id, now)
	l.ds.LastModified = now

	fields := []Field{FieldTransactions, FieldDeletedIDs, FieldLastModified}
	if tx.RelatedPlanID != "" {
		if p := l.planIndexLocked(tx.RelatedPlanID); p >= 0 {
			plan := &l.ds.Plans[p]
			if plan.OccurrencesGenerated > 0 {
				plan.OccurrencesGenerated--
			}
			plan.LastModified = now
			fields = append(fields, FieldPlans)
		}
	}

	l.log.Debug().Str("transaction_id", id).Str("plan_id", tx.RelatedPlanID).Msg("Transaction deleted")
	l.commitLocked(OriginLocal, fields...)
	return nil
}

// AddPlan creates a plan with no occurrences generated yet.
func (l *Ledger) AddPlan(in PlanInput) (domain.RecurringPlan, error) {
	if err := validateEntry(in.Amount, in.Type); err != nil {
		return domain.RecurringPlan{}, fmt.Errorf("AddPlan: %w", err)
	}
	if !in.Frequency.Valid() {
		return domain.RecurringPlan{}, fmt.Errorf("AddPlan: %w", invalid("frequency %q", in.Frequency))
	}
	if !in.StartDate.IsValid() {
		return domain.RecurringPlan{}, fmt.Errorf("AddPlan: %w", invalid("start date %q", in.StartDate))
	}
	if in.MaxOccurrences != nil && *in.MaxOccurrences < 0 {
		return domain.RecurringPlan{}, fmt.Errorf("AddPlan: %w", invalid("max occurrences %d", *in.MaxOccurrences))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.stampLocked()
	plan := domain.RecurringPlan{
		ID:             uuid.NewString(),
		Description:    label(in.Description),
		Amount:         in.Amount,
		Type:           in.Type,
		Category:       domain.CleanLabel(in.Category),
		Frequency:      in.Frequency,
		StartDate:      in.StartDate,
		MaxOccurrences: in.MaxOccurrences,
		EndDate:        in.EndDate,
		LastModified:   now,
	}
	l.ds.Plans = append(l.ds.Plans, plan)
	l.ds.LastModified = now

	l.log.Debug().Str("plan_id", plan.ID).Str("frequency", string(plan.Frequency)).Msg("Plan added")
	l.commitLocked(OriginLocal, FieldPlans, FieldLastModified)
	return plan, nil
}

// DeletePlan removes a plan and records a tombstone. Transactions it produced are kept.
func (l *Ledger) DeletePlan(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.planIndexLocked(id) < 0 {
		return fmt.Errorf("DeletePlan: %s: %w", id, ErrPlanNotFound)
	}
	l.removePlanLocked(id, l.stampLocked())
	l.commitLocked(OriginLocal, FieldPlans, FieldDeletedIDs, FieldLastModified)
	return nil
}

// SetCycleStartDay changes the day of month on which billing periods begin.
func (l *Ledger) SetCycleStartDay(day int) error {
	if day < 1 || day > 31 {
		return fmt.Errorf("SetCycleStartDay: %w", invalid("cycle start day %d", day))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.ds.CycleStartDay = day
	l.ds.LastModified = l.stampLocked()
	l.commitLocked(OriginLocal, FieldCycleStartDay, FieldLastModified)
	return nil
}

// MergeRemote merges a pulled dataset into the current state and returns the merged
// dataset, which the caller pushes back. Listeners see OriginSync.
func (l *Ledger) MergeRemote(remote domain.Dataset) domain.Dataset {
	return l.merge(remote, OriginSync)
}

// Import merges an imported dataset, such as a restored backup, into the current
// state. Unlike MergeRemote the change counts as local and is synced onwards.
func (l *Ledger) Import(ds domain.Dataset) domain.Dataset {
	return l.merge(ds, OriginLocal)
}

func (l *Ledger) merge(other domain.Dataset, origin Origin) domain.Dataset {
	l.mu.Lock()
	defer l.mu.Unlock()

	other = other.Clone()
	l.repairPlanStarts(&other)

	merged := merge.Datasets(l.ds, other, l.stampLocked())
	changed := changedFields(l.ds, merged)

	l.ds = merged
	l.log.Debug().
		Str("origin", string(origin)).
		Int("transactions", len(merged.Transactions)).
		Int("plans", len(merged.Plans)).
		Int("tombstones", len(merged.DeletedIDs)).
		Msg("Dataset merged")

	l.commitLocked(origin, changed...)
	return merged.Clone()
}

// stampLocked returns a modification stamp strictly later than the dataset's.
func (l *Ledger) stampLocked() domain.Stamp {
	now := domain.StampOf(l.clock.Now())
	if now <= l.ds.LastModified {
		now = l.ds.LastModified + 1
	}
	return now
}

func (l *Ledger) commitLocked(origin Origin, fields ...Field) {
	if len(fields) == 0 {
		return
	}
	state := l.stateLocked()
	for _, fn := range l.listeners {
		fn(state, fields, origin)
	}
}

func (l *Ledger) txIndexLocked(id string) int {
	for i, tx := range l.ds.Transactions {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) planIndexLocked(id string) int {
	for i, p := range l.ds.Plans {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) removePlanLocked(id string, now domain.Stamp) {
	if idx := l.planIndexLocked(id); idx >= 0 {
		l.ds.Plans = append(l.ds.Plans[:idx], l.ds.Plans[idx+1:]...)
	}
	if l.ds.DeletedIDs == nil {
		l.ds.DeletedIDs = domain.Tombstones{}
	}
	l.ds.DeletedIDs.Record(id, now)
	l.ds.LastModified = now
	l.log.Debug().Str("plan_id", id).Msg("Plan removed")
}

func validateEntry(amount decimal.Decimal, typ domain.EntryType) error {
	if amount.IsNegative() {
		return invalid("negative amount %s", amount)
	}
	if !typ.Valid() {
		return invalid("type %q", typ)
	}
	return nil
}

func label(s string) string {
	if cleaned := domain.CleanLabel(s); cleaned != "" {
		return cleaned
	}
	return domain.DefaultLabel
}

// changedFields compares the encoded form of each dataset field.
func changedFields(before, after domain.Dataset) []Field {
	var out []Field
	check := func(f Field, a, b any) {
		if !sameJSON(a, b) {
			out = append(out, f)
		}
	}
	check(FieldTransactions, before.Transactions, after.Transactions)
	check(FieldPlans, before.Plans, after.Plans)
	check(FieldCycleStartDay, before.CycleStartDay, after.CycleStartDay)
	check(FieldDeletedIDs, before.DeletedIDs, after.DeletedIDs)
	check(FieldLastModified, before.LastModified, after.LastModified)
	return out
}

func sameJSON(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb) || (isEmptyJSON(ab) && isEmptyJSON(bb))
}

// isEmptyJSON treats null, [] and {} alike so a nil slice equals an empty one.
func isEmptyJSON(b []byte) bool {
	switch string(b) {
	case "null", "[]", "{}":
		return true
	}
	return false
}
