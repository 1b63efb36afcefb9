package domain

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// DefaultCycleStartDay is used when no cycle start day has been configured.
const DefaultCycleStartDay = 1

// Tombstones maps a deleted record id to the time of its deletion.
type Tombstones map[string]Stamp

// Record marks id as deleted at ts, keeping the later timestamp if id is already present.
func (t Tombstones) Record(id string, ts Stamp) {
	if prev, ok := t[id]; !ok || ts > prev {
		t[id] = ts
	}
}

// Suppresses reports whether a record with this id last modified at ts counts as deleted.
func (t Tombstones) Suppresses(id string, ts Stamp) bool {
	deletedAt, ok := t[id]
	return ok && deletedAt > ts
}

// Clone returns an independent copy.
func (t Tombstones) Clone() Tombstones {
	out := make(Tombstones, len(t))
	for id, ts := range t {
		out[id] = ts
	}
	return out
}

// Dataset is the full synchronized state of one user.
// Its JSON form is the document stored in the remote sync row.
type Dataset struct {
	Transactions  []Transaction   `json:"transactions"`
	Plans         []RecurringPlan `json:"plans"`
	CycleStartDay int             `json:"cycleStartDay"`
	DeletedIDs    Tombstones      `json:"deletedIds"`
	LastModified  Stamp           `json:"lastModified"`
}

// RepairPlanStarts replaces invalid plan start dates with today and returns the ids of
// the plans it changed. Every schedule is anchored on StartDate.
func (d *Dataset) RepairPlanStarts(today civil.Date) []string {
	var repaired []string
	for i := range d.Plans {
		if !d.Plans[i].StartDate.IsValid() {
			d.Plans[i].StartDate = today
			repaired = append(repaired, d.Plans[i].ID)
		}
	}
	return repaired
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Transactions:  make([]Transaction, len(d.Transactions)),
		Plans:         make([]RecurringPlan, 0, len(d.Plans)),
		CycleStartDay: d.CycleStartDay,
		DeletedIDs:    d.DeletedIDs.Clone(),
		LastModified:  d.LastModified,
	}
	copy(out.Transactions, d.Transactions)
	for _, p := range d.Plans {
		out.Plans = append(out.Plans, p.clone())
	}
	return out
}

func (p RecurringPlan) clone() RecurringPlan {
	if p.MaxOccurrences != nil {
		v := *p.MaxOccurrences
		p.MaxOccurrences = &v
	}
	if p.EndDate != nil {
		v := *p.EndDate
		p.EndDate = &v
	}
	return p
}

// SortRecords orders transactions by date then id and plans by id,
// so two datasets with the same records compare equal.
func (d *Dataset) SortRecords() {
	sort.SliceStable(d.Transactions, func(i, j int) bool {
		a, b := d.Transactions[i], d.Transactions[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
	sort.SliceStable(d.Plans, func(i, j int) bool {
		return d.Plans[i].ID < d.Plans[j].ID
	})
}

// FinancialSnapshot is derived from a dataset and a view date. It is never stored.
type FinancialSnapshot struct {
	CurrentBalance   decimal.Decimal `json:"currentBalance"`
	ProjectedBalance decimal.Decimal `json:"projectedBalance"`
	UpcomingIncome   decimal.Decimal `json:"upcomingIncome"`
	UpcomingExpenses decimal.Decimal `json:"upcomingExpenses"`
	PeriodStart      civil.Date      `json:"periodStart"`
	PeriodEnd        civil.Date      `json:"periodEnd"`
}
