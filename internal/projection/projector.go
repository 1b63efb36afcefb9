// Package projection simulates plan occurrences and builds balance snapshots.
package projection

import (
	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/schedule"
	"github.com/shopspring/decimal"
)

// MaxSimulatedOccurrences bounds the simulation loop for a single plan.
// Plans anchored far in the past with a short frequency would otherwise walk
// thousands of occurrences; past the bound the projection is silently truncated.
const MaxSimulatedOccurrences = 100

// Occurrence is one instance of a plan's cashflow.
type Occurrence struct {
	PlanID string           `json:"planId"`
	Index  int              `json:"index"`
	Date   civil.Date       `json:"date"`
	Amount decimal.Decimal  `json:"amount"`
	Type   domain.EntryType `json:"type"`
}

// Contribution is what a plan adds to a period, split by direction.
type Contribution struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Net returns income minus expense.
func (c Contribution) Net() decimal.Decimal {
	return c.Income.Sub(c.Expense)
}

// NextDue returns the date of the plan's next pending occurrence and whether the plan
// can still produce one (not exhausted and not past its end date).
func NextDue(plan domain.RecurringPlan) (civil.Date, bool) {
	if plan.Exhausted() {
		return civil.Date{}, false
	}
	due := schedule.AddPeriods(plan.StartDate, plan.Frequency, plan.OccurrencesGenerated)
	if plan.PastEnd(due) {
		return civil.Date{}, false
	}
	return due, true
}

// Occurrences lists the plan's pending occurrences that fall inside window, starting
// from the first not yet generated.
func Occurrences(plan domain.RecurringPlan, window schedule.Period) []Occurrence {
	var out []Occurrence

	index := plan.OccurrencesGenerated
	date := schedule.AddPeriods(plan.StartDate, plan.Frequency, index)

	for i := 0; i < MaxSimulatedOccurrences; i++ {
		if date.After(window.End) {
			break
		}
		if plan.MaxOccurrences != nil && index >= *plan.MaxOccurrences {
			break
		}
		if plan.PastEnd(date) {
			break
		}

		if !date.Before(window.Start) {
			out = append(out, Occurrence{
				PlanID: plan.ID,
				Index:  index,
				Date:   date,
				Amount: plan.Amount,
				Type:   plan.Type,
			})
		}

		if !plan.IsRecurring() {
			break
		}
		index++
		date = schedule.AddPeriods(plan.StartDate, plan.Frequency, index)
	}

	return out
}

// ContributionOf sums the plan's in-window occurrences.
func ContributionOf(plan domain.RecurringPlan, window schedule.Period) Contribution {
	c := Contribution{Income: decimal.Zero, Expense: decimal.Zero}
	for _, occ := range Occurrences(plan, window) {
		if occ.Type == domain.Income {
			c.Income = c.Income.Add(occ.Amount)
		} else {
			c.Expense = c.Expense.Add(occ.Amount)
		}
	}
	return c
}
