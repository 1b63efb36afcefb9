package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Frequency is the recurrence interval of a plan.
type Frequency string

const (
	OneTime Frequency = "one-time"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case OneTime, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// RecurringPlan is a template that produces transactions over time.
//
// Occurrence #n of a plan falls on StartDate advanced by n periods of Frequency.
// OccurrencesGenerated counts occurrences already materialized or skipped, so the
// next pending occurrence is always the one at index OccurrencesGenerated.
type RecurringPlan struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        EntryType       `json:"type"`
	Category    string          `json:"category"`
	Frequency   Frequency       `json:"frequency"`
	StartDate   civil.Date      `json:"startDate"`

	OccurrencesGenerated int `json:"occurrencesGenerated"`

	// MaxOccurrences caps the number of occurrences when set.
	MaxOccurrences *int `json:"maxOccurrences,omitempty"`

	// EndDate is a hard cutoff; no occurrence may fall after it.
	EndDate *civil.Date `json:"endDate,omitempty"`

	LastModified Stamp `json:"lastModified"`
}

// Exhausted reports whether the plan has produced every occurrence it is allowed to.
func (p RecurringPlan) Exhausted() bool {
	return p.MaxOccurrences != nil && p.OccurrencesGenerated >= *p.MaxOccurrences
}

// IsRecurring is false for one-time plans.
func (p RecurringPlan) IsRecurring() bool {
	return p.Frequency != OneTime
}

// PastEnd reports whether date lies after the plan's EndDate.
func (p RecurringPlan) PastEnd(date civil.Date) bool {
	return p.EndDate != nil && date.After(*p.EndDate)
}
