package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// EntryType tells whether a transaction or plan adds to or subtracts from the balance.
type EntryType string

const (
	// Income increases the balance.
	Income EntryType = "income"
	// Expense decreases the balance.
	Expense EntryType = "expense"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

// Signed returns amount with the sign implied by the entry type.
func (t EntryType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == Expense {
		return amount.Neg()
	}
	return amount
}

// Transaction is a single recorded cashflow event.
// Date is a calendar date in local civil time, never an instant.
type Transaction struct {
	ID          string          `json:"id"`
	Date        civil.Date      `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"` // magnitude, never negative
	Type        EntryType       `json:"type"`
	Category    string          `json:"category"`

	// IsPaid is true for manual entries and false for occurrences materialized from a plan.
	IsPaid bool `json:"isPaid"`

	// RelatedPlanID is a weak back-reference to the plan that produced this transaction.
	RelatedPlanID string `json:"relatedPlanId,omitempty"`

	LastModified Stamp `json:"lastModified"`
}

// SignedAmount returns the amount as it affects the balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Type.Signed(t.Amount)
}
