package projection

import (
	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/schedule"
	"github.com/shopspring/decimal"
)

// CurrentBalance is the running total of every recorded transaction.
func CurrentBalance(transactions []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		total = total.Add(tx.SignedAmount())
	}
	return total
}

// BuildSnapshot projects the balance to the end of the billing period containing viewDate.
// It is recomputed from scratch on every call.
func BuildSnapshot(transactions []domain.Transaction, plans []domain.RecurringPlan, cycleStartDay int, viewDate civil.Date) domain.FinancialSnapshot {
	period := schedule.PeriodFor(viewDate, cycleStartDay)
	current := CurrentBalance(transactions)

	income, expenses := decimal.Zero, decimal.Zero
	for _, plan := range plans {
		c := ContributionOf(plan, period)
		income = income.Add(c.Income)
		expenses = expenses.Add(c.Expense)
	}

	return domain.FinancialSnapshot{
		CurrentBalance:   current,
		ProjectedBalance: current.Add(income).Sub(expenses),
		UpcomingIncome:   income,
		UpcomingExpenses: expenses,
		PeriodStart:      period.Start,
		PeriodEnd:        period.End,
	}
}
