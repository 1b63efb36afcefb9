package projection

import (
	"testing"

	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuildSnapshot(t *testing.T) {
	transactions := []domain.Transaction{
		{ID: "t1", Date: date(2024, 1, 5), Amount: decimal.NewFromInt(1000), Type: domain.Income},
		{ID: "t2", Date: date(2024, 2, 5), Amount: decimal.NewFromInt(250), Type: domain.Expense},
	}
	salary := plan(domain.Monthly, date(2024, 3, 25), 2000, domain.Income)
	salary.ID = "salary"
	rent := plan(domain.Monthly, date(2024, 3, 28), 800, domain.Expense)
	rent.ID = "rent"

	snap := BuildSnapshot(transactions, []domain.RecurringPlan{salary, rent}, 20, date(2024, 3, 22))

	assert.Equal(t, "2024-03-20", snap.PeriodStart.String())
	assert.Equal(t, "2024-04-19", snap.PeriodEnd.String())
	assert.True(t, snap.CurrentBalance.Equal(decimal.NewFromInt(750)), snap.CurrentBalance.String())
	assert.True(t, snap.UpcomingIncome.Equal(decimal.NewFromInt(2000)))
	assert.True(t, snap.UpcomingExpenses.Equal(decimal.NewFromInt(800)))
	assert.True(t, snap.ProjectedBalance.Equal(decimal.NewFromInt(1950)), snap.ProjectedBalance.String())
}

func TestBuildSnapshot_CurrentBalanceIgnoresPeriod(t *testing.T) {
	transactions := []domain.Transaction{
		{ID: "old", Date: date(2019, 1, 1), Amount: decimal.NewFromInt(10), Type: domain.Income},
		{ID: "future", Date: date(2030, 1, 1), Amount: decimal.NewFromInt(3), Type: domain.Expense},
	}

	snap := BuildSnapshot(transactions, nil, 1, date(2024, 3, 1))
	assert.True(t, snap.CurrentBalance.Equal(decimal.NewFromInt(7)))
	assert.True(t, snap.ProjectedBalance.Equal(snap.CurrentBalance))
	assert.True(t, snap.UpcomingIncome.IsZero())
	assert.True(t, snap.UpcomingExpenses.IsZero())
}

func TestBuildSnapshot_SingleMonthlyPlan(t *testing.T) {
	for _, typ := range []domain.EntryType{domain.Income, domain.Expense} {
		p := plan(domain.Monthly, date(2024, 3, 10), 100, typ)
		snap := BuildSnapshot(nil, []domain.RecurringPlan{p}, 1, date(2024, 3, 1))

		hundred := decimal.NewFromInt(100)
		if typ == domain.Income {
			assert.True(t, snap.UpcomingIncome.Equal(hundred))
			assert.True(t, snap.ProjectedBalance.Equal(hundred))
		} else {
			assert.True(t, snap.UpcomingExpenses.Equal(hundred))
			assert.True(t, snap.ProjectedBalance.Equal(hundred.Neg()))
		}
	}
}
