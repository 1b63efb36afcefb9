package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type fakeGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
	calls        int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.GenerateFunc(ctx, prompt)
}

func sampleInput(stamp domain.Stamp) Input {
	return Input{
		Transactions: []domain.Transaction{
			{ID: "t1", Date: civil.Date{Year: 2024, Month: time.March, Day: 1}, Description: "Salary", Amount: decimal.NewFromInt(3000), Type: domain.Income},
			{ID: "t2", Date: civil.Date{Year: 2024, Month: time.March, Day: 3}, Description: "Groceries", Amount: decimal.NewFromInt(80), Type: domain.Expense, Category: "Food"},
			{ID: "t3", Date: civil.Date{Year: 2024, Month: time.March, Day: 4}, Description: "Taxi", Amount: decimal.NewFromInt(20), Type: domain.Expense},
		},
		Plans: []domain.RecurringPlan{
			{ID: "p1", Description: "Rent", Amount: decimal.NewFromInt(1200), Type: domain.Expense, Frequency: domain.Monthly, StartDate: civil.Date{Year: 2024, Month: time.January, Day: 1}},
		},
		Snapshot: domain.FinancialSnapshot{
			CurrentBalance:   decimal.NewFromInt(2900),
			ProjectedBalance: decimal.NewFromInt(1700),
			UpcomingExpenses: decimal.NewFromInt(1200),
			PeriodStart:      civil.Date{Year: 2024, Month: time.March, Day: 1},
			PeriodEnd:        civil.Date{Year: 2024, Month: time.March, Day: 31},
		},
		Stamp: stamp,
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(sampleInput(1))

	assert.Contains(t, prompt, "Billing period: 2024-03-01 to 2024-03-31")
	assert.Contains(t, prompt, "Current balance: 2900.00")
	assert.Contains(t, prompt, "Rent: expense 1200.00, monthly from 2024-01-01")
	assert.Contains(t, prompt, "2024-03-03 Groceries -80.00 (Food)")
	assert.Contains(t, prompt, "Uncategorized: 20.00")
	assert.NotContains(t, prompt, "Uncategorized: 3000")
}

func TestService_CachesByStamp(t *testing.T) {
	gen := &fakeGenerator{GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
		return "```\nSpend less on taxis.\n```", nil
	}}
	svc := NewService(gen, time.Minute, zerolog.Nop())

	assert.Equal(t, "Spend less on taxis.", svc.Insights(context.Background(), sampleInput(1)))
	assert.Equal(t, "Spend less on taxis.", svc.Insights(context.Background(), sampleInput(1)))
	assert.Equal(t, 1, gen.calls)

	svc.Insights(context.Background(), sampleInput(2))
	assert.Equal(t, 2, gen.calls)
}

func TestService_FailureReturnsApology(t *testing.T) {
	gen := &fakeGenerator{GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("quota exceeded")
	}}
	svc := NewService(gen, time.Minute, zerolog.Nop())

	assert.Equal(t, Apology, svc.Insights(context.Background(), sampleInput(1)))
	assert.Equal(t, Apology, svc.Insights(context.Background(), sampleInput(1)))
	assert.Equal(t, 2, gen.calls, "failures are not cached")

	assert.Equal(t, Apology, NewService(nil, 0, zerolog.Nop()).Insights(context.Background(), sampleInput(1)))
}

func TestService_BlankResponseReturnsApology(t *testing.T) {
	gen := &fakeGenerator{GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
		return "  \n ", nil
	}}
	svc := NewService(gen, time.Minute, zerolog.Nop())

	assert.Equal(t, Apology, svc.Insights(context.Background(), sampleInput(1)))
}
