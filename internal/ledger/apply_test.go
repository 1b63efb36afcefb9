package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPlan_OneTimeIsRetired(t *testing.T) {
	l, rec := newLedger(t, domain.Dataset{Plans: []domain.RecurringPlan{oneTime("gift", date(2024, time.March, 20))}})

	tx, err := l.ApplyPlan("gift", date(2024, time.March, 18))
	require.NoError(t, err)

	assert.False(t, tx.IsPaid)
	assert.Equal(t, "gift", tx.RelatedPlanID)
	assert.Equal(t, date(2024, time.March, 18), tx.Date)
	assert.Empty(t, l.Plans())

	c := rec.last(t)
	assert.Contains(t, c.state.Dataset.DeletedIDs, "gift")
	assert.ElementsMatch(t, []Field{FieldTransactions, FieldPlans, FieldDeletedIDs, FieldLastModified}, c.fields)
}

func TestApplyPlan_RecurringAdvances(t *testing.T) {
	l, rec := newLedger(t, domain.Dataset{Plans: []domain.RecurringPlan{monthly("rent", date(2024, time.January, 1))}})

	_, err := l.ApplyPlan("rent", date(2024, time.January, 1))
	require.NoError(t, err)

	p, ok := findPlan(l.Plans(), "rent")
	require.True(t, ok)
	assert.Equal(t, 1, p.OccurrencesGenerated)
	require.NotNil(t, p.NextDue)
	assert.Equal(t, date(2024, time.February, 1), *p.NextDue)
	assert.NotContains(t, rec.last(t).state.Dataset.DeletedIDs, "rent")
}

func TestApplyPlan_Rejections(t *testing.T) {
	exhausted := monthly("done", date(2024, time.January, 1))
	exhausted.MaxOccurrences = intPtr(2)
	exhausted.OccurrencesGenerated = 2

	l, rec := newLedger(t, domain.Dataset{Plans: []domain.RecurringPlan{exhausted}})

	_, err := l.ApplyPlan("done", date(2024, time.March, 1))
	assert.ErrorIs(t, err, ErrPlanExhausted)

	_, err = l.ApplyPlan("missing", date(2024, time.March, 1))
	assert.ErrorIs(t, err, ErrPlanNotFound)

	assert.Empty(t, rec.changes)
	assert.Empty(t, l.Transactions())
}

func TestApplyNow(t *testing.T) {
	// View is 2024-03-10 with cycle day 1: current period is March, next is April.
	tests := []struct {
		name     string
		plan     domain.RecurringPlan
		wantDate *time.Month
		wantErr  error
	}{
		{name: "due this period", plan: monthly("p", date(2024, time.March, 5)), wantDate: monthPtr(time.March)},
		{name: "overdue", plan: monthly("p", date(2024, time.January, 20)), wantDate: monthPtr(time.January)},
		{name: "next period", plan: monthly("p", date(2024, time.April, 15)), wantErr: ErrNeedsCycleDecision},
		{name: "too far ahead", plan: monthly("p", date(2024, time.June, 1)), wantErr: ErrTooFarAhead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newLedger(t, domain.Dataset{Plans: []domain.RecurringPlan{tt.plan}})

			tx, err := l.ApplyNow("p")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, l.Transactions())
				p, _ := findPlan(l.Plans(), "p")
				assert.Equal(t, 0, p.OccurrencesGenerated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.plan.StartDate, tx.Date)
			assert.Equal(t, *tt.wantDate, tx.Date.Month)
		})
	}
}

func monthPtr(m time.Month) *time.Month { return &m }

func TestApplyNow_CycleDecisionCarriesDueDate(t *testing.T) {
	l, _ := newLedger(t, domain.Dataset{Plans: []domain.RecurringPlan{monthly("p", date(2024, time.April, 15))}})

	_, err := l.ApplyNow("p")

	var decision *CycleDecisionError
	require.True(t, errors.As(err, &decision))
	assert.Equal(t, "p", decision.PlanID)
	assert.Equal(t, date(2024, time.April, 15), decision.DueDate)
}

func TestConfirmApplyNow(t *testing.T) {
	t.Run("shift cycle", func(t *testing.T) {
		l, rec := newLedger(t, domain.Dataset{Plans: []domain.RecurringPlan{monthly("p", date(2024, time.April, 15))}})

		tx, err := l.ConfirmApplyNow("p", true)
		require.NoError(t, err)

		assert.Equal(t, date(2024, time.April, 15), tx.Date)
		assert.Equal(t, date(2024, time.April, 15), l.ViewDate())
		assert.Equal(t, 15, l.State().Dataset.CycleStartDay)
		assert.Contains(t, rec.last(t).fields, FieldViewDate)
		assert.Contains(t, rec.last(t).fields, FieldCycleStartDay)
	})

	t.Run("keep cycle", func(t *testing.T) {
		l, _ := newLedger(t, domain.Dataset{Plans: []domain.RecurringPlan{monthly("p", date(2024, time.April, 15))}})

		tx, err := l.ConfirmApplyNow("p", false)
		require.NoError(t, err)

		assert.Equal(t, date(2024, time.April, 15), tx.Date)
		assert.Equal(t, date(2024, time.March, 10), l.ViewDate())
		assert.Equal(t, 1, l.State().Dataset.CycleStartDay)
	})

	t.Run("too far ahead", func(t *testing.T) {
		l, rec := newLedger(t, domain.Dataset{Plans: []domain.RecurringPlan{monthly("p", date(2024, time.July, 1))}})

		_, err := l.ConfirmApplyNow("p", true)
		assert.ErrorIs(t, err, ErrTooFarAhead)
		assert.Empty(t, rec.changes)
	})
}

func TestApplyNow_PastEndDateIsExhausted(t *testing.T) {
	plan := monthly("p", date(2024, time.January, 31))
	plan.OccurrencesGenerated = 1
	end := date(2024, time.February, 10)
	plan.EndDate = &end

	l, _ := newLedger(t, domain.Dataset{Plans: []domain.RecurringPlan{plan}})

	_, err := l.ApplyNow("p")
	assert.ErrorIs(t, err, ErrPlanExhausted)
}

func TestApplyPlan_PastEndDateIsExhausted(t *testing.T) {
	plan := monthly("p", date(2024, time.January, 5))
	plan.OccurrencesGenerated = 2
	end := date(2024, time.February, 10)
	plan.EndDate = &end

	l, _ := newLedger(t, domain.Dataset{Plans: []domain.RecurringPlan{plan}})

	_, err := l.ApplyPlan("p", date(2024, time.March, 5))
	assert.ErrorIs(t, err, ErrPlanExhausted)

	ds := l.State().Dataset
	assert.Empty(t, ds.Transactions)
	assert.Equal(t, 2, ds.Plans[0].OccurrencesGenerated)
}
