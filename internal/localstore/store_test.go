package localstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/dvloznov/cashflow-planner/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, testutil.NewClock(now), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleState() ledger.State {
	maxOcc := 6
	return ledger.State{
		Dataset: domain.Dataset{
			Transactions: []domain.Transaction{{
				ID:           "t1",
				Date:         civil.Date{Year: 2024, Month: time.March, Day: 2},
				Description:  "Salary",
				Amount:       decimal.RequireFromString("2500.10"),
				Type:         domain.Income,
				Category:     "Work",
				IsPaid:       true,
				LastModified: 10,
			}},
			Plans: []domain.RecurringPlan{{
				ID:                   "p1",
				Description:          "Rent",
				Amount:               decimal.NewFromInt(900),
				Type:                 domain.Expense,
				Frequency:            domain.Monthly,
				StartDate:            civil.Date{Year: 2024, Month: time.January, Day: 1},
				OccurrencesGenerated: 2,
				MaxOccurrences:       &maxOcc,
				LastModified:         11,
			}},
			CycleStartDay: 25,
			DeletedIDs:    domain.Tombstones{"gone": 9},
			LastModified:  11,
		},
		ViewDate: civil.Date{Year: 2024, Month: time.April, Day: 1},
	}
}

func TestStore_EmptyDatabaseLoadsDefaults(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "ledger.db"))

	state, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Empty(t, state.Dataset.Transactions)
	assert.Empty(t, state.Dataset.Plans)
	assert.Empty(t, state.Dataset.DeletedIDs)
	assert.Equal(t, domain.DefaultCycleStartDay, state.Dataset.CycleStartDay)
	assert.Equal(t, domain.Stamp(0), state.Dataset.LastModified)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 10}, state.ViewDate)
}

func TestStore_SaveAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	want := sampleState()

	s := openStore(t, path)
	require.NoError(t, s.Save(context.Background(), want, ledger.AllFields))
	require.NoError(t, s.Close())

	// Reopening runs migrations again without error.
	s = openStore(t, path)
	got, err := s.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, got.Dataset.Transactions, 1)
	assert.Equal(t, "t1", got.Dataset.Transactions[0].ID)
	assert.True(t, want.Dataset.Transactions[0].Amount.Equal(got.Dataset.Transactions[0].Amount))
	require.Len(t, got.Dataset.Plans, 1)
	require.NotNil(t, got.Dataset.Plans[0].MaxOccurrences)
	assert.Equal(t, 6, *got.Dataset.Plans[0].MaxOccurrences)
	assert.Equal(t, 2, got.Dataset.Plans[0].OccurrencesGenerated)
	assert.Equal(t, 25, got.Dataset.CycleStartDay)
	assert.Equal(t, domain.Tombstones{"gone": 9}, got.Dataset.DeletedIDs)
	assert.Equal(t, domain.Stamp(11), got.Dataset.LastModified)
	assert.Equal(t, want.ViewDate, got.ViewDate)
}

func TestStore_SaveOnlyGivenFields(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	ctx := context.Background()

	state := sampleState()
	require.NoError(t, s.Save(ctx, state, ledger.AllFields))

	changed := sampleState()
	changed.Dataset.CycleStartDay = 3
	changed.Dataset.Transactions = nil
	require.NoError(t, s.Save(ctx, changed, []ledger.Field{ledger.FieldCycleStartDay}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Dataset.CycleStartDay)
	assert.Len(t, got.Dataset.Transactions, 1)
}

func TestStore_LoadRepairsLegacyRecords(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	ctx := context.Background()

	rows := map[string]string{
		"transactions":  `[{"id":"t1","name":"Old","date":"not a date","amount":-4,"type":"expense"}]`,
		"plans":         `[{"id":"p1","description":"","amount":"10","type":"income","frequency":"daily","startDate":"2024-02-01"}]`,
		"cycleStartDay": `"15"`,
		"viewDate":      `"garbage"`,
	}
	for k, v := range rows {
		_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, 0)`, k, v)
		require.NoError(t, err)
	}

	state, err := s.Load(ctx)
	require.NoError(t, err)

	today := civil.Date{Year: 2024, Month: time.March, Day: 10}
	require.Len(t, state.Dataset.Transactions, 1)
	tx := state.Dataset.Transactions[0]
	assert.Equal(t, "Old", tx.Description)
	assert.Equal(t, today, tx.Date)
	assert.Equal(t, "4", tx.Amount.String())

	require.Len(t, state.Dataset.Plans, 1)
	assert.Equal(t, domain.DefaultLabel, state.Dataset.Plans[0].Description)
	assert.Equal(t, domain.Monthly, state.Dataset.Plans[0].Frequency)

	assert.Equal(t, 15, state.Dataset.CycleStartDay)
	assert.Equal(t, today, state.ViewDate)
}

func TestStore_ListenPersistsLedgerChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s := openStore(t, path)
	ctx := context.Background()

	state, err := s.Load(ctx)
	require.NoError(t, err)

	l := ledger.New(state, testutil.NewSteppingClock(now, time.Millisecond), zerolog.Nop())
	l.OnChange(s.Listen)

	tx, err := l.AddTransaction(ledger.TransactionInput{
		Date:        civil.Date{Year: 2024, Month: time.March, Day: 5},
		Description: "Coffee",
		Amount:      decimal.NewFromInt(3),
		Type:        domain.Expense,
	})
	require.NoError(t, err)
	require.NoError(t, l.SetCycleStartDay(20))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Dataset.Transactions, 1)
	assert.Equal(t, tx.ID, got.Dataset.Transactions[0].ID)
	assert.Equal(t, 20, got.Dataset.CycleStartDay)
	assert.Equal(t, l.State().Dataset.LastModified, got.Dataset.LastModified)
}
