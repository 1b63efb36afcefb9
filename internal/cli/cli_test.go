package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/backup"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/insights"
	"github.com/dvloznov/cashflow-planner/internal/jobs"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/dvloznov/cashflow-planner/internal/notionsync"
	"github.com/dvloznov/cashflow-planner/internal/syncer"
	"github.com/dvloznov/cashflow-planner/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-03-10, cycle day 1: the current period is March.
var now = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

type fakeSync struct {
	SyncFunc func(ctx context.Context, trigger jobs.Trigger) (*jobs.SyncRun, error)
}

func (f *fakeSync) Sync(ctx context.Context, trigger jobs.Trigger) (*jobs.SyncRun, error) {
	return f.SyncFunc(ctx, trigger)
}

type fakeBackups struct {
	ExportFunc func(ctx context.Context, location string) (backup.Document, error)
	ImportFunc func(ctx context.Context, location string) (domain.Dataset, error)
}

func (f *fakeBackups) Export(ctx context.Context, location string) (backup.Document, error) {
	return f.ExportFunc(ctx, location)
}

func (f *fakeBackups) Import(ctx context.Context, location string) (domain.Dataset, error) {
	return f.ImportFunc(ctx, location)
}

type fakeInsights struct {
	got insights.Input
}

func (f *fakeInsights) Insights(ctx context.Context, in insights.Input) string {
	f.got = in
	return "Spend less on coffee."
}

type fakeNotion struct {
	ExportFunc func(ctx context.Context, ds domain.Dataset, opts notionsync.Options) (notionsync.Result, error)
}

func (f *fakeNotion) Export(ctx context.Context, ds domain.Dataset, opts notionsync.Options) (notionsync.Result, error) {
	return f.ExportFunc(ctx, ds, opts)
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEnv() *Env {
	return &Env{Ledger: ledger.New(ledger.State{}, testutil.NewClock(now), zerolog.Nop())}
}

func execute(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	closed := 0
	env.Close = func() { closed++ }

	cmd := NewRootCommand(func(ctx context.Context, opts *RootOptions) (*Env, error) {
		return env, nil
	})
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	assert.LessOrEqual(t, closed, 1)
	return buf.String(), err
}

func decodeData(t *testing.T, out string, v interface{}) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, path := range [][]string{
		{"snapshot"}, {"tx", "add"}, {"tx", "list"}, {"tx", "delete"},
		{"plan", "add"}, {"plan", "list"}, {"plan", "delete"}, {"plan", "apply"}, {"plan", "apply-now"},
		{"period", "change"}, {"cycle-day"}, {"sync"}, {"backup", "export"}, {"backup", "import"},
		{"insights"}, {"notion-export"},
	} {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, newEnv(), "--format", "yaml", "snapshot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestOpenFailure(t *testing.T) {
	cmd := NewRootCommand(func(ctx context.Context, opts *RootOptions) (*Env, error) {
		return nil, errors.New("database is locked")
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"snapshot"})

	err := cmd.Execute()
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database is locked")
}

func TestTransactionCommands(t *testing.T) {
	env := newEnv()

	out, err := execute(t, env, "--format", "json", "tx", "add",
		"--date", "2024-03-02", "--amount", "12.50", "--description", "Lunch", "--category", "Food")
	require.NoError(t, err)

	var tx domain.Transaction
	decodeData(t, out, &tx)
	assert.Equal(t, "Lunch", tx.Description)
	assert.True(t, tx.IsPaid)
	assert.Equal(t, domain.Expense, tx.Type)

	out, err = execute(t, env, "tx", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "-12.50")
	assert.Contains(t, out, tx.ID)

	out, err = execute(t, env, "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "Balance:    -12.50")

	_, err = execute(t, env, "tx", "delete", tx.ID)
	require.NoError(t, err)
	assert.Empty(t, env.Ledger.Transactions())
	assert.Contains(t, env.Ledger.State().Dataset.DeletedIDs, tx.ID)

	_, err = execute(t, env, "tx", "delete", tx.ID)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTransactionAddValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad date", []string{"--date", "03/02/2024", "--amount", "1"}},
		{"bad amount", []string{"--date", "2024-03-02", "--amount", "ten"}},
		{"negative amount", []string{"--date", "2024-03-02", "--amount=-5"}},
		{"unknown type", []string{"--date", "2024-03-02", "--amount", "5", "--type", "transfer"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv()
			_, err := execute(t, env, append([]string{"tx", "add"}, tc.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Empty(t, env.Ledger.Transactions())
		})
	}
}

func TestPlanCommands(t *testing.T) {
	env := newEnv()

	out, err := execute(t, env, "--format", "json", "plan", "add",
		"--description", "Rent", "--amount", "900", "--frequency", "monthly", "--start", "2024-03-25", "--max", "12")
	require.NoError(t, err)
	var plan domain.RecurringPlan
	decodeData(t, out, &plan)
	require.NotNil(t, plan.MaxOccurrences)
	assert.Equal(t, 12, *plan.MaxOccurrences)

	out, err = execute(t, env, "plan", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-03-25")
	assert.Contains(t, out, "0/12")

	out, err = execute(t, env, "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "Projected:  -900.00")

	_, err = execute(t, env, "plan", "apply", plan.ID, "--date", "2024-03-24")
	require.NoError(t, err)

	txs := env.Ledger.Transactions()
	require.Len(t, txs, 1)
	assert.False(t, txs[0].IsPaid)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 24}, txs[0].Date)
	assert.Equal(t, plan.ID, txs[0].RelatedPlanID)

	_, err = execute(t, env, "plan", "delete", plan.ID)
	require.NoError(t, err)
	assert.Empty(t, env.Ledger.Plans())
	assert.Len(t, env.Ledger.Transactions(), 1)
}

func TestApplyNowCycleDecision(t *testing.T) {
	env := newEnv()
	plan, err := env.Ledger.AddPlan(ledger.PlanInput{
		Description: "Salary",
		Amount:      mustDecimal("2500"),
		Type:        domain.Income,
		Frequency:   domain.Monthly,
		StartDate:   civil.Date{Year: 2024, Month: 4, Day: 5},
	})
	require.NoError(t, err)

	out, err := execute(t, env, "plan", "apply-now", plan.ID)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "--cycle shift")
	assert.Empty(t, out)
	assert.Empty(t, env.Ledger.Transactions())

	_, err = execute(t, env, "plan", "apply-now", plan.ID, "--cycle", "sideways")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err = execute(t, env, "plan", "apply-now", plan.ID, "--cycle", "shift")
	require.NoError(t, err)
	assert.Contains(t, out, "2500.00 on 2024-04-05")

	state := env.Ledger.State()
	assert.Equal(t, 5, state.Dataset.CycleStartDay)
	assert.Equal(t, civil.Date{Year: 2024, Month: 4, Day: 5}, state.ViewDate)
}

func TestPeriodChange(t *testing.T) {
	setup := func(t *testing.T) (*Env, domain.RecurringPlan) {
		env := newEnv()
		plan, err := env.Ledger.AddPlan(ledger.PlanInput{
			Description: "Gym",
			Amount:      mustDecimal("40"),
			Type:        domain.Expense,
			Frequency:   domain.Monthly,
			StartDate:   civil.Date{Year: 2024, Month: 3, Day: 20},
		})
		require.NoError(t, err)
		return env, plan
	}

	t.Run("within period", func(t *testing.T) {
		env, _ := setup(t)
		_, err := execute(t, env, "period", "change", "2024-03-28")
		require.NoError(t, err)
		assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 28}, env.Ledger.ViewDate())
		assert.Equal(t, 1, env.Ledger.State().Dataset.CycleStartDay)
	})

	t.Run("open occurrences block the move", func(t *testing.T) {
		env, plan := setup(t)
		out, err := execute(t, env, "period", "change", "2024-04-15")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, plan.ID)
		assert.Contains(t, out, "2024-03-20")
		assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 10}, env.Ledger.ViewDate())
		assert.Nil(t, env.Ledger.Pending())
	})

	t.Run("resolve and advance", func(t *testing.T) {
		env, plan := setup(t)
		out, err := execute(t, env, "--format", "json", "period", "change", "2024-04-15", "--resolve", plan.ID+"=paid")
		require.NoError(t, err)

		var res periodResult
		decodeData(t, out, &res)
		assert.True(t, res.Advanced)
		assert.Equal(t, "paid", res.Resolved[plan.ID])

		state := env.Ledger.State()
		assert.Equal(t, 15, state.Dataset.CycleStartDay)
		assert.Equal(t, civil.Date{Year: 2024, Month: 4, Day: 15}, state.ViewDate)
		require.Len(t, state.Dataset.Transactions, 1)
		assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 20}, state.Dataset.Transactions[0].Date)
	})

	t.Run("force leaves items open", func(t *testing.T) {
		env, _ := setup(t)
		_, err := execute(t, env, "period", "change", "2024-04-15", "--force")
		require.NoError(t, err)
		assert.Equal(t, 15, env.Ledger.State().Dataset.CycleStartDay)
		assert.Empty(t, env.Ledger.Transactions())
	})

	t.Run("bad resolution", func(t *testing.T) {
		env, plan := setup(t)
		_, err := execute(t, env, "period", "change", "2024-04-15", "--resolve", plan.ID+"=later")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestCycleDay(t *testing.T) {
	env := newEnv()
	_, err := execute(t, env, "cycle-day", "25")
	require.NoError(t, err)
	assert.Equal(t, 25, env.Ledger.State().Dataset.CycleStartDay)

	_, err = execute(t, env, "cycle-day", "32")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSyncCommand(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		_, err := execute(t, newEnv(), "sync")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("disabled", func(t *testing.T) {
		env := newEnv()
		env.Sync = &fakeSync{SyncFunc: func(ctx context.Context, trigger jobs.Trigger) (*jobs.SyncRun, error) {
			return nil, syncer.ErrSyncDisabled
		}}
		_, err := execute(t, env, "sync")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("manual run", func(t *testing.T) {
		env := newEnv()
		env.Sync = &fakeSync{SyncFunc: func(ctx context.Context, trigger jobs.Trigger) (*jobs.SyncRun, error) {
			assert.Equal(t, jobs.TriggerManual, trigger)
			run := &jobs.SyncRun{SyncID: "household", StartedAt: now, Transactions: 3, Plans: 1}
			run.Finish(now.Add(250*time.Millisecond), nil)
			return run, nil
		}}
		out, err := execute(t, env, "sync")
		require.NoError(t, err)
		assert.Contains(t, out, "Synced household in 250ms: 3 transactions, 1 plans")
	})

	t.Run("failure", func(t *testing.T) {
		env := newEnv()
		env.Sync = &fakeSync{SyncFunc: func(ctx context.Context, trigger jobs.Trigger) (*jobs.SyncRun, error) {
			return nil, errors.New("bucket not found")
		}}
		_, err := execute(t, env, "sync")
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, err.Error(), "bucket not found")
	})
}

func TestBackupCommands(t *testing.T) {
	env := newEnv()
	env.Backup = &fakeBackups{
		ExportFunc: func(ctx context.Context, location string) (backup.Document, error) {
			assert.Equal(t, "gs://backups/cashflow.json", location)
			return backup.Document{Transactions: make([]domain.Transaction, 2)}, nil
		},
		ImportFunc: func(ctx context.Context, location string) (domain.Dataset, error) {
			return domain.Dataset{}, errors.New("invalid backup")
		},
	}

	out, err := execute(t, env, "backup", "export", "gs://backups/cashflow.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 transactions and 0 plans")

	_, err = execute(t, env, "backup", "import", "old.json")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInsightsCommand(t *testing.T) {
	env := newEnv()
	gen := &fakeInsights{}
	env.Insights = gen

	out, err := execute(t, env, "insights")
	require.NoError(t, err)
	assert.Equal(t, "Spend less on coffee.\n", out)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 1}, gen.got.Snapshot.PeriodStart)
}

func TestNotionExportCommand(t *testing.T) {
	env := newEnv()
	var got notionsync.Options
	env.Notion = &fakeNotion{ExportFunc: func(ctx context.Context, ds domain.Dataset, opts notionsync.Options) (notionsync.Result, error) {
		got = opts
		return notionsync.Result{Created: 2, Archived: 1}, nil
	}}

	out, err := execute(t, env, "notion-export", "--from", "2024-01-01", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "[dry run] created 2")
	assert.True(t, got.DryRun)
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 1}, got.From)
	assert.False(t, got.To.IsValid())

	_, err = execute(t, env, "notion-export", "--from", "2024-02-01", "--to", "2024-01-01")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, newEnv(), "notion-export")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
