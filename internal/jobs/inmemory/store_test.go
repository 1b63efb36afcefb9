package inmemory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/cashflow-planner/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func run(id string, minutes int, status jobs.RunStatus, trigger jobs.Trigger) *jobs.SyncRun {
	return &jobs.SyncRun{
		RunID:     id,
		SyncID:    "household",
		Trigger:   trigger,
		Status:    status,
		StartedAt: base.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore(0)

	r := run("r1", 0, jobs.RunStatusRunning, jobs.TriggerManual)
	require.NoError(t, s.SaveRun(ctx, r))

	// Mutating the caller's copy must not leak into the store.
	r.Finish(base.Add(time.Second), nil)

	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, jobs.RunStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, s.SaveRun(ctx, r))
	got, err = s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, jobs.RunStatusCompleted, got.Status)
	assert.Equal(t, time.Second, got.Duration())
}

func TestStore_SaveRequiresID(t *testing.T) {
	s := NewStore(0)
	assert.Error(t, s.SaveRun(context.Background(), &jobs.SyncRun{}))
}

func TestStore_GetMissing(t *testing.T) {
	_, err := NewStore(0).GetRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, jobs.ErrRunNotFound))
}

func TestStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	s := NewStore(0)

	require.NoError(t, s.SaveRun(ctx, run("a", 0, jobs.RunStatusCompleted, jobs.TriggerStartup)))
	require.NoError(t, s.SaveRun(ctx, run("b", 1, jobs.RunStatusFailed, jobs.TriggerChange)))
	require.NoError(t, s.SaveRun(ctx, run("c", 2, jobs.RunStatusCompleted, jobs.TriggerChange)))
	require.NoError(t, s.SaveRun(ctx, run("d", 3, jobs.RunStatusCompleted, jobs.TriggerForeground)))

	tests := []struct {
		name   string
		filter jobs.RunFilter
		want   []string
	}{
		{"all newest first", jobs.RunFilter{}, []string{"d", "c", "b", "a"}},
		{"by status", jobs.RunFilter{Status: jobs.RunStatusCompleted}, []string{"d", "c", "a"}},
		{"by trigger", jobs.RunFilter{Trigger: jobs.TriggerChange}, []string{"c", "b"}},
		{"limit", jobs.RunFilter{Limit: 2}, []string{"d", "c"}},
		{"offset", jobs.RunFilter{Offset: 3}, []string{"a"}},
		{"offset past end", jobs.RunFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.filter)
			require.NoError(t, err)

			ids := []string{}
			for _, r := range runs {
				ids = append(ids, r.RunID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := NewStore(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveRun(ctx, run(fmt.Sprintf("r%d", i), i, jobs.RunStatusCompleted, jobs.TriggerChange)))
	}

	runs, err := s.ListRuns(ctx, jobs.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "r4", runs[0].RunID)
	assert.Equal(t, "r2", runs[2].RunID)

	_, err = s.GetRun(ctx, "r0")
	assert.ErrorIs(t, err, jobs.ErrRunNotFound)
}
