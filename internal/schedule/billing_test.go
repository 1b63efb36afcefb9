package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodFor(t *testing.T) {
	tests := []struct {
		name      string
		view      string
		startDay  int
		wantStart string
		wantEnd   string
	}{
		{"view before start day", "2024-03-15", 20, "2024-02-20", "2024-03-19"},
		{"view on start day", "2024-03-20", 20, "2024-03-20", "2024-04-19"},
		{"first of month cycle", "2024-03-15", 1, "2024-03-01", "2024-03-31"},
		{"start day clamps in short month", "2024-04-30", 31, "2024-04-30", "2024-05-30"},
		{"leap february clamp", "2024-02-29", 31, "2024-02-29", "2024-03-30"},
		{"end clamps to leap february", "2024-02-10", 31, "2024-01-31", "2024-02-28"},
		{"across year boundary", "2024-01-05", 25, "2023-12-25", "2024-01-24"},
		{"out of range day is clamped", "2024-03-15", 0, "2024-03-01", "2024-03-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, ok := ParseDate(tt.view, date(1, 1, 1))
			require.True(t, ok)

			p := PeriodFor(view, tt.startDay)
			assert.Equal(t, tt.wantStart, p.Start.String())
			assert.Equal(t, tt.wantEnd, p.End.String())
		})
	}
}

func TestPeriodFor_EndTime(t *testing.T) {
	view := date(2024, 3, 15)
	p := PeriodFor(view, 20)

	end := p.EndTime(time.UTC)
	assert.Equal(t, "2024-03-19T23:59:59.999Z", end.Format("2006-01-02T15:04:05.000Z07:00"))
	assert.Equal(t, time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), p.StartTime(time.UTC))
}

func TestPeriodFor_AlwaysContainsViewDate(t *testing.T) {
	first := date(2023, 1, 1)
	last := date(2025, 12, 31)

	for view := first; !view.After(last); view = view.AddDays(1) {
		for day := 1; day <= 31; day++ {
			p := PeriodFor(view, day)
			if !p.Contains(view) {
				t.Fatalf("PeriodFor(%s, %d) = [%s, %s] does not contain view date", view, day, p.Start, p.End)
			}
		}
	}
}

func TestPeriodFor_ConsecutivePeriodsAreContiguous(t *testing.T) {
	for day := 1; day <= 31; day++ {
		p := PeriodFor(date(2024, 1, 15), day)
		for i := 0; i < 24; i++ {
			next := p.Following(day)
			assert.Equal(t, p.End.AddDays(1), next.Start, "cycle day %d after %s", day, p.End)
			p = next
		}
	}
}
