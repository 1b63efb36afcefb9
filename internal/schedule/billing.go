package schedule

import (
	"time"

	"cloud.google.com/go/civil"
)

// Period is an inclusive billing window of calendar dates.
type Period struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// PeriodFor returns the billing period that contains viewDate for a cycle that restarts
// on cycleStartDay of every month.
//
// The start day is clamped to the length of its month (31 becomes 30 in April, 29 or 28
// in February). The period ends the day before the next period starts, which keeps
// consecutive periods gap-free and guarantees Start <= viewDate <= End.
func PeriodFor(viewDate civil.Date, cycleStartDay int) Period {
	day := ClampCycleDay(cycleStartDay)

	year, month := viewDate.Year, viewDate.Month
	if viewDate.Day < clampToMonth(year, month, day) {
		year, month = shiftMonth(year, month, -1)
	}
	start := civil.Date{Year: year, Month: month, Day: clampToMonth(year, month, day)}

	nextYear, nextMonth := shiftMonth(year, month, 1)
	nextStart := civil.Date{Year: nextYear, Month: nextMonth, Day: clampToMonth(nextYear, nextMonth, day)}

	return Period{Start: start, End: nextStart.AddDays(-1)}
}

// ClampCycleDay forces a configured cycle start day into [1, 31].
func ClampCycleDay(day int) int {
	switch {
	case day < 1:
		return 1
	case day > 31:
		return 31
	}
	return day
}

func clampToMonth(year int, month time.Month, day int) int {
	if n := DaysIn(year, month); day > n {
		return n
	}
	return day
}

// Contains reports whether d lies within the period.
func (p Period) Contains(d civil.Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Following returns the period right after p for the same cycle start day.
func (p Period) Following(cycleStartDay int) Period {
	return PeriodFor(p.End.AddDays(1), cycleStartDay)
}

// StartTime is the first instant of the period in loc.
func (p Period) StartTime(loc *time.Location) time.Time {
	return p.Start.In(loc)
}

// EndTime is the last millisecond of the period (23:59:59.999) in loc.
func (p Period) EndTime(loc *time.Location) time.Time {
	return p.End.AddDays(1).In(loc).Add(-time.Millisecond)
}
