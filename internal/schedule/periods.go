// Package schedule implements the calendar arithmetic behind plans and billing periods.
//
// All values are civil dates: a plan due on the 31st is due on the 31st in whatever
// zone the user happens to be in.
package schedule

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
)

// AddPeriods returns the date count periods of freq after anchor.
//
// Monthly and yearly steps that land past the end of a shorter month are clamped to
// that month's last day, so Jan 31 + 1 month is Feb 28 (or 29). One-time plans never
// move. An invalid anchor is returned unchanged; callers repair anchors against their
// own clock before projecting.
func AddPeriods(anchor civil.Date, freq domain.Frequency, count int) civil.Date {
	if !anchor.IsValid() {
		return anchor
	}

	switch freq {
	case domain.Weekly:
		return anchor.AddDays(7 * count)
	case domain.Monthly:
		return addMonths(anchor, count)
	case domain.Yearly:
		return addMonths(anchor, 12*count)
	default:
		return anchor
	}
}

func addMonths(d civil.Date, months int) civil.Date {
	t := time.Date(d.Year, d.Month+time.Month(months), d.Day, 0, 0, 0, 0, time.UTC)
	if t.Day() != d.Day {
		// Overflowed into the following month: day 0 of t's month is the last day of the target.
		t = time.Date(t.Year(), t.Month(), 0, 0, 0, 0, 0, time.UTC)
	}
	return civil.DateOf(t)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// shiftMonth normalizes (year, month+delta).
func shiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// ParseDate parses a stored date. Both plain dates ("2024-01-31") and timestamps
// starting with a date ("2024-01-31T00:00:00.000Z") are accepted; only the calendar
// part is kept. When s cannot be parsed, fallback is returned with ok=false.
func ParseDate(s string, fallback civil.Date) (d civil.Date, ok bool) {
	if len(s) >= 10 {
		if parsed, err := civil.ParseDate(s[:10]); err == nil && parsed.IsValid() {
			return parsed, true
		}
	}
	return fallback, false
}
