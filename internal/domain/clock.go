package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// Stamp is a modification or deletion time in Unix milliseconds.
type Stamp int64

// StampOf converts t to a Stamp.
func StampOf(t time.Time) Stamp {
	return Stamp(t.UnixMilli())
}

// Time converts the stamp back to a time in the local zone.
func (s Stamp) Time() time.Time {
	return time.UnixMilli(int64(s))
}

// Clock supplies the current time. Production code uses SystemClock;
// tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Today returns the current local calendar date.
func Today(c Clock) civil.Date {
	return civil.DateOf(c.Now())
}
