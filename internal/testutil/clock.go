// Package testutil holds helpers shared by package tests.
package testutil

import (
	"sync"
	"time"
)

// Clock is a controllable clock for tests.
//
// Now returns the current value and, when a step is configured, advances by it
// afterwards so that consecutive mutations get strictly increasing stamps.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock creates a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// NewSteppingClock creates a clock starting at t that advances by step on every read.
func NewSteppingClock(t time.Time, step time.Duration) *Clock {
	return &Clock{now: t, step: step}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
