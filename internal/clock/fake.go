package clock

import "time"

// FakeClock is a manually advanced Clock for tests. Billing cutoffs
// (due dates, overdue scans, reference months) key off Now, so tests
// pin it and move it explicitly.
type FakeClock struct {
	now time.Time
}

// NewFakeClock pins the clock at t, normalized to UTC like the billing
// tables store their timestamps.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward (or back, with a negative d).
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
