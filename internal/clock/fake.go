package clock

import "time"

// FakeClock is a manually advanced Clock. Reconciliation and sweep tests
// use it to cross retention windows and polling cadences without waiting.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward; the next Now call observes the new time.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
