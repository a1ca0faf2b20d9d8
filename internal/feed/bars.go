package feed

import (
	"sync"
	"time"
)

// BarClock derives bar times from trade prints on a fixed bar period.
type BarClock struct {
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current time.Time // open time of the bar holding the latest print
}

func NewBarClock(period time.Duration, now func() time.Time) *BarClock {
	if period <= 0 {
		period = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &BarClock{period: period, now: now}
}

// Observe records a print at t. Prints older than the current bar are ignored.
func (b *BarClock) Observe(t time.Time) {
	open := t.Truncate(b.period)
	b.mu.Lock()
	if open.After(b.current) {
		b.current = open
	}
	b.mu.Unlock()
}

// Current is the open time of the bar holding the latest print, zero before any print.
func (b *BarClock) Current() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Last is the open time of the newest bar slot on the chart: the wall-clock
// bar, even if nothing has traded in it yet. Zero before any print.
func (b *BarClock) Last() time.Time {
	b.mu.Lock()
	cur := b.current
	b.mu.Unlock()
	if cur.IsZero() {
		return cur
	}
	wall := b.now().Truncate(b.period)
	if wall.After(cur) {
		return wall
	}
	return cur
}

func (b *BarClock) Period() time.Duration { return b.period }
