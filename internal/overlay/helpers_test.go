package overlay

import (
	"sync"
	"time"

	"priceline/internal/depth"
)

// fakeClock fires timers only when the test advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, running due callbacks in order on the caller's goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *fakeClock) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[len(c.timers)-1]
}

// fakeFeed serves fixed values and counts level reads.
type fakeFeed struct {
	mu        sync.Mutex
	connected bool
	bids      []depth.PriceLevel
	asks      []depth.PriceLevel
	last      float64
	current   time.Time
	lastBar   time.Time
	reads     int
}

func newFakeFeed(bid, ask depth.PriceLevel, last float64) *fakeFeed {
	bar := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	return &fakeFeed{
		connected: true,
		bids:      []depth.PriceLevel{bid},
		asks:      []depth.PriceLevel{ask},
		last:      last,
		current:   bar,
		lastBar:   bar,
	}
}

func (f *fakeFeed) set(bid, ask depth.PriceLevel, last float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bids = []depth.PriceLevel{bid}
	f.asks = []depth.PriceLevel{ask}
	f.last = last
}

func (f *fakeFeed) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *fakeFeed) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeFeed) BidLevels() []depth.PriceLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.bids
}

func (f *fakeFeed) AskLevels() []depth.PriceLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.asks
}

func (f *fakeFeed) LastTradePrice() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.last
}

func (f *fakeFeed) CurrentBarTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.current
}

func (f *fakeFeed) LastBarTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.lastBar
}

type drawnLine struct {
	stroke   Stroke
	from, to Point
}

// recordingHost maps time linearly from origin at pxPerSec and price as
// y = yZero - price*pxPerPrice.
type recordingHost struct {
	mu         sync.Mutex
	origin     time.Time
	pxPerSec   float64
	yZero      float64
	pxPerPrice float64
	barWidth   float64
	rightEdge  time.Time
	redraws    int
	lines      []drawnLine
}

func newRecordingHost(origin time.Time) *recordingHost {
	return &recordingHost{
		origin:     origin,
		pxPerSec:   1,
		yZero:      10000,
		pxPerPrice: 10,
		barWidth:   10,
		rightEdge:  origin.Add(10 * time.Minute),
	}
}

func (h *recordingHost) ChartPointToScreen(t time.Time, price float64) Point {
	return Point{X: t.Sub(h.origin).Seconds() * h.pxPerSec, Y: h.yZero - price*h.pxPerPrice}
}

func (h *recordingHost) BarWidth() float64        { return h.barWidth }
func (h *recordingHost) RightEdgeTime() time.Time { return h.rightEdge }

func (h *recordingHost) RequestRedraw() {
	h.mu.Lock()
	h.redraws++
	h.mu.Unlock()
}

func (h *recordingHost) DrawLine(s Stroke, from, to Point) {
	h.mu.Lock()
	h.lines = append(h.lines, drawnLine{stroke: s, from: from, to: to})
	h.mu.Unlock()
}

func (h *recordingHost) redrawCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.redraws
}

func (h *recordingHost) takeLines() []drawnLine {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.lines
	h.lines = nil
	return out
}
