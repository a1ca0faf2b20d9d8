package overlay

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultInterval samples the feed 5x per second.
	DefaultInterval = 200 * time.Millisecond
	// MinInterval is the finest sampling period accepted.
	MinInterval = 100 * time.Millisecond
)

// SchedulerState is whether a tick is pending.
type SchedulerState int

const (
	Idle SchedulerState = iota
	Armed
)

func (s SchedulerState) String() string {
	if s == Armed {
		return "armed"
	}
	return "idle"
}

// SchedulerStats counts what ticks did since construction.
type SchedulerStats struct {
	Ticks     uint64 `json:"ticks"`
	Skipped   uint64 `json:"skippedDisconnected"`
	Refreshes uint64 `json:"refreshes"`
	Redraws   uint64 `json:"redraws"`
}

// RedrawScheduler samples the feed into the store on a fixed interval and
// requests a redraw when the sample changed. Each tick re-arms the next one;
// there is no repeating timer and no backoff.
type RedrawScheduler struct {
	store    *SnapshotStore
	feed     Feed
	redraw   func()
	clock    Clock
	interval time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	state     SchedulerState
	gen       uint64 // bumped on every arm and on Stop; stale timers compare against it
	timer     Timer
	connected bool
	stats     SchedulerStats
}

func NewRedrawScheduler(store *SnapshotStore, feed Feed, redraw func(), clock Clock, interval time.Duration, logger *slog.Logger) *RedrawScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	switch {
	case interval <= 0:
		interval = DefaultInterval
	case interval < MinInterval:
		interval = MinInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedrawScheduler{
		store:    store,
		feed:     feed,
		redraw:   redraw,
		clock:    clock,
		interval: interval,
		log:      logger,
	}
}

// Start arms the first tick. Starting an armed scheduler does nothing.
func (r *RedrawScheduler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Armed {
		return
	}
	r.state = Armed
	r.armLocked()
}

// Stop disarms the scheduler. Once Stop returns no tick touches the feed or
// requests a redraw until the next Start.
func (r *RedrawScheduler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Idle {
		return
	}
	r.state = Idle
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Tick samples immediately and re-arms the interval from now.
// It is a no-op while idle.
func (r *RedrawScheduler) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Armed {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.tickLocked()
}

func (r *RedrawScheduler) fire(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Armed || gen != r.gen {
		return
	}
	r.tickLocked()
}

func (r *RedrawScheduler) tickLocked() {
	r.stats.Ticks++

	connected := r.feed.Connected()
	if connected != r.connected {
		r.connected = connected
		r.log.Debug("feed connection changed", slog.Bool("connected", connected))
	}

	if !connected {
		r.stats.Skipped++
	} else {
		r.stats.Refreshes++
		if r.store.Refresh(r.feed) {
			r.stats.Redraws++
			r.redraw()
		}
	}

	r.armLocked()
}

func (r *RedrawScheduler) armLocked() {
	r.gen++
	gen := r.gen
	r.timer = r.clock.AfterFunc(r.interval, func() { r.fire(gen) })
}

func (r *RedrawScheduler) State() SchedulerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *RedrawScheduler) Interval() time.Duration { return r.interval }

func (r *RedrawScheduler) Stats() SchedulerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
