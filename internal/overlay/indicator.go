package overlay

import (
	"log/slog"
	"sync"
	"time"

	"priceline/internal/depth"
)

// Option configures an Indicator built by New.
type Option func(*options)

type options struct {
	clock    Clock
	interval time.Duration
	logger   *slog.Logger
}

func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

// WithInterval sets the sampling period; values below MinInterval are raised to it.
func WithInterval(d time.Duration) Option { return func(o *options) { o.interval = d } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// Indicator attaches the three reference lines to a host chart and exposes
// the lifecycle callbacks the host drives.
type Indicator struct {
	cfg   DisplayConfig
	feed  Feed
	host  Host
	store *SnapshotStore
	sched *RedrawScheduler
	rend  *Renderer
	log   *slog.Logger

	// lifeMu orders draws against teardown: draws hold it shared,
	// activation changes hold it exclusively.
	lifeMu sync.RWMutex
	active bool
}

func New(cfg DisplayConfig, feed Feed, host Host, opts ...Option) *Indicator {
	o := options{clock: SystemClock{}, interval: DefaultInterval, logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	logger := o.logger.With(slog.String("component", "overlay"))
	store := NewSnapshotStore()
	return &Indicator{
		cfg:   cfg,
		feed:  feed,
		host:  host,
		store: store,
		sched: NewRedrawScheduler(store, feed, host.RequestRedraw, o.clock, o.interval, logger),
		rend:  NewRenderer(cfg),
		log:   logger,
	}
}

// OnActivate is called when the chart attaches the overlay.
func (in *Indicator) OnActivate() {
	in.lifeMu.Lock()
	defer in.lifeMu.Unlock()
	if in.active {
		return
	}
	in.active = true
	in.sched.Start()
	in.log.Info("overlay activated", slog.Duration("interval", in.sched.Interval()))
}

// OnDeactivate is called when the chart detaches the overlay. No feed access
// or redraw request happens after it returns.
func (in *Indicator) OnDeactivate() {
	in.lifeMu.Lock()
	defer in.lifeMu.Unlock()
	if !in.active {
		return
	}
	in.active = false
	in.sched.Stop()
	in.store.Reset()
	in.log.Info("overlay deactivated")
}

// OnPeriodicTick samples the feed now, for hosts that deliver their own
// timer callbacks.
func (in *Indicator) OnPeriodicTick() { in.sched.Tick() }

// OnDrawPhase draws the lines on the final phase of a host repaint.
func (in *Indicator) OnDrawPhase(phase Phase) {
	if phase != PhaseFinal {
		return
	}
	in.lifeMu.RLock()
	defer in.lifeMu.RUnlock()
	if !in.active {
		return
	}
	snap := in.store.Read()
	if !snap.HasData {
		return
	}
	bars := BarTimes{Current: in.feed.CurrentBarTime(), Last: in.feed.LastBarTime()}
	in.rend.Draw(snap, bars, in.host)
}

func (in *Indicator) Active() bool {
	in.lifeMu.RLock()
	defer in.lifeMu.RUnlock()
	return in.active
}

func (in *Indicator) Snapshot() depth.MarketSnapshot { return in.store.Read() }

func (in *Indicator) Stats() SchedulerStats { return in.sched.Stats() }

func (in *Indicator) Config() DisplayConfig { return in.cfg }
