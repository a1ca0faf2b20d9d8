package chart

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"priceline/internal/overlay"
)

// Drawer is what a Host repaints: the overlay's draw-phase callback.
type Drawer interface {
	OnDrawPhase(phase overlay.Phase)
}

// Line is one drawn segment in a frame.
type Line struct {
	Stroke overlay.Stroke `json:"stroke"`
	From   overlay.Point  `json:"from"`
	To     overlay.Point  `json:"to"`
}

// Frame is the output of one repaint.
type Frame struct {
	ID       string    `json:"id"`
	Seq      uint64    `json:"seq"`
	At       time.Time `json:"at"`
	Viewport Viewport  `json:"viewport"`
	Lines    []Line    `json:"lines"`
}

// FollowFunc returns the price and bar the chart should keep in view.
type FollowFunc func() (price float64, lastBar time.Time, ok bool)

// Host is an offscreen chart: it provides the coordinate transform, records
// drawn lines, and turns coalesced redraw requests into Frames handed to publish.
type Host struct {
	log        *slog.Logger
	publish    func(Frame)
	follow     FollowFunc
	marginBars int

	mu      sync.Mutex
	vp      Viewport
	pending []Line
	last    Frame

	paintMu sync.Mutex
	seq     uint64
	redraw  chan struct{}
}

func NewHost(vp Viewport, marginBars int, publish func(Frame), logger *slog.Logger) *Host {
	if publish == nil {
		publish = func(Frame) {}
	}
	return &Host{
		log:        logger.With(slog.String("component", "chart_host")),
		publish:    publish,
		marginBars: marginBars,
		vp:         vp,
		redraw:     make(chan struct{}, 1),
	}
}

// SetFollow makes every repaint scroll the viewport to f's price and bar first.
func (h *Host) SetFollow(f FollowFunc) { h.follow = f }

func (h *Host) viewport() Viewport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.vp
}

func (h *Host) Viewport() Viewport { return h.viewport() }

// SetViewport applies a resize or scroll from the client and repaints.
func (h *Host) SetViewport(vp Viewport) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	h.vp = vp
	h.mu.Unlock()
	h.RequestRedraw()
	return nil
}

func (h *Host) ChartPointToScreen(t time.Time, price float64) overlay.Point {
	return h.viewport().ToScreen(t, price)
}

func (h *Host) BarWidth() float64 { return h.viewport().BarSpacing }

func (h *Host) RightEdgeTime() time.Time { return h.viewport().RightEdge }

// RequestRedraw never blocks; requests made before the next repaint coalesce.
func (h *Host) RequestRedraw() {
	select {
	case h.redraw <- struct{}{}:
	default:
	}
}

func (h *Host) DrawLine(s overlay.Stroke, from, to overlay.Point) {
	h.mu.Lock()
	h.pending = append(h.pending, Line{Stroke: s, From: from, To: to})
	h.mu.Unlock()
}

// Repaint runs every draw phase of d and publishes the resulting frame.
func (h *Host) Repaint(d Drawer) Frame {
	h.paintMu.Lock()
	defer h.paintMu.Unlock()

	if h.follow != nil {
		if price, bar, ok := h.follow(); ok && !math.IsNaN(price) {
			h.mu.Lock()
			h.vp = h.vp.Follow(price, bar, h.marginBars)
			h.mu.Unlock()
		}
	}

	h.mu.Lock()
	h.pending = nil
	h.mu.Unlock()

	for _, p := range []overlay.Phase{overlay.PhaseBackground, overlay.PhaseBars, overlay.PhaseFinal} {
		d.OnDrawPhase(p)
	}

	h.seq++
	h.mu.Lock()
	f := Frame{
		ID:       uuid.NewString(),
		Seq:      h.seq,
		At:       time.Now(),
		Viewport: h.vp,
		Lines:    h.pending,
	}
	h.pending = nil
	h.last = f
	h.mu.Unlock()

	h.publish(f)
	return f
}

// LastFrame returns the most recently published frame.
func (h *Host) LastFrame() Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Run repaints d on every redraw request until ctx is done.
func (h *Host) Run(ctx context.Context, d Drawer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.redraw:
			f := h.Repaint(d)
			h.log.Debug("repaint", slog.Uint64("seq", f.Seq), slog.Int("lines", len(f.Lines)))
		}
	}
}
