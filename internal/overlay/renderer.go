package overlay

import (
	"math"
	"time"

	"priceline/internal/depth"
)

// LineKind names which of the three lines a Segment is.
type LineKind string

const (
	LinePrice LineKind = "price"
	LineBid   LineKind = "bid"
	LineAsk   LineKind = "ask"
)

// Segment is one line in screen space.
type Segment struct {
	Kind   LineKind `json:"kind"`
	Stroke Stroke   `json:"stroke"`
	From   Point    `json:"from"`
	To     Point    `json:"to"`
}

// BarTimes anchors the lines in time: Current is the open time of the bar
// being formed, Last is the time of the last bar on the chart.
type BarTimes struct {
	Current time.Time
	Last    time.Time
}

// Renderer turns a snapshot into the price, bid and ask segments.
type Renderer struct {
	cfg DisplayConfig
}

func NewRenderer(cfg DisplayConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// Lines computes the segments to draw. A line whose inputs are missing
// (no snapshot yet, empty side, no bar time) is left out.
//
// The price line is dashed and runs from the current bar's close to the
// right edge of the chart. The bid and ask lines are centered on the last
// bar and extend BarsBefore bar widths left and BarsAfter bar widths right.
func (r *Renderer) Lines(snap depth.MarketSnapshot, bars BarTimes, g Geometry) []Segment {
	if !snap.HasData {
		return nil
	}
	out := make([]Segment, 0, 3)

	if snap.HasLastPrice() && !bars.Current.IsZero() {
		from := g.ChartPointToScreen(bars.Current, snap.LastPrice)
		to := g.ChartPointToScreen(g.RightEdgeTime(), snap.LastPrice)
		out = append(out, Segment{
			Kind:   LinePrice,
			Stroke: Stroke{Color: r.cfg.PriceColor, Width: r.cfg.LineWidth, Dash: DashDashed},
			From:   from,
			To:     to,
		})
	}

	if bars.Last.IsZero() {
		return out
	}
	barWidth := math.Trunc(g.BarWidth())
	if bid, ok := snap.BestBid(); ok {
		out = append(out, r.quoteLine(LineBid, r.cfg.BidColor, g.ChartPointToScreen(bars.Last, bid.Price), barWidth))
	}
	if ask, ok := snap.BestAsk(); ok {
		out = append(out, r.quoteLine(LineAsk, r.cfg.AskColor, g.ChartPointToScreen(bars.Last, ask.Price), barWidth))
	}
	return out
}

func (r *Renderer) quoteLine(kind LineKind, c Color, anchor Point, barWidth float64) Segment {
	return Segment{
		Kind:   kind,
		Stroke: Stroke{Color: c, Width: r.cfg.LineWidth, Dash: DashSolid},
		From:   Point{X: anchor.X - float64(r.cfg.BarsBefore)*barWidth, Y: anchor.Y},
		To:     Point{X: anchor.X + float64(r.cfg.BarsAfter)*barWidth, Y: anchor.Y},
	}
}

// Draw emits the segments through the host.
func (r *Renderer) Draw(snap depth.MarketSnapshot, bars BarTimes, h Host) {
	for _, s := range r.Lines(snap, bars, h) {
		h.DrawLine(s.Stroke, s.From, s.To)
	}
}
