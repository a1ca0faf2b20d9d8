package overlay

import (
	"time"

	"priceline/internal/depth"
)

// Feed is the market-data source for one instrument. Implementations must
// answer every method without blocking; they are called with the store lock held.
type Feed interface {
	Connected() bool
	BidLevels() []depth.PriceLevel
	AskLevels() []depth.PriceLevel
	LastTradePrice() float64
	CurrentBarTime() time.Time
	LastBarTime() time.Time
}

// Point is a position in screen pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DashStyle is the line pattern of a Stroke.
type DashStyle int

const (
	DashSolid DashStyle = iota
	DashDashed
)

func (d DashStyle) String() string {
	if d == DashDashed {
		return "dash"
	}
	return "solid"
}

func (d DashStyle) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Stroke is the pen a line is drawn with.
type Stroke struct {
	Color Color     `json:"color"`
	Width int       `json:"width"`
	Dash  DashStyle `json:"dash"`
}

// Geometry is the read-only part of a Host used to place lines.
type Geometry interface {
	ChartPointToScreen(t time.Time, price float64) Point
	BarWidth() float64
	RightEdgeTime() time.Time
}

// Host is the chart environment the overlay is attached to.
// RequestRedraw must not block and must not call back into the Indicator.
type Host interface {
	Geometry
	RequestRedraw()
	DrawLine(s Stroke, from, to Point)
}

// Phase identifies a host draw pass. Only PhaseFinal is drawn on.
type Phase int

const (
	PhaseBackground Phase = iota
	PhaseBars
	PhaseFinal
)
