package chart

import (
	"errors"
	"time"

	"priceline/internal/overlay"
)

// Viewport maps chart coordinates (time, price) to screen pixels. x grows
// to the right in time, y grows downward as price falls.
type Viewport struct {
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	BarSpacing float64       `json:"barSpacing"` // pixels per bar
	BarPeriod  time.Duration `json:"barPeriod"`
	RightEdge  time.Time     `json:"rightEdge"` // time at x == Width
	PriceHigh  float64       `json:"priceHigh"` // price at y == 0
	PriceLow   float64       `json:"priceLow"`  // price at y == Height
}

func (v Viewport) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return errors.New("viewport size must be positive")
	}
	if v.BarSpacing <= 0 {
		return errors.New("bar spacing must be positive")
	}
	if v.BarPeriod <= 0 {
		return errors.New("bar period must be positive")
	}
	if v.PriceHigh <= v.PriceLow {
		return errors.New("price high must be above price low")
	}
	return nil
}

func (v Viewport) ToScreen(t time.Time, price float64) overlay.Point {
	bars := float64(v.RightEdge.Sub(t)) / float64(v.BarPeriod)
	return overlay.Point{
		X: v.Width - bars*v.BarSpacing,
		Y: (v.PriceHigh - price) / (v.PriceHigh - v.PriceLow) * v.Height,
	}
}

// VisibleBars is how many bars fit across the width.
func (v Viewport) VisibleBars() int { return int(v.Width / v.BarSpacing) }

// Follow scrolls the viewport so lastBar sits marginBars from the right edge
// and recenters the price range on price once it leaves the middle 80% of
// the range. The price span is kept.
func (v Viewport) Follow(price float64, lastBar time.Time, marginBars int) Viewport {
	if !lastBar.IsZero() {
		v.RightEdge = lastBar.Add(time.Duration(marginBars) * v.BarPeriod)
	}
	span := v.PriceHigh - v.PriceLow
	if span <= 0 {
		return v
	}
	lo, hi := v.PriceLow+span*0.1, v.PriceHigh-span*0.1
	if price < lo || price > hi {
		v.PriceHigh = price + span/2
		v.PriceLow = price - span/2
	}
	return v
}
