package overlay

import "errors"

// DisplayConfig holds the static styling of the three lines. It is set once
// at construction and never mutated, so it is read without locking.
type DisplayConfig struct {
	BarsBefore int   `json:"barsBefore"`
	BarsAfter  int   `json:"barsAfter"`
	BidColor   Color `json:"bidColor"`
	AskColor   Color `json:"askColor"`
	PriceColor Color `json:"priceColor"`
	LineWidth  int   `json:"lineWidth"`
}

func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		BarsBefore: 5,
		BarsAfter:  2,
		BidColor:   Red,
		AskColor:   Blue,
		PriceColor: Cyan,
		LineWidth:  2,
	}
}

func (c DisplayConfig) Validate() error {
	if c.BarsBefore < 0 {
		return errors.New("bars_before must be >=0")
	}
	if c.BarsAfter < 0 {
		return errors.New("bars_after must be >=0")
	}
	if c.LineWidth < 1 {
		return errors.New("line_width must be >=1")
	}
	return nil
}
