package depth

import (
	"math"

	"github.com/shopspring/decimal"
)

// PriceLevel is one quoted price and the depth resting at it.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// MarketSnapshot is the most recently observed bid/ask/last state of one instrument.
// Level 0 of each side is the best level.
type MarketSnapshot struct {
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	LastPrice float64      `json:"lastPrice"`
	HasData   bool         `json:"hasData"` // false until the first observation
}

// BestBid returns level 0 of the bid side.
func (s MarketSnapshot) BestBid() (PriceLevel, bool) { return best(s.Bids) }

// BestAsk returns level 0 of the ask side.
func (s MarketSnapshot) BestAsk() (PriceLevel, bool) { return best(s.Asks) }

// HasLastPrice reports whether a finite last price has been observed.
func (s MarketSnapshot) HasLastPrice() bool {
	return s.HasData && !math.IsNaN(s.LastPrice) && !math.IsInf(s.LastPrice, 0)
}

// Clone returns a copy that shares no memory with s.
func (s MarketSnapshot) Clone() MarketSnapshot {
	return MarketSnapshot{
		Bids:      CloneLevels(s.Bids),
		Asks:      CloneLevels(s.Asks),
		LastPrice: s.LastPrice,
		HasData:   s.HasData,
	}
}

// CloneLevels copies a level sequence; nil stays nil.
func CloneLevels(in []PriceLevel) []PriceLevel {
	if in == nil {
		return nil
	}
	out := make([]PriceLevel, len(in))
	copy(out, in)
	return out
}

func best(levels []PriceLevel) (PriceLevel, bool) {
	if len(levels) == 0 {
		return PriceLevel{}, false
	}
	return levels[0], true
}

// VenueRow is one per-venue depth row as reported by the gateway.
type VenueRow struct {
	Side  string          `json:"side"`  // "ASK" or "BID"
	Price decimal.Decimal `json:"price"` // price level
	Size  int             `json:"size"`  // shares at this venue at this price
	Venue string          `json:"venue"` // exchange/venue
	Level int             `json:"level"` // optional: source-reported level index
}

// Update is one coalesced depth message for the subscribed symbol.
type Update struct {
	Symbol string     // canonical UPPER symbol
	Asks   []VenueRow // ask-side venue rows
	Bids   []VenueRow // bid-side venue rows
}
