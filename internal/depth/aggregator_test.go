package depth

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAggregateAsksBestFirst(t *testing.T) {
	agg := NewAggregator(10)

	up := Update{
		Symbol: "AAPL",
		Asks: []VenueRow{
			{Side: "ASK", Price: decimal.NewFromFloat(100.01), Size: 12000, Venue: "X", Level: 1},
			{Side: "ASK", Price: decimal.NewFromFloat(100.00), Size: 5000, Venue: "X", Level: 0},
			{Side: "ASK", Price: decimal.RequireFromString("100.00"), Size: 7000, Venue: "Y", Level: 0},
			{Side: "ASK", Price: decimal.NewFromFloat(100.03), Size: 25000, Venue: "X", Level: 3},
		},
	}

	_, asks := agg.Levels(up)
	if len(asks) != 3 {
		t.Fatalf("ask levels got %d want 3", len(asks))
	}
	if asks[0].Price != 100.00 {
		t.Fatalf("best ask price got %v want 100.00", asks[0].Price)
	}
	if asks[0].Size != 12000 { // 5000 + 7000 aggregated
		t.Fatalf("size at best ask got %v want 12000", asks[0].Size)
	}
	if asks[2].Price != 100.03 {
		t.Fatalf("worst ask got %v want 100.03", asks[2].Price)
	}
}

func TestAggregateBidsDescendingAndTruncated(t *testing.T) {
	agg := NewAggregator(2)

	up := Update{
		Bids: []VenueRow{
			{Side: "bid", Price: decimal.NewFromFloat(99.98), Size: 100},
			{Side: "BID", Price: decimal.NewFromFloat(99.99), Size: 200},
			{Side: "BID", Price: decimal.NewFromFloat(99.97), Size: 300},
			{Side: "ASK", Price: decimal.NewFromFloat(99.50), Size: 1},
		},
	}

	bids, asks := agg.Levels(up)
	if asks != nil {
		t.Fatalf("expected no asks, got %v", asks)
	}
	if len(bids) != 2 {
		t.Fatalf("bid levels got %d want 2", len(bids))
	}
	if bids[0].Price != 99.99 || bids[1].Price != 99.98 {
		t.Fatalf("bids not best-first: %v", bids)
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	s := MarketSnapshot{
		Bids:      []PriceLevel{{Price: 100, Size: 10}},
		Asks:      []PriceLevel{{Price: 100.5, Size: 10}},
		LastPrice: 100.2,
		HasData:   true,
	}
	c := s.Clone()
	c.Bids[0].Price = 1
	if s.Bids[0].Price != 100 {
		t.Fatalf("clone aliases original bids")
	}
	if b, ok := c.BestAsk(); !ok || b.Price != 100.5 {
		t.Fatalf("best ask got %v,%v", b, ok)
	}
	if _, ok := (MarketSnapshot{}).BestBid(); ok {
		t.Fatalf("empty snapshot should have no best bid")
	}
}
