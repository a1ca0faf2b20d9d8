package overlay

import (
	"math"
	"sync"

	"priceline/internal/depth"
)

// SnapshotStore owns the current MarketSnapshot. It is the only point of
// synchronization between the sampling path and the draw path.
type SnapshotStore struct {
	mu   sync.Mutex
	snap depth.MarketSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snap: depth.MarketSnapshot{LastPrice: math.NaN()}}
}

// Refresh replaces the stored snapshot with the feed's current levels and
// last price, and reports whether the best bid, best ask or last price
// differ from the previous snapshot. The first call always reports a change.
// The caller must only refresh from a connected feed.
func (s *SnapshotStore) Refresh(feed Feed) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snap
	next := depth.MarketSnapshot{
		Bids:      depth.CloneLevels(feed.BidLevels()),
		Asks:      depth.CloneLevels(feed.AskLevels()),
		LastPrice: feed.LastTradePrice(),
		HasData:   true,
	}
	s.snap = next

	if !prev.HasData {
		return true
	}
	return !sameBest(prev.Bids, next.Bids) ||
		!sameBest(prev.Asks, next.Asks) ||
		!samePrice(prev.LastPrice, next.LastPrice)
}

// Read returns an independent copy of the current snapshot.
func (s *SnapshotStore) Read() depth.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Reset drops the stored snapshot; the next Refresh reports a change.
func (s *SnapshotStore) Reset() {
	s.mu.Lock()
	s.snap = depth.MarketSnapshot{LastPrice: math.NaN()}
	s.mu.Unlock()
}

// sameBest compares level 0 of two sides exactly. An empty side only
// matches another empty side.
func sameBest(a, b []depth.PriceLevel) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	return a[0] == b[0]
}

// samePrice is exact equality, except that NaN matches NaN.
func samePrice(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
