package feed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"priceline/internal/depth"
)

// MockFeed is an in-memory feed for tests and demos.
type MockFeed struct {
	bars *BarClock

	mu        sync.RWMutex
	connected bool
	symbol    string
	bids      []depth.PriceLevel
	asks      []depth.PriceLevel
	last      float64
}

func NewMockFeed(bars *BarClock) *MockFeed {
	if bars == nil {
		bars = NewBarClock(time.Minute, nil)
	}
	return &MockFeed{bars: bars, connected: true, last: math.NaN()}
}

func (m *MockFeed) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *MockFeed) BidLevels() []depth.PriceLevel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bids
}

func (m *MockFeed) AskLevels() []depth.PriceLevel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.asks
}

func (m *MockFeed) LastTradePrice() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *MockFeed) CurrentBarTime() time.Time { return m.bars.Current() }
func (m *MockFeed) LastBarTime() time.Time    { return m.bars.Last() }

// SubscribeSymbol records symbol; the mock serves whatever book it was given.
func (m *MockFeed) SubscribeSymbol(symbol string) error {
	canon := strings.ToUpper(strings.TrimSpace(symbol))
	if canon == "" {
		return fmt.Errorf("empty symbol")
	}
	m.mu.Lock()
	m.symbol = canon
	m.mu.Unlock()
	return nil
}

func (m *MockFeed) Symbol() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.symbol
}

// Helpers for tests
func (m *MockFeed) SetConnected(c bool) {
	m.mu.Lock()
	m.connected = c
	m.mu.Unlock()
}

func (m *MockFeed) SetBook(bids, asks []depth.PriceLevel) {
	m.mu.Lock()
	m.bids = depth.CloneLevels(bids)
	m.asks = depth.CloneLevels(asks)
	m.mu.Unlock()
}

// Trade records a print at t.
func (m *MockFeed) Trade(price float64, t time.Time) {
	m.mu.Lock()
	m.last = price
	m.mu.Unlock()
	m.bars.Observe(t)
}

// RandomWalk moves a one-tick-wide book around start every step until ctx
// is done. Roughly one step in three leaves the quote untouched.
func (m *MockFeed) RandomWalk(ctx context.Context, start, tick float64, step time.Duration, rng *rand.Rand) error {
	mid := start
	t := time.NewTicker(step)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			switch rng.Intn(3) {
			case 0:
				continue
			case 1:
				mid += tick
			default:
				mid -= tick
			}
			bid := math.Round((mid-tick/2)/tick) * tick
			m.SetBook(
				[]depth.PriceLevel{{Price: bid, Size: float64(100 * (1 + rng.Intn(50)))}},
				[]depth.PriceLevel{{Price: bid + tick, Size: float64(100 * (1 + rng.Intn(50)))}},
			)
			if rng.Intn(2) == 0 {
				m.Trade(bid, now)
			} else {
				m.Trade(bid+tick, now)
			}
		}
	}
}
