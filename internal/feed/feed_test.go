package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"
	"time"

	"priceline/internal/depth"
	"priceline/internal/overlay"
)

var (
	_ overlay.Feed = (*GatewayFeed)(nil)
	_ overlay.Feed = (*MockFeed)(nil)
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBarClock(t *testing.T) {
	wall := time.Date(2024, 3, 1, 14, 30, 45, 0, time.UTC)
	b := NewBarClock(time.Minute, func() time.Time { return wall })

	if !b.Current().IsZero() || !b.Last().IsZero() {
		t.Fatal("bar times should be zero before any print")
	}

	b.Observe(time.Date(2024, 3, 1, 14, 28, 10, 0, time.UTC))
	if got := b.Current(); !got.Equal(time.Date(2024, 3, 1, 14, 28, 0, 0, time.UTC)) {
		t.Fatalf("current got %v", got)
	}
	// no print in the wall-clock minute yet: the last slot is still 14:30
	if got := b.Last(); !got.Equal(time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("last got %v", got)
	}

	// late print is ignored
	b.Observe(time.Date(2024, 3, 1, 14, 20, 0, 0, time.UTC))
	if got := b.Current(); got.Minute() != 28 {
		t.Fatalf("current moved backwards to %v", got)
	}
}

func TestMockFeed(t *testing.T) {
	m := NewMockFeed(nil)
	if !m.Connected() {
		t.Fatal("mock should start connected")
	}
	if !math.IsNaN(m.LastTradePrice()) {
		t.Fatal("last should be NaN before any trade")
	}
	bids := []depth.PriceLevel{{Price: 100, Size: 10}}
	m.SetBook(bids, []depth.PriceLevel{{Price: 100.5, Size: 10}})
	bids[0].Price = 1
	if got := m.BidLevels()[0].Price; got != 100 {
		t.Fatalf("mock shares caller memory, bid %v", got)
	}
	now := time.Now()
	m.Trade(100.25, now)
	if m.LastTradePrice() != 100.25 {
		t.Fatal("trade not recorded")
	}
	if m.CurrentBarTime().IsZero() {
		t.Fatal("trade should open a bar")
	}
	m.SetConnected(false)
	if m.Connected() {
		t.Fatal("expected disconnected")
	}
}

func TestMockRandomWalk(t *testing.T) {
	m := NewMockFeed(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = m.RandomWalk(ctx, 100, 0.01, 5*time.Millisecond, rand.New(rand.NewSource(1)))

	bid, ask := m.BidLevels(), m.AskLevels()
	if len(bid) != 1 || len(ask) != 1 {
		t.Fatalf("walk produced no book: %v %v", bid, ask)
	}
	if d := ask[0].Price - bid[0].Price; math.Abs(d-0.01) > 1e-9 {
		t.Fatalf("spread got %v want one tick", d)
	}
}

func newTestGatewayFeed() *GatewayFeed {
	bars := NewBarClock(time.Minute, nil)
	return NewGatewayFeed(nil, depth.NewAggregator(10), bars, testLogger())
}

func TestGatewayHandleDepthMessage(t *testing.T) {
	f := newTestGatewayFeed()
	f.handleMessage([]byte(`{"topic":"sbd+265598","data":[
		{"side":"ask","price":100.5,"size":300,"exchange":"ARCA"},
		{"side":"ask","price":100.5,"size":200,"venue":"NSDQ"},
		{"side":"ask","price":100.6,"size":100,"venue":"NSDQ"},
		{"side":"bid","price":100.0,"size":400,"venue":"NSDQ"}
	]}`), time.Now())

	asks := f.AskLevels()
	if len(asks) != 2 || asks[0] != (depth.PriceLevel{Price: 100.5, Size: 500}) {
		t.Fatalf("asks got %v", asks)
	}
	bids := f.BidLevels()
	if len(bids) != 1 || bids[0].Price != 100.0 {
		t.Fatalf("bids got %v", bids)
	}

	// a one-sided message keeps the other side
	f.handleMessage([]byte(`{"rows":[{"side":"BID","price":100.1,"size":50}]}`), time.Now())
	if f.BidLevels()[0].Price != 100.1 || len(f.AskLevels()) != 2 {
		t.Fatalf("one-sided update mangled the book: %v %v", f.BidLevels(), f.AskLevels())
	}

	// heartbeat / junk is ignored
	f.handleMessage([]byte(`{"topic":"hb","hb":1}`), time.Now())
	f.handleMessage([]byte(`not json`), time.Now())
	if len(f.AskLevels()) != 2 {
		t.Fatal("heartbeat cleared the book")
	}
}

func TestGatewayHandleLastPrice(t *testing.T) {
	f := newTestGatewayFeed()
	if !math.IsNaN(f.LastTradePrice()) {
		t.Fatal("last should start NaN")
	}
	at := time.Date(2024, 3, 1, 14, 30, 12, 0, time.UTC)
	f.handleMessage([]byte(`{"topic":"smd+265598","31":"C189.84"}`), at)
	if f.LastTradePrice() != 189.84 {
		t.Fatalf("last got %v", f.LastTradePrice())
	}
	if got := f.CurrentBarTime(); !got.Equal(time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)) {
		t.Fatalf("bar got %v", got)
	}
	f.handleMessage([]byte(`{"topic":"smd+265598","31":"n/a"}`), at)
	if f.LastTradePrice() != 189.84 {
		t.Fatal("unparseable price overwrote last")
	}
}

func TestGatewayConnectedNeedsSubscription(t *testing.T) {
	f := newTestGatewayFeed()
	f.setConnected(true)
	if f.Connected() {
		t.Fatal("connected without a contract should report false")
	}
	f.mu.Lock()
	f.conid = 265598
	f.mu.Unlock()
	if !f.Connected() {
		t.Fatal("expected connected")
	}
	if err := f.SubscribeSymbol("  "); err == nil {
		t.Fatal("empty symbol should fail")
	}
	if err := f.SubscribeSymbol(" aapl "); err != nil {
		t.Fatal(err)
	}
	if f.Symbol() != "AAPL" {
		t.Fatalf("symbol got %s", f.Symbol())
	}
	if f.Connected() {
		t.Fatal("resubscribe should drop the contract until the run loop resolves it")
	}
}

func TestGatewayFailMarksDownAndBacksOff(t *testing.T) {
	f := newTestGatewayFeed()
	f.mu.Lock()
	f.conid = 265598
	f.mu.Unlock()
	f.setConnected(true)

	var statuses []bool
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // do not sleep out the backoff
	backoff := 20 * time.Second
	f.fail(ctx, errors.New("subscribe: broken pipe"), func(c bool) { statuses = append(statuses, c) }, &backoff)

	if f.Connected() {
		t.Fatal("feed still reports connected after a failed subscribe")
	}
	if len(statuses) != 1 || statuses[0] {
		t.Fatalf("status callbacks got %v", statuses)
	}
	select {
	case err := <-f.Errors():
		if err.Error() != "subscribe: broken pipe" {
			t.Fatalf("error got %v", err)
		}
	default:
		t.Fatal("failure not reported on Errors()")
	}
	if backoff != 30*time.Second {
		t.Fatalf("backoff got %v want capped 30s", backoff)
	}
}

func TestParseLast(t *testing.T) {
	cases := map[string]float64{"101.25": 101.25, "C99.5": 99.5, "H12": 12, " 7.01 ": 7.01}
	for in, want := range cases {
		got, ok := parseLast(in)
		if !ok || got != want {
			t.Fatalf("parseLast(%q) got %v,%v want %v", in, got, ok, want)
		}
	}
	if _, ok := parseLast(""); ok {
		t.Fatal("empty should not parse")
	}
}

func TestNormalizeBrowser(t *testing.T) {
	if normalizeBrowser("Google Chrome") != "chrome" || normalizeBrowser("") != "chrome" {
		t.Fatal("chrome aliases")
	}
	if normalizeBrowser(" Firefox ") != "firefox" {
		t.Fatal("passthrough")
	}
	if _, err := CookiesFromBrowser("chrome", ""); err == nil {
		t.Fatal("empty base url should fail")
	}
}
