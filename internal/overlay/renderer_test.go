package overlay

import (
	"math"
	"testing"
	"time"

	"priceline/internal/depth"
)

// fixedGeometry puts every point at anchorX and maps price to y = -price.
type fixedGeometry struct {
	anchorX  float64
	edgeX    float64
	edge     time.Time
	barWidth float64
}

func (g fixedGeometry) ChartPointToScreen(t time.Time, price float64) Point {
	if t.Equal(g.edge) {
		return Point{X: g.edgeX, Y: -price}
	}
	return Point{X: g.anchorX, Y: -price}
}
func (g fixedGeometry) BarWidth() float64        { return g.barWidth }
func (g fixedGeometry) RightEdgeTime() time.Time { return g.edge }

func testSnapshot() depth.MarketSnapshot {
	return depth.MarketSnapshot{
		Bids:      []depth.PriceLevel{bid100},
		Asks:      []depth.PriceLevel{ask1005},
		LastPrice: 100.2,
		HasData:   true,
	}
}

func findLine(segs []Segment, kind LineKind) (Segment, bool) {
	for _, s := range segs {
		if s.Kind == kind {
			return s, true
		}
	}
	return Segment{}, false
}

func TestQuoteLineSpan(t *testing.T) {
	bar := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	g := fixedGeometry{anchorX: 500, edgeX: 900, edge: bar.Add(time.Hour), barWidth: 10}
	r := NewRenderer(DefaultDisplayConfig())

	segs := r.Lines(testSnapshot(), BarTimes{Current: bar, Last: bar}, g)
	if len(segs) != 3 {
		t.Fatalf("segments got %d want 3", len(segs))
	}
	bid, ok := findLine(segs, LineBid)
	if !ok {
		t.Fatal("no bid line")
	}
	if bid.From.X != 450 || bid.To.X != 520 {
		t.Fatalf("bid span got [%v, %v] want [450, 520]", bid.From.X, bid.To.X)
	}
	if bid.From.Y != -100.0 || bid.To.Y != -100.0 {
		t.Fatalf("bid line not horizontal at the bid: %+v", bid)
	}
	if bid.Stroke.Color != Red || bid.Stroke.Width != 2 || bid.Stroke.Dash != DashSolid {
		t.Fatalf("bid stroke got %+v", bid.Stroke)
	}

	ask, _ := findLine(segs, LineAsk)
	if ask.From.Y != -100.5 || ask.Stroke.Color != Blue {
		t.Fatalf("ask line got %+v", ask)
	}

	price, _ := findLine(segs, LinePrice)
	if price.From.X != 500 || price.To.X != 900 || price.From.Y != -100.2 || price.To.Y != -100.2 {
		t.Fatalf("price line got %+v", price)
	}
	if price.Stroke.Dash != DashDashed || price.Stroke.Color != Cyan {
		t.Fatalf("price stroke got %+v", price.Stroke)
	}
}

func TestBarWidthTruncatedToPixels(t *testing.T) {
	bar := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	g := fixedGeometry{anchorX: 500, edge: bar.Add(time.Hour), barWidth: 10.9}
	r := NewRenderer(DefaultDisplayConfig())
	bid, _ := findLine(r.Lines(testSnapshot(), BarTimes{Current: bar, Last: bar}, g), LineBid)
	if bid.From.X != 450 || bid.To.X != 520 {
		t.Fatalf("bid span got [%v, %v] want [450, 520]", bid.From.X, bid.To.X)
	}
}

func TestLinesSkipMissingInputs(t *testing.T) {
	bar := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	g := fixedGeometry{anchorX: 500, edge: bar.Add(time.Hour), barWidth: 10}
	r := NewRenderer(DefaultDisplayConfig())

	if segs := r.Lines(depth.MarketSnapshot{}, BarTimes{Current: bar, Last: bar}, g); len(segs) != 0 {
		t.Fatalf("no data should draw nothing, got %d", len(segs))
	}

	snap := testSnapshot()
	snap.Asks = nil
	snap.LastPrice = math.NaN()
	segs := r.Lines(snap, BarTimes{Current: bar, Last: bar}, g)
	if len(segs) != 1 || segs[0].Kind != LineBid {
		t.Fatalf("expected only the bid line, got %+v", segs)
	}

	segs = r.Lines(testSnapshot(), BarTimes{Current: bar}, g)
	if len(segs) != 1 || segs[0].Kind != LinePrice {
		t.Fatalf("expected only the price line without a last bar, got %+v", segs)
	}
}

func TestCustomDisplayConfig(t *testing.T) {
	bar := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	g := fixedGeometry{anchorX: 100, edge: bar.Add(time.Hour), barWidth: 4}
	cfg := DisplayConfig{BarsBefore: 0, BarsAfter: 3, BidColor: Green, AskColor: White, PriceColor: Black, LineWidth: 1}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	ask, _ := findLine(NewRenderer(cfg).Lines(testSnapshot(), BarTimes{Current: bar, Last: bar}, g), LineAsk)
	if ask.From.X != 100 || ask.To.X != 112 || ask.Stroke.Width != 1 || ask.Stroke.Color != White {
		t.Fatalf("ask got %+v", ask)
	}
}

func TestDisplayConfigValidate(t *testing.T) {
	bad := []DisplayConfig{
		{BarsBefore: -1, LineWidth: 1},
		{BarsAfter: -1, LineWidth: 1},
		{LineWidth: 0},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
	if err := DefaultDisplayConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor(" Cyan ")
	if err != nil || c != Cyan {
		t.Fatalf("got %v, %v", c, err)
	}
	c, err = ParseColor("#10a0ff")
	if err != nil || c != (Color{R: 0x10, G: 0xa0, B: 0xff}) {
		t.Fatalf("got %v, %v", c, err)
	}
	if c.String() != "#10a0ff" {
		t.Fatalf("string got %s", c.String())
	}
	if _, err := ParseColor("teal-ish"); err == nil {
		t.Fatal("expected error")
	}
}
