package depth

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	SideAsk = "ASK"
	SideBid = "BID"
)

// Aggregator folds venue rows into best-first price levels.
type Aggregator struct {
	levels int
}

func NewAggregator(levels int) *Aggregator {
	if levels < 1 {
		levels = 1
	}
	return &Aggregator{levels: levels}
}

// Levels returns both sides of up aggregated by price, best level first.
// A side with no rows comes back nil.
func (a *Aggregator) Levels(up Update) (bids, asks []PriceLevel) {
	return a.side(up.Bids, SideBid), a.side(up.Asks, SideAsk)
}

// side sums sizes across venues quoting the same price and keeps the top
// a.levels prices: descending for bids, ascending for asks.
func (a *Aggregator) side(rows []VenueRow, side string) []PriceLevel {
	if len(rows) == 0 {
		return nil
	}

	// decimal.Decimal values that are numerically equal can carry different exponents
	// ("100" vs "100.00"), so rows are keyed by the normalized string form.
	sumByKey := map[string]int{}
	priceByKey := map[string]decimal.Decimal{}
	for _, r := range rows {
		if strings.ToUpper(r.Side) != side {
			continue
		}
		k := canonicalPriceKey(r.Price)
		sumByKey[k] += r.Size
		if _, ok := priceByKey[k]; !ok {
			priceByKey[k] = r.Price
		}
	}
	if len(sumByKey) == 0 {
		return nil
	}

	keys := make([]string, 0, len(sumByKey))
	for k := range sumByKey {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(ka, kb string) int {
		pa, pb := priceByKey[ka], priceByKey[kb]
		if side == SideBid {
			return pb.Cmp(pa)
		}
		return pa.Cmp(pb)
	})
	if len(keys) > a.levels {
		keys = keys[:a.levels]
	}

	out := make([]PriceLevel, 0, len(keys))
	for _, k := range keys {
		out = append(out, PriceLevel{
			Price: priceByKey[k].InexactFloat64(),
			Size:  float64(sumByKey[k]),
		})
	}
	return out
}

func canonicalPriceKey(p decimal.Decimal) string {
	return p.String()
}
