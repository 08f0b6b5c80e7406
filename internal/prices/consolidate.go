package prices

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dropindex/internal/store"
	"dropindex/internal/textutil"
)

// Confidence scores how well an observed title matches a listing name.
func Confidence(name, title string) float64 {
	r := textutil.Ratio(strings.ToLower(strings.TrimSpace(name)), strings.ToLower(strings.TrimSpace(title)))
	if r <= 0 {
		return 0
	}
	return math.Min(1, r/100)
}

// Consolidate computes price statistics over the newest window observations
// with confidence >= floor. It reports false when none qualify.
func Consolidate(observations []store.PriceObservation, floor float64, window int, now time.Time) (store.PriceStats, bool) {
	kept := make([]store.PriceObservation, 0, len(observations))
	for _, o := range observations {
		if o.Confidence >= floor && o.Price >= 0 {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		return store.PriceStats{}, false
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].ObservedAt.After(kept[j].ObservedAt)
	})
	if window > 0 && len(kept) > window {
		kept = kept[:window]
	}

	prices := make([]float64, len(kept))
	confidence := decimal.Zero
	for i, o := range kept {
		prices[i] = o.Price
		confidence = confidence.Add(decimal.NewFromFloat(o.Confidence))
	}
	sort.Float64s(prices)

	meanConfidence, _ := confidence.Div(decimal.NewFromInt(int64(len(kept)))).Round(4).Float64()
	return store.PriceStats{
		P25:          Percentile(prices, 0.25),
		P50:          Percentile(prices, 0.50),
		P75:          Percentile(prices, 0.75),
		Confidence:   meanConfidence,
		Observations: len(kept),
		EnrichedAt:   now,
	}, true
}

// Percentile returns the q-quantile of sorted values by linear interpolation
// between closest ranks, rounded to cents.
func Percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	q = math.Max(0, math.Min(1, q))
	pos := decimal.NewFromFloat(q).Mul(decimal.NewFromInt(int64(len(sorted) - 1)))
	lower := int(pos.IntPart())
	if lower >= len(sorted)-1 {
		return roundCents(decimal.NewFromFloat(sorted[len(sorted)-1]))
	}
	frac := pos.Sub(decimal.NewFromInt(int64(lower)))
	lo := decimal.NewFromFloat(sorted[lower])
	hi := decimal.NewFromFloat(sorted[lower+1])
	return roundCents(lo.Add(hi.Sub(lo).Mul(frac)))
}

func roundCents(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
