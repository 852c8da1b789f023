// Package validate cross-checks the results gathered for a single request
// before they are returned to the caller.
package validate

import (
	"fmt"
	"math"

	"github.com/FranksOps/appraise/internal/market"
)

// Prices normalizes inverted ranges, annotates results whose rounded range
// was already reported by an earlier source, and deduplicates sample prices.
// It returns new results; the input slice is not modified.
//
// Only exact rounded-pair collisions are flagged. Overlapping but distinct
// ranges are left alone.
func Prices(results []market.SourceResult) []market.SourceResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]market.SourceResult, 0, len(results))

	for _, r := range results {
		if r.Status.IsLinkOnly() {
			out = append(out, r)
			continue
		}

		v := r.Clone()

		if v.MinPrice != nil && v.MaxPrice != nil {
			if *v.MinPrice > *v.MaxPrice {
				v.MinPrice, v.MaxPrice = v.MaxPrice, v.MinPrice
			}

			key := rangeKey(*v.MinPrice, *v.MaxPrice)
			if _, dup := seen[key]; dup {
				v.Status = v.Status.Verified()
			} else {
				seen[key] = struct{}{}
			}
		}

		v.Samples = dedupeSamples(v.Samples)

		if v.MinPrice == nil || v.MaxPrice == nil {
			if lo, hi := market.Bounds(samplePrices(v.Samples)); lo != nil {
				v.MinPrice, v.MaxPrice = lo, hi
			}
		}

		out = append(out, v)
	}

	return out
}

func rangeKey(lo, hi float64) string {
	return fmt.Sprintf("%d-%d", int64(math.Round(lo)), int64(math.Round(hi)))
}

// dedupeSamples keeps the first sample per whole-unit price. Samples without
// a price are always kept.
func dedupeSamples(samples []market.Sample) []market.Sample {
	if len(samples) == 0 {
		return []market.Sample{}
	}

	seen := make(map[int64]struct{}, len(samples))
	out := make([]market.Sample, 0, len(samples))
	for _, s := range samples {
		if s.Price == nil {
			out = append(out, s)
			continue
		}
		rounded := int64(math.Round(*s.Price))
		if _, dup := seen[rounded]; dup {
			continue
		}
		seen[rounded] = struct{}{}
		out = append(out, s)
	}
	return out
}

func samplePrices(samples []market.Sample) []float64 {
	var prices []float64
	for _, s := range samples {
		if s.Price != nil && !math.IsNaN(*s.Price) {
			prices = append(prices, *s.Price)
		}
	}
	return prices
}
