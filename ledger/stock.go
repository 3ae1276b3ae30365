package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// AGGREGATION - The only place stock is computed
// =============================================================================

// Sum returns on-hand quantity per product for the given entries, skipping
// entries whose source is cancelled. Addition is commutative, so entry
// order does not matter.
func Sum(entries []Entry) map[ProductID]decimal.Decimal {
	totals := make(map[ProductID]decimal.Decimal)
	for _, e := range entries {
		if !e.SourceStatus.Counts() {
			continue
		}
		totals[e.ProductID] = totals[e.ProductID].Add(e.Delta)
	}
	return totals
}

// Contribution returns the signed effect one document has on each product,
// regardless of its status. Revoking the document changes stock by exactly
// the negation of this map.
func Contribution(entries []Entry, doc DocumentID) map[ProductID]decimal.Decimal {
	totals := make(map[ProductID]decimal.Decimal)
	for _, e := range entries {
		if e.DocumentID != doc {
			continue
		}
		totals[e.ProductID] = totals[e.ProductID].Add(e.Delta)
	}
	return totals
}

// Amount bounds. Larger values are rejected at input, before any
// arithmetic or storage.
const (
	MaxAmountDigits   = 38
	MaxAmountExponent = 30
)

// AmountInRange reports whether d has at most MaxAmountDigits significant
// digits and an exponent within ±MaxAmountExponent.
func AmountInRange(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp > MaxAmountExponent || exp < -MaxAmountExponent {
		return false
	}
	return d.NumDigits() <= MaxAmountDigits
}

// Products returns the distinct products touched by mvs, in first-seen order.
func Products(mvs []Movement) []ProductID {
	seen := make(map[ProductID]bool, len(mvs))
	var out []ProductID
	for _, m := range mvs {
		if seen[m.ProductID] {
			continue
		}
		seen[m.ProductID] = true
		out = append(out, m.ProductID)
	}
	return out
}
