package wages

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/agro-ledger/ledger"
)

// row is a worker row before pricing. b is empty for single-quantity stages.
type row struct {
	name string
	a, b string
}

// CalculateScraping prices a scraping batch: ka × rate_ka + stik × rate_stik.
func CalculateScraping(in ScrapingInput) (Record, error) {
	rateKa, err := parseRate("rate_ka", in.RateKa)
	if err != nil {
		return Record{}, err
	}
	rateStik, err := parseRate("rate_stik", in.RateStik)
	if err != nil {
		return Record{}, err
	}
	rows := make([]row, len(in.Items))
	for i, it := range in.Items {
		rows[i] = row{name: it.Name, a: it.Ka, b: it.Stik}
	}
	return calculate(StageScraping, in.Date, in.Notes, rateKa, rateStik, rows)
}

// CalculateCutting prices cutting work with the fixed whole/split rates.
func CalculateCutting(in CuttingInput, rates RateTable) (Record, error) {
	r, ok := rates[StageCutting]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrMissingRate, StageCutting)
	}
	rows := make([]row, len(in.Items))
	for i, it := range in.Items {
		rows[i] = row{name: it.Name, a: it.Whole, b: it.Split}
	}
	return calculate(StageCutting, in.Date, in.Notes, r.A, r.B, rows)
}

// CalculateDrying prices days worked at the submitted daily rate.
func CalculateDrying(in DryingInput) (Record, error) {
	rate, err := parseRate("daily_rate", in.DailyRate)
	if err != nil {
		return Record{}, err
	}
	rows := make([]row, len(in.Items))
	for i, it := range in.Items {
		rows[i] = row{name: it.Name, a: it.Days}
	}
	return calculate(StageDrying, in.Date, in.Notes, rate, decimal.Zero, rows)
}

// CalculatePacking prices packs at the fixed packing rate.
func CalculatePacking(in PackingInput, rates RateTable) (Record, error) {
	r, ok := rates[StagePacking]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrMissingRate, StagePacking)
	}
	rows := make([]row, len(in.Items))
	for i, it := range in.Items {
		rows[i] = row{name: it.Name, a: it.Packs}
	}
	return calculate(StagePacking, in.Date, in.Notes, r.A, decimal.Zero, rows)
}

func calculate(stage Stage, date time.Time, notes string, rateA, rateB decimal.Decimal, rows []row) (Record, error) {
	if date.IsZero() {
		return Record{}, invalid("date", "required")
	}

	rec := Record{
		Stage: stage,
		Date:  date,
		Notes: notes,
		RateA: rateA,
		RateB: rateB,
		Total: decimal.Zero,
	}
	for i, r := range rows {
		name := strings.TrimSpace(r.name)
		qtyA, err := parseQty(fmt.Sprintf("items[%d]", i), r.a)
		if err != nil {
			return Record{}, err
		}
		qtyB, err := parseQty(fmt.Sprintf("items[%d]", i), r.b)
		if err != nil {
			return Record{}, err
		}
		if name == "" || qtyA.Add(qtyB).IsZero() {
			continue
		}

		total := qtyA.Mul(rateA).Add(qtyB.Mul(rateB))
		rec.Items = append(rec.Items, Item{
			LineNo: len(rec.Items) + 1,
			Name:   name,
			QtyA:   qtyA,
			QtyB:   qtyB,
			RateA:  rateA,
			RateB:  rateB,
			Total:  total,
		})
		rec.Total = rec.Total.Add(total)
	}
	return rec, nil
}

// parseQty treats a blank quantity as zero.
func parseQty(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid(field, "not a decimal number: %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, invalid(field, "quantity must not be negative")
	}
	if !ledger.AmountInRange(d) {
		return decimal.Zero, invalid(field, "out of range: %q", s)
	}
	return d, nil
}

func parseRate(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, invalid(field, "required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid(field, "not a decimal number: %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, invalid(field, "must not be negative")
	}
	if !ledger.AmountInRange(d) {
		return decimal.Zero, invalid(field, "out of range: %q", s)
	}
	return d, nil
}
