/*
Package factory provides JSON to Go rate table conversion.

PURPOSE:
  Converts JSON rate definitions into wages.RateTable so fixed stage rates
  (cutting, packing) can change without a code change. Stages whose rates
  are entered per submission (scraping, drying) never appear here.

JSON SCHEMA:
  {
    "currency": "IDR",
    "stages": [
      {"stage": "cutting", "rate_a": "500", "rate_b": "700"},
      {"stage": "packing", "rate_a": "250"}
    ]
  }

  Rates are decimal strings. Two-quantity stages (cutting) need both
  rate_a and rate_b; single-quantity stages (packing) must omit rate_b.

USAGE:
  f := factory.NewRateFactory()
  table, err := f.ParseRates(factory.DefaultRatesJSON)
  svc := wages.NewService(store, table)

SEE ALSO:
  - wages/calculator.go: Where the rates are applied
  - config/config.go: RATES_FILE
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/agro-ledger/ledger"
	"github.com/warp/agro-ledger/wages"
)

// DefaultRatesJSON is used when no rates file is configured.
const DefaultRatesJSON = `{
  "currency": "IDR",
  "stages": [
    {"stage": "cutting", "rate_a": "500", "rate_b": "700"},
    {"stage": "packing", "rate_a": "250"}
  ]
}`

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type RatesJSON struct {
	Currency string           `json:"currency,omitempty"`
	Stages   []StageRatesJSON `json:"stages"`
}

type StageRatesJSON struct {
	Stage string `json:"stage"`
	RateA string `json:"rate_a"`
	RateB string `json:"rate_b,omitempty"`
}

// =============================================================================
// RATE FACTORY
// =============================================================================

type RateFactory struct{}

func NewRateFactory() *RateFactory {
	return &RateFactory{}
}

// ParseRates parses a JSON string into a RateTable.
func (f *RateFactory) ParseRates(jsonStr string) (wages.RateTable, error) {
	var rj RatesJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rates JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// LoadFile reads and parses a rates file.
func (f *RateFactory) LoadFile(path string) (wages.RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates file: %w", err)
	}
	return f.ParseRates(string(data))
}

// FromJSON converts RatesJSON to a RateTable.
func (f *RateFactory) FromJSON(rj RatesJSON) (wages.RateTable, error) {
	table := make(wages.RateTable, len(rj.Stages))
	for _, sj := range rj.Stages {
		stage := wages.Stage(strings.TrimSpace(sj.Stage))
		if !isFixedRateStage(stage) {
			return nil, fmt.Errorf("stage %q does not take fixed rates", sj.Stage)
		}
		if _, dup := table[stage]; dup {
			return nil, fmt.Errorf("stage %q listed twice", stage)
		}

		a, err := parseRate(stage, "rate_a", sj.RateA)
		if err != nil {
			return nil, err
		}
		rates := wages.StageRates{A: a}

		switch {
		case stage == wages.StageCutting:
			if rates.B, err = parseRate(stage, "rate_b", sj.RateB); err != nil {
				return nil, err
			}
		case strings.TrimSpace(sj.RateB) != "":
			return nil, fmt.Errorf("stage %q takes a single rate", stage)
		}
		table[stage] = rates
	}
	return table, nil
}

// ToJSON converts a RateTable back to its JSON form.
func (f *RateFactory) ToJSON(table wages.RateTable) RatesJSON {
	rj := RatesJSON{Currency: "IDR"}
	for _, stage := range []wages.Stage{wages.StageCutting, wages.StagePacking} {
		r, ok := table[stage]
		if !ok {
			continue
		}
		sj := StageRatesJSON{Stage: string(stage), RateA: r.A.String()}
		if stage == wages.StageCutting {
			sj.RateB = r.B.String()
		}
		rj.Stages = append(rj.Stages, sj)
	}
	return rj
}

func isFixedRateStage(s wages.Stage) bool {
	return s == wages.StageCutting || s == wages.StagePacking
}

func parseRate(stage wages.Stage, field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("stage %s: %s %q is not a decimal", stage, field, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("stage %s: %s must not be negative", stage, field)
	}
	if !ledger.AmountInRange(d) {
		return decimal.Zero, fmt.Errorf("stage %s: %s %q is out of range", stage, field, s)
	}
	return d, nil
}
