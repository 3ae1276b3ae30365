/*
Package wages provides the payroll side-records for the four processing
stages: scraping, cutting, drying and packing.

PURPOSE:
  Each stage pays workers by quantity. A submission lists workers with
  their stage quantities; the calculator prices every row, totals the
  record and the service stores header and items together. These records
  are cost accounting only. They never touch the stock ledger.

STAGES:
  scraping: kg of "ka" and kg of "stik", both rates entered per batch
  cutting:  kg whole and kg split, two fixed rates from the rate table
  drying:   days worked, daily rate entered per submission
  packing:  packs, one fixed rate from the rate table

ROW RULES:
  item total = qtyA × rateA (+ qtyB × rateB)
  record total = Σ item totals
  Rows with no name, or with no quantity at all, are blank and dropped.

SEE ALSO:
  - calculator.go: Pure calculation per stage
  - service.go: Persisting records
  - factory/rates.go: JSON rate tables
*/
package wages

import (
	"time"

	"github.com/shopspring/decimal"
)

type Stage string

const (
	StageScraping Stage = "scraping"
	StageCutting  Stage = "cutting"
	StageDrying   Stage = "drying"
	StagePacking  Stage = "packing"
)

func (s Stage) Valid() bool {
	switch s {
	case StageScraping, StageCutting, StageDrying, StagePacking:
		return true
	}
	return false
}

type RecordID string

// Item is one priced worker row. Single-quantity stages leave QtyB and
// RateB at zero.
type Item struct {
	LineNo int
	Name   string
	QtyA   decimal.Decimal
	QtyB   decimal.Decimal
	RateA  decimal.Decimal
	RateB  decimal.Decimal
	Total  decimal.Decimal
}

type Record struct {
	ID        RecordID
	Stage     Stage
	Date      time.Time
	Notes     string
	RateA     decimal.Decimal
	RateB     decimal.Decimal
	Items     []Item
	Total     decimal.Decimal
	CreatedBy string
	CreatedAt time.Time
}

// StageRates is the fixed pair of rates for one stage.
type StageRates struct {
	A decimal.Decimal
	B decimal.Decimal
}

// RateTable holds fixed rates for the stages that use them.
type RateTable map[Stage]StageRates

type RecordFilter struct {
	Stage Stage
	From  *time.Time
	To    *time.Time
}

// =============================================================================
// INPUTS
// =============================================================================

type ScrapingItem struct {
	Name string
	Ka   string // kg
	Stik string // kg
}

type ScrapingInput struct {
	Date     time.Time
	Notes    string
	RateKa   string
	RateStik string
	Items    []ScrapingItem
	Actor    string
}

type CuttingItem struct {
	Name  string
	Whole string // kg
	Split string // kg
}

type CuttingInput struct {
	Date  time.Time
	Notes string
	Items []CuttingItem
	Actor string
}

type DryingItem struct {
	Name string
	Days string
}

type DryingInput struct {
	Date      time.Time
	Notes     string
	DailyRate string
	Items     []DryingItem
	Actor     string
}

type PackingItem struct {
	Name  string
	Packs string
}

type PackingInput struct {
	Date  time.Time
	Notes string
	Items []PackingItem
	Actor string
}
