/*
Package inventory provides the purchase, sale and production documents
that feed the stock ledger.

PURPOSE:
  A document is the business-level record a user submits: a purchase
  received from a supplier, a sale to a customer, or a production run that
  turns raw material into finished goods. Posting a document writes its
  header, its lines and one ledger movement per line in a single unit of
  work.

DOCUMENT KINDS:
  purchase:   item lines, each one inbound movement
  sale:       item lines, each one outbound movement
  production: input lines (outbound) and output lines (inbound), plus the
              workers assigned to the run

LIFECYCLE:
  draft ──post──▶ posted ──revoke──▶ cancelled

  Drafts have no movements. Cancelled documents keep theirs; the ledger
  skips them when summing. There is no way back from cancelled.

SEE ALSO:
  - builder.go: Line parsing, filtering and totals
  - service.go: Create / revoke / post operations
  - ledger/: Movement storage and aggregation
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/agro-ledger/ledger"
)

// =============================================================================
// PRODUCT
// =============================================================================

type ProductType string

const (
	ProductRawMaterial  ProductType = "raw_material"
	ProductFinishedGood ProductType = "finished_good"
)

func (t ProductType) Valid() bool {
	return t == ProductRawMaterial || t == ProductFinishedGood
}

// Product never carries a stock figure. Ask the ledger.
type Product struct {
	ID        ledger.ProductID
	Name      string
	Unit      string // kg, pack, ...
	Type      ProductType
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// DOCUMENT
// =============================================================================

type Kind string

const (
	KindPurchase   Kind = "purchase"
	KindSale       Kind = "sale"
	KindProduction Kind = "production"
)

func (k Kind) Valid() bool {
	return k == KindPurchase || k == KindSale || k == KindProduction
}

type LineRole string

const (
	RoleItem   LineRole = "item"
	RoleInput  LineRole = "input"
	RoleOutput LineRole = "output"
)

// SourceKind maps a line of a document of kind k to its ledger source kind.
func (r LineRole) SourceKind(k Kind) ledger.SourceKind {
	switch {
	case r == RoleInput:
		return ledger.SourceProductionInput
	case r == RoleOutput:
		return ledger.SourceProductionOutput
	case k == KindSale:
		return ledger.SourceSale
	default:
		return ledger.SourcePurchase
	}
}

type Line struct {
	ID        string
	Role      LineRole
	LineNo    int
	ProductID ledger.ProductID
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// WorkerAssignment records who worked a production run. Not ledger-relevant.
type WorkerAssignment struct {
	Name string
	Role string
}

type Revocation struct {
	Reason string
	Actor  string
	At     time.Time
}

type Document struct {
	ID             ledger.DocumentID
	Kind           Kind
	Date           time.Time
	Counterparty   string // supplier or customer, free text
	ProductionType string
	Status         ledger.Status
	Notes          string
	Lines          []Line
	Workers        []WorkerAssignment

	// Total is the sum of item lines, or of input lines for production.
	Total decimal.Decimal
	// OutputTotal is the sum of output lines. Zero for purchase and sale.
	OutputTotal decimal.Decimal

	Revocation *Revocation

	CreatedBy string
	CreatedAt time.Time
}

// LinesByRole returns the document's lines with the given role.
func (d *Document) LinesByRole(role LineRole) []Line {
	var out []Line
	for _, l := range d.Lines {
		if l.Role == role {
			out = append(out, l)
		}
	}
	return out
}

// Movements returns the ledger movements this document produces when
// posted, one per line, in line order.
func (d *Document) Movements(newID func() string, now time.Time) []ledger.Movement {
	mvs := make([]ledger.Movement, 0, len(d.Lines))
	for _, l := range d.Lines {
		kind := l.Role.SourceKind(d.Kind)
		delta := l.Quantity
		if !kind.Inbound() {
			delta = delta.Neg()
		}
		mvs = append(mvs, ledger.Movement{
			ID:         ledger.MovementID(newID()),
			ProductID:  l.ProductID,
			Delta:      delta,
			DocumentID: d.ID,
			Kind:       kind,
			LineID:     l.ID,
			CreatedAt:  now,
		})
	}
	return mvs
}

// DocumentFilter narrows ListDocuments. Zero fields match everything.
type DocumentFilter struct {
	Kind   Kind
	Status ledger.Status
	From   *time.Time
	To     *time.Time
}
