/*
Package ledger provides the stock ledger engine.

PURPOSE:
  This package records every change to on-hand stock as an immutable,
  signed movement and derives current stock by summing those movements.
  Purchases, sales and production runs all end up here; nothing else in
  the system keeps a stock counter.

KEY CONCEPTS IN THIS FILE (types.go):
  - Movement: One signed quantity change for one product, tied to a document
  - SourceKind: Which kind of document line produced the movement
  - Status: Lifecycle state of the source document (draft, posted, cancelled)
  - Entry: A movement as read back, together with its source status

DESIGN PRINCIPLES:
  1. Immutability: Movements are never modified or deleted
  2. Precision: Quantities use decimal.Decimal, never float64
  3. Derived state: Stock is always Sum(movements), see stock.go
  4. Soft cancellation: A cancelled document stays in the ledger; its
     movements are skipped at read time

USAGE:
  mv := ledger.Movement{
      ProductID:  "prod-raw-seaweed",
      Delta:      decimal.RequireFromString("100"),
      DocumentID: "doc-123",
      Kind:       ledger.SourcePurchase,
      LineID:     "line-1",
  }

SEE ALSO:
  - ledger.go: Ledger interface (record + read)
  - stock.go: The aggregation primitive
  - store.go: Persistence interface
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type DocumentID string
type MovementID string

// =============================================================================
// SOURCE KIND - What produced a movement
// =============================================================================

type SourceKind string

const (
	SourcePurchase         SourceKind = "purchase"          // Raw material received (+)
	SourceSale             SourceKind = "sale"              // Goods sold (-)
	SourceProductionInput  SourceKind = "production_input"  // Material consumed by a run (-)
	SourceProductionOutput SourceKind = "production_output" // Goods yielded by a run (+)
)

// Valid reports whether k is one of the known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourcePurchase, SourceSale, SourceProductionInput, SourceProductionOutput:
		return true
	}
	return false
}

// Inbound reports whether movements of this kind add stock.
func (k SourceKind) Inbound() bool {
	return k == SourcePurchase || k == SourceProductionOutput
}

// =============================================================================
// STATUS - Lifecycle of the source document
// =============================================================================

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPosted    Status = "posted"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPosted || s == StatusCancelled
}

// Counts reports whether movements from a source in this status
// contribute to stock.
func (s Status) Counts() bool { return s != StatusCancelled }

// =============================================================================
// MOVEMENT - Atomic change to stock
// =============================================================================

type Movement struct {
	ID         MovementID
	ProductID  ProductID
	Delta      decimal.Decimal // positive = inbound, negative = outbound
	DocumentID DocumentID
	Kind       SourceKind
	LineID     string

	// IdempotencyKey defaults to DocumentID:LineID. A line can never
	// produce two movements.
	IdempotencyKey string

	CreatedAt time.Time
}

// Key returns the idempotency key, deriving it when unset.
func (m Movement) Key() string {
	if m.IdempotencyKey != "" {
		return m.IdempotencyKey
	}
	return fmt.Sprintf("%s:%s", m.DocumentID, m.LineID)
}

// Entry is a movement as read back from the store, joined with the
// current status of its source document.
type Entry struct {
	Movement
	SourceStatus Status
}
