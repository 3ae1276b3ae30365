/*
ledger.go - Append-only stock movement log

PURPOSE:
  The Ledger is the source of truth for stock. Every purchase line, sale
  line and production input/output is recorded here as one signed
  movement. Stock is always computed by summing movements; there is no
  "quantity" column anywhere that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. SIGNED BY KIND: purchase/output > 0, sale/input < 0
  3. ONE MOVEMENT PER LINE: enforced by idempotency key
  4. CANCELLED SOURCES DON'T COUNT: filtered at read time, never deleted

CORRECTIONS:
  Revoking a document flips its status to cancelled. Its movements stay in
  the ledger and keep their history; Sum() simply skips them.

NEGATIVE STOCK:
  The ledger is a bookkeeping record, not a physical constraint. It will
  happily report negative stock. Oversell rules belong to the caller.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger interface {
	// Record appends one movement.
	Record(ctx context.Context, mv Movement) error

	// RecordBatch appends movements atomically.
	RecordBatch(ctx context.Context, mvs []Movement) error

	// CurrentStock is the sum over non-cancelled movements for product.
	CurrentStock(ctx context.Context, product ProductID) (decimal.Decimal, error)

	// CurrentStockByProduct is CurrentStock for every product with at
	// least one movement.
	CurrentStockByProduct(ctx context.Context) (map[ProductID]decimal.Decimal, error)

	// History returns every movement for product, including cancelled ones.
	History(ctx context.Context, product ProductID) ([]Entry, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
	Cache StockCache // optional
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

// WithCache returns a copy of l that reads single-product stock through c.
func (l *DefaultLedger) WithCache(c StockCache) *DefaultLedger {
	return &DefaultLedger{Store: l.Store, Cache: c}
}

func (l *DefaultLedger) Record(ctx context.Context, mv Movement) error {
	return l.RecordBatch(ctx, []Movement{mv})
}

func (l *DefaultLedger) RecordBatch(ctx context.Context, mvs []Movement) error {
	if len(mvs) == 0 {
		return nil
	}
	keys := make(map[string]bool, len(mvs))
	for _, mv := range mvs {
		if err := Validate(mv); err != nil {
			return err
		}
		if keys[mv.Key()] {
			return ErrDuplicateMovement
		}
		keys[mv.Key()] = true
	}
	return l.Store.AppendMovements(ctx, mvs)
}

func (l *DefaultLedger) CurrentStock(ctx context.Context, product ProductID) (decimal.Decimal, error) {
	if l.Cache != nil {
		if qty, ok, err := l.Cache.Get(ctx, product); err == nil && ok {
			return qty, nil
		}
	}

	entries, err := l.Store.LoadMovements(ctx, MovementFilter{ProductIDs: []ProductID{product}})
	if err != nil {
		return decimal.Zero, err
	}
	qty := Sum(entries)[product]

	if l.Cache != nil {
		// A failed cache write only costs a recompute next time.
		_ = l.Cache.Set(ctx, product, qty)
	}
	return qty, nil
}

func (l *DefaultLedger) CurrentStockByProduct(ctx context.Context) (map[ProductID]decimal.Decimal, error) {
	entries, err := l.Store.LoadMovements(ctx, MovementFilter{})
	if err != nil {
		return nil, err
	}
	return Sum(entries), nil
}

func (l *DefaultLedger) History(ctx context.Context, product ProductID) ([]Entry, error) {
	return l.Store.LoadMovements(ctx, MovementFilter{ProductIDs: []ProductID{product}})
}

// Validate checks a movement against the reference and sign rules.
func Validate(mv Movement) error {
	fail := func(reason string) error {
		return &MovementError{ProductID: mv.ProductID, DocumentID: mv.DocumentID, Reason: reason}
	}
	switch {
	case mv.ProductID == "":
		return fail("missing product")
	case mv.DocumentID == "":
		return fail("missing source document")
	case !mv.Kind.Valid():
		return fail("unknown source kind " + string(mv.Kind))
	case mv.Delta.IsZero():
		return fail("zero quantity")
	case mv.Kind.Inbound() && mv.Delta.IsNegative():
		return fail(string(mv.Kind) + " must be inbound")
	case !mv.Kind.Inbound() && mv.Delta.IsPositive():
		return fail(string(mv.Kind) + " must be outbound")
	}
	return nil
}
