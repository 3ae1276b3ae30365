/*
store.go - Persistence interface for stock movements

APPEND-ONLY CONTRACT:
  - AppendMovements(): Atomic multi-movement write
  - LoadMovements(): Read, joined with source status
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Each movement carries an idempotency key (document:line by default).
  A second append with the same key is rejected with ErrDuplicateMovement,
  so a retried document write can never double-count a line.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL
  - store/memory: In-memory for tests and development
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// MovementFilter narrows LoadMovements. Zero value loads everything.
type MovementFilter struct {
	ProductIDs []ProductID
	DocumentID DocumentID
}

// Store handles persistence of movements.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete.
type Store interface {
	// AppendMovements persists movements atomically. Either all are written
	// or none are.
	AppendMovements(ctx context.Context, mvs []Movement) error

	// LoadMovements returns matching movements with the status their source
	// document has right now. Order is unspecified.
	LoadMovements(ctx context.Context, filter MovementFilter) ([]Entry, error)
}

// StockCache is an optional read-through cache for single-product stock.
// Implementations must tolerate Invalidate for keys they never saw.
type StockCache interface {
	Get(ctx context.Context, product ProductID) (decimal.Decimal, bool, error)
	Set(ctx context.Context, product ProductID, qty decimal.Decimal) error
	Invalidate(ctx context.Context, products ...ProductID) error
}
