/*
errors.go - Centralized error types for the stock ledger

ERROR CATEGORIES:
  1. Movement errors - Malformed or duplicate ledger appends
  2. Stock errors - Policy checks made by callers (e.g. oversell)
  3. Store errors - Missing source documents

Domain packages wrap these with additional context and match with errors.Is.
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateMovement is returned when a movement with the same
	// idempotency key already exists.
	ErrDuplicateMovement = errors.New("duplicate movement")

	// ErrInvalidMovement is returned for movements that break the sign or
	// reference rules.
	ErrInvalidMovement = errors.New("invalid movement")

	// ErrSourceNotFound is returned when a movement references a document
	// the store does not know.
	ErrSourceNotFound = errors.New("source document not found")

	// ErrInsufficientStock is returned by callers that enforce a
	// no-oversell policy. The ledger itself never returns it.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// MovementError names the movement and the rule it broke.
type MovementError struct {
	ProductID  ProductID
	DocumentID DocumentID
	Reason     string
}

func (e *MovementError) Error() string {
	return fmt.Sprintf("invalid movement for product %s (document %s): %s",
		e.ProductID, e.DocumentID, e.Reason)
}

func (e *MovementError) Unwrap() error { return ErrInvalidMovement }

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID ProductID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %s, requested %s, shortfall %s",
		e.ProductID, e.Available, e.Requested, e.Requested.Sub(e.Available))
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
