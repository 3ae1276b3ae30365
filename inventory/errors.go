package inventory

import (
	"errors"
	"fmt"

	"github.com/warp/agro-ledger/ledger"
)

var (
	// ErrValidation is returned for input rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState is returned when a status transition is not allowed
	// from the document's current status.
	ErrInvalidState = errors.New("invalid document state")

	ErrDocumentNotFound = errors.New("document not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrProductInactive  = errors.New("product inactive")
	ErrDuplicateProduct = errors.New("product already exists")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidStateError reports a rejected transition.
type InvalidStateError struct {
	DocumentID ledger.DocumentID
	Current    ledger.Status
	Wanted     ledger.Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("document %s is %s, cannot become %s", e.DocumentID, e.Current, e.Wanted)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ProductError reports a line that references a product it may not use.
type ProductError struct {
	ProductID ledger.ProductID
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.ProductID)
}

func (e *ProductError) Unwrap() error { return e.Err }

// IsClientError returns true if the error is due to invalid client input
// or a rejected state transition.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrProductInactive) ||
		errors.Is(err, ErrDuplicateProduct) ||
		errors.Is(err, ledger.ErrInsufficientStock) ||
		errors.Is(err, ledger.ErrInvalidMovement)
}

// IsNotFound returns true if the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}
