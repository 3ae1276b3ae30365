package inventory

import (
	"context"

	"github.com/warp/agro-ledger/ledger"
)

// Store persists products and documents. It embeds the ledger store so a
// single unit of work can write a document and its movements.
//
// Documents are never deleted. The only mutation is TransitionStatus.
type Store interface {
	ledger.Store

	// SaveProduct inserts a product, or updates name/unit/type/active of an
	// existing one.
	SaveProduct(ctx context.Context, p Product) error
	// GetProduct returns nil, nil when the product does not exist.
	GetProduct(ctx context.Context, id ledger.ProductID) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	// InsertDocument writes header, lines and workers atomically.
	InsertDocument(ctx context.Context, d Document) error
	// GetDocument returns nil, nil when the document does not exist.
	GetDocument(ctx context.Context, id ledger.DocumentID) (*Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error)

	// TransitionStatus moves a document from status from to status to,
	// stamping rev when non-nil. It is a compare-and-set: when the stored
	// status is not from it returns ErrInvalidState, and ErrDocumentNotFound
	// when there is no such document.
	TransitionStatus(ctx context.Context, id ledger.DocumentID, from, to ledger.Status, rev *Revocation) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
