/*
service.go - Document lifecycle: create, post, revoke

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  Submission ──▶ buildDocument ──▶ WithTx ┬─▶ check products       │
  │  (strings)      (validate,               ├─▶ InsertDocument       │
  │                  filter, total)          ├─▶ [stock policy]       │
  │                                          └─▶ RecordBatch(moves)   │
  │                                                   │              │
  │                                   commit ◀────────┘              │
  │                                     │                            │
  │                                     ▼                            │
  │                           invalidate stock cache                 │
  │                                                                  │
  └──────────────────────────────────────────────────────────────────┘

  A failure anywhere inside WithTx rolls back the header, the lines and
  every movement already appended. For production runs the inputs are
  appended before the outputs; a failed output append leaves nothing.

REVOCATION:
  Revoke is a compare-and-set on status (posted → cancelled). The ledger
  rows are left alone; the next stock read skips them.
*/
package inventory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/agro-ledger/ledger"
)

type Service struct {
	Store TxStore
	Cache ledger.StockCache // optional

	// AllowNegativeStock disables the oversell check for sales and
	// production inputs. The ledger accepts negative stock either way.
	AllowNegativeStock bool

	Log   zerolog.Logger
	NewID func() string
	Now   func() time.Time
}

func NewService(store TxStore) *Service {
	return &Service{
		Store:              store,
		AllowNegativeStock: true,
		Log:                zerolog.Nop(),
		NewID:              uuid.NewString,
		Now:                func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// CREATE
// =============================================================================

func (s *Service) CreatePurchase(ctx context.Context, in DocumentInput) (ledger.DocumentID, error) {
	doc, err := buildDocument(KindPurchase, in, s.NewID, s.Now())
	if err != nil {
		return "", err
	}
	return s.create(ctx, doc)
}

func (s *Service) CreateSale(ctx context.Context, in DocumentInput) (ledger.DocumentID, error) {
	doc, err := buildDocument(KindSale, in, s.NewID, s.Now())
	if err != nil {
		return "", err
	}
	return s.create(ctx, doc)
}

func (s *Service) CreateProduction(ctx context.Context, in ProductionInput) (ledger.DocumentID, error) {
	doc, err := buildProduction(in, s.NewID, s.Now())
	if err != nil {
		return "", err
	}
	return s.create(ctx, doc)
}

func (s *Service) create(ctx context.Context, doc Document) (ledger.DocumentID, error) {
	err := s.Store.WithTx(ctx, func(tx Store) error {
		if err := checkProducts(ctx, tx, doc.Lines); err != nil {
			return err
		}
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		if doc.Status != ledger.StatusPosted {
			return nil
		}
		return s.post(ctx, tx, &doc)
	})
	if err != nil {
		s.logFailure(err).
			Str("kind", string(doc.Kind)).
			Msg("document rejected")
		return "", err
	}

	s.invalidate(ctx, &doc)
	s.Log.Info().
		Str("document_id", string(doc.ID)).
		Str("kind", string(doc.Kind)).
		Str("status", string(doc.Status)).
		Int("lines", len(doc.Lines)).
		Str("total", doc.Total.String()).
		Msg("document created")
	return doc.ID, nil
}

// post appends the document's movements through tx. Production runs append
// inputs and outputs as two batches inside the same unit of work.
func (s *Service) post(ctx context.Context, tx Store, doc *Document) error {
	mvs := doc.Movements(s.NewID, s.Now())
	if !s.AllowNegativeStock {
		if err := checkStock(ctx, tx, mvs); err != nil {
			return err
		}
	}

	l := ledger.NewLedger(tx)
	if doc.Kind != KindProduction {
		return l.RecordBatch(ctx, mvs)
	}

	var inputs, outputs []ledger.Movement
	for _, mv := range mvs {
		if mv.Kind == ledger.SourceProductionInput {
			inputs = append(inputs, mv)
		} else {
			outputs = append(outputs, mv)
		}
	}
	if err := l.RecordBatch(ctx, inputs); err != nil {
		return err
	}
	return l.RecordBatch(ctx, outputs)
}

func checkProducts(ctx context.Context, st Store, lines []Line) error {
	checked := make(map[ledger.ProductID]bool)
	for _, line := range lines {
		if checked[line.ProductID] {
			continue
		}
		checked[line.ProductID] = true

		p, err := st.GetProduct(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if p == nil {
			return &ProductError{ProductID: line.ProductID, Err: ErrProductNotFound}
		}
		if !p.Active {
			return &ProductError{ProductID: line.ProductID, Err: ErrProductInactive}
		}
	}
	return nil
}

// checkStock rejects movements that would leave any product they reduce
// below zero. It reads through tx so it sees the unit of work's own writes.
func checkStock(ctx context.Context, tx Store, mvs []ledger.Movement) error {
	net := make(map[ledger.ProductID]decimal.Decimal)
	for _, mv := range mvs {
		net[mv.ProductID] = net[mv.ProductID].Add(mv.Delta)
	}

	l := ledger.NewLedger(tx)
	for _, product := range ledger.Products(mvs) {
		change := net[product]
		if !change.IsNegative() {
			continue
		}
		available, err := l.CurrentStock(ctx, product)
		if err != nil {
			return err
		}
		if available.Add(change).IsNegative() {
			return &ledger.InsufficientStockError{
				ProductID: product,
				Available: available,
				Requested: change.Neg(),
			}
		}
	}
	return nil
}

// =============================================================================
// POST DRAFT
// =============================================================================

// PostDraft moves a draft document to posted and records its movements.
func (s *Service) PostDraft(ctx context.Context, id ledger.DocumentID, actor string) error {
	var doc *Document
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		doc, err = tx.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return ErrDocumentNotFound
		}
		if doc.Status != ledger.StatusDraft {
			return &InvalidStateError{DocumentID: id, Current: doc.Status, Wanted: ledger.StatusPosted}
		}
		if err := checkProducts(ctx, tx, doc.Lines); err != nil {
			return err
		}
		if err := tx.TransitionStatus(ctx, id, ledger.StatusDraft, ledger.StatusPosted, nil); err != nil {
			return err
		}
		return s.post(ctx, tx, doc)
	})
	if err != nil {
		s.logFailure(err).Str("document_id", string(id)).Msg("post rejected")
		return err
	}

	s.invalidate(ctx, doc)
	s.Log.Info().
		Str("document_id", string(id)).
		Str("actor", actor).
		Msg("draft posted")
	return nil
}

// =============================================================================
// REVOKE
// =============================================================================

func (s *Service) RevokePurchase(ctx context.Context, id ledger.DocumentID, reason, actor string) error {
	return s.Revoke(ctx, KindPurchase, id, reason, actor)
}

func (s *Service) RevokeSale(ctx context.Context, id ledger.DocumentID, reason, actor string) error {
	return s.Revoke(ctx, KindSale, id, reason, actor)
}

func (s *Service) RevokeProduction(ctx context.Context, id ledger.DocumentID, reason, actor string) error {
	return s.Revoke(ctx, KindProduction, id, reason, actor)
}

// Revoke cancels a posted document of the given kind. Revoking anything
// that is not posted fails with ErrInvalidState, including a second revoke.
func (s *Service) Revoke(ctx context.Context, kind Kind, id ledger.DocumentID, reason, actor string) error {
	doc, err := s.Store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil || doc.Kind != kind {
		return ErrDocumentNotFound
	}

	rev := &Revocation{
		Reason: strings.TrimSpace(reason),
		Actor:  actor,
		At:     s.Now(),
	}
	if err := s.Store.TransitionStatus(ctx, id, ledger.StatusPosted, ledger.StatusCancelled, rev); err != nil {
		s.logFailure(err).Str("document_id", string(id)).Msg("revoke rejected")
		return err
	}

	s.invalidate(ctx, doc)
	s.Log.Info().
		Str("document_id", string(id)).
		Str("kind", string(kind)).
		Str("actor", actor).
		Str("reason", rev.Reason).
		Msg("document revoked")
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) GetDocument(ctx context.Context, id ledger.DocumentID) (*Document, error) {
	doc, err := s.Store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *Service) ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	return s.Store.ListDocuments(ctx, filter)
}

func (s *Service) stockLedger() *ledger.DefaultLedger {
	l := ledger.NewLedger(s.Store)
	if s.Cache != nil {
		l = l.WithCache(s.Cache)
	}
	return l
}

func (s *Service) CurrentStock(ctx context.Context, product ledger.ProductID) (decimal.Decimal, error) {
	return s.stockLedger().CurrentStock(ctx, product)
}

func (s *Service) CurrentStockByProduct(ctx context.Context) (map[ledger.ProductID]decimal.Decimal, error) {
	return s.stockLedger().CurrentStockByProduct(ctx)
}

func (s *Service) History(ctx context.Context, product ledger.ProductID) ([]ledger.Entry, error) {
	return s.stockLedger().History(ctx, product)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) invalidate(ctx context.Context, doc *Document) {
	if s.Cache == nil || doc == nil || len(doc.Lines) == 0 {
		return
	}
	seen := make(map[ledger.ProductID]bool)
	var products []ledger.ProductID
	for _, l := range doc.Lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			products = append(products, l.ProductID)
		}
	}
	if err := s.Cache.Invalidate(ctx, products...); err != nil {
		s.Log.Warn().Err(err).Str("document_id", string(doc.ID)).Msg("stock cache invalidation failed")
	}
}

func (s *Service) logFailure(err error) *zerolog.Event {
	if IsClientError(err) || IsNotFound(err) || errors.Is(err, ledger.ErrDuplicateMovement) {
		return s.Log.Warn().Err(err)
	}
	return s.Log.Error().Err(err)
}

// =============================================================================
// STOCK REPORT
// =============================================================================

// StockReport is every product's derived stock at one point in time.
type StockReport struct {
	At       time.Time
	Stock    map[ledger.ProductID]decimal.Decimal
	Negative []ledger.ProductID // sorted
}

// StockReport recomputes stock for all products from the full history. When
// a cache is configured the fresh figures are written to it.
func (s *Service) StockReport(ctx context.Context) (StockReport, error) {
	stock, err := ledger.NewLedger(s.Store).CurrentStockByProduct(ctx)
	if err != nil {
		return StockReport{}, err
	}

	report := StockReport{At: s.Now(), Stock: stock}
	for p, qty := range stock {
		if qty.IsNegative() {
			report.Negative = append(report.Negative, p)
		}
		if s.Cache != nil {
			if err := s.Cache.Set(ctx, p, qty); err != nil {
				s.Log.Warn().Err(err).Str("product_id", string(p)).Msg("stock cache refresh failed")
			}
		}
	}
	sort.Slice(report.Negative, func(i, j int) bool { return report.Negative[i] < report.Negative[j] })
	return report, nil
}
