package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agro-ledger/inventory"
	"github.com/warp/agro-ledger/ledger"
	"github.com/warp/agro-ledger/store/memory"
	"github.com/warp/agro-ledger/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var day = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

type backend struct {
	name string
	open func(t *testing.T) inventory.TxStore
}

// backends runs each scenario against the in-memory store and SQLite.
var backends = []backend{
	{"memory", func(t *testing.T) inventory.TxStore { return memory.New() }},
	{"sqlite", func(t *testing.T) inventory.TxStore {
		store, err := sqlstore.OpenSQLite(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	}},
}

func eachBackend(t *testing.T, fn func(t *testing.T, store inventory.TxStore)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.open(t))
		})
	}
}

// newService returns a service over store with three active products:
// raw (raw_material), dried and packed (finished_good).
func newService(t *testing.T, store inventory.TxStore) *inventory.Service {
	t.Helper()
	svc := inventory.NewService(store)
	ctx := context.Background()
	for _, p := range []inventory.ProductInput{
		{ID: "raw", Name: "Raw rattan", Unit: "kg", Type: inventory.ProductRawMaterial},
		{ID: "dried", Name: "Dried rattan", Unit: "kg", Type: inventory.ProductFinishedGood},
		{ID: "packed", Name: "Packed rattan", Unit: "pack", Type: inventory.ProductFinishedGood},
	} {
		_, err := svc.CreateProduct(ctx, p)
		require.NoError(t, err)
	}
	return svc
}

func line(product, qty, price string) inventory.LineInput {
	return inventory.LineInput{ProductID: product, Quantity: qty, UnitPrice: price}
}

func assertStock(t *testing.T, svc *inventory.Service, product ledger.ProductID, want string) {
	t.Helper()
	qty, err := svc.CurrentStock(context.Background(), product)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString(want).Equal(qty), "stock of %s: want %s, got %s", product, want, qty)
}

func purchase(t *testing.T, svc *inventory.Service, product, qty, price string) ledger.DocumentID {
	t.Helper()
	id, err := svc.CreatePurchase(context.Background(), inventory.DocumentInput{
		Date:  day,
		Lines: []inventory.LineInput{line(product, qty, price)},
		Actor: "tester",
	})
	require.NoError(t, err)
	return id
}

// =============================================================================
// PURCHASE & SALE
// =============================================================================

func TestCreatePurchase_TotalsAndMovement(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		// GIVEN: A purchase of 3 kg at 50000
		svc := newService(t, store)
		ctx := context.Background()

		// WHEN: Creating it
		id, err := svc.CreatePurchase(ctx, inventory.DocumentInput{
			Date:         day,
			Counterparty: "Pak Budi",
			Lines:        []inventory.LineInput{line("raw", "3", "50000")},
			Actor:        "tester",
		})
		require.NoError(t, err)

		// THEN: The document is posted with total 150000 and one +3 movement
		doc, err := svc.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPosted, doc.Status)
		assert.Equal(t, "150000", doc.Total.String())
		require.Len(t, doc.Lines, 1)
		assert.Equal(t, "150000", doc.Lines[0].Total.String())
		assert.Equal(t, "Pak Budi", doc.Counterparty)
		assert.Equal(t, "tester", doc.CreatedBy)

		history, err := svc.History(ctx, "raw")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "3", history[0].Delta.String())
		assert.Equal(t, ledger.SourcePurchase, history[0].Kind)
		assert.Equal(t, id, history[0].DocumentID)

		assertStock(t, svc, "raw", "3")
	})
}

func TestCreateSale_ReducesStock(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		svc := newService(t, store)
		ctx := context.Background()
		purchase(t, svc, "dried", "10", "20000")

		id, err := svc.CreateSale(ctx, inventory.DocumentInput{
			Date:  day,
			Lines: []inventory.LineInput{line("dried", "3", "35000"), line("dried", "0.5", "35000")},
		})
		require.NoError(t, err)

		doc, err := svc.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "122500", doc.Total.String())
		assertStock(t, svc, "dried", "6.5")

		history, err := svc.History(ctx, "dried")
		require.NoError(t, err)
		var saleDeltas []string
		for _, e := range history {
			if e.DocumentID == id {
				saleDeltas = append(saleDeltas, e.Delta.String())
			}
		}
		assert.ElementsMatch(t, []string{"-3", "-0.5"}, saleDeltas)
	})
}

func TestCreatePurchase_IncompleteLinesDropped(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		// GIVEN: Rows missing a product, a quantity, a price, or with zero quantity
		svc := newService(t, store)
		ctx := context.Background()

		id, err := svc.CreatePurchase(ctx, inventory.DocumentInput{
			Date: day,
			Lines: []inventory.LineInput{
				line("", "1", "100"),
				line("raw", "", "100"),
				line("raw", "2", ""),
				line("raw", "0", "100"),
			},
		})

		// THEN: The document is accepted with no lines and total 0
		require.NoError(t, err)
		doc, err := svc.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, doc.Lines)
		assert.True(t, doc.Total.IsZero())
		assertStock(t, svc, "raw", "0")
	})
}

func TestCreatePurchase_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		in    inventory.DocumentInput
		field string
	}{
		{"missing date", inventory.DocumentInput{Lines: []inventory.LineInput{line("raw", "1", "1")}}, "date"},
		{"bad quantity", inventory.DocumentInput{Date: day, Lines: []inventory.LineInput{line("raw", "abc", "1")}}, "lines[0].quantity"},
		{"negative price", inventory.DocumentInput{Date: day, Lines: []inventory.LineInput{line("raw", "1", "-5")}}, "lines[0].unit_price"},
		{"huge exponent", inventory.DocumentInput{Date: day, Lines: []inventory.LineInput{line("raw", "1e2000000", "1")}}, "lines[0].quantity"},
		{"tiny exponent", inventory.DocumentInput{Date: day, Lines: []inventory.LineInput{line("raw", "1", "1e-31")}}, "lines[0].unit_price"},
		{"too many digits", inventory.DocumentInput{Date: day, Lines: []inventory.LineInput{line("raw", "123456789012345678901234567890123456789", "1")}}, "lines[0].quantity"},
		{"created cancelled", inventory.DocumentInput{Date: day, Status: ledger.StatusCancelled}, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			svc := newService(t, store)

			_, err := svc.CreatePurchase(context.Background(), tt.in)

			var vErr *inventory.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.True(t, inventory.IsClientError(err))

			docs, err := svc.ListDocuments(context.Background(), inventory.DocumentFilter{})
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

func TestCreateSale_UnknownOrInactiveProduct(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		svc := newService(t, store)
		ctx := context.Background()

		_, err := svc.CreateSale(ctx, inventory.DocumentInput{
			Date:  day,
			Lines: []inventory.LineInput{line("ghost", "1", "1")},
		})
		assert.ErrorIs(t, err, inventory.ErrProductNotFound)

		require.NoError(t, svc.SetProductActive(ctx, "packed", false))
		_, err = svc.CreateSale(ctx, inventory.DocumentInput{
			Date:  day,
			Lines: []inventory.LineInput{line("packed", "1", "1")},
		})
		assert.ErrorIs(t, err, inventory.ErrProductInactive)

		docs, err := svc.ListDocuments(ctx, inventory.DocumentFilter{})
		require.NoError(t, err)
		assert.Empty(t, docs, "rejected documents leave nothing behind")
	})
}

// =============================================================================
// PRODUCTION
// =============================================================================

func TestCreateProduction_InputsAndOutputs(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		// GIVEN: 150 kg raw on hand
		svc := newService(t, store)
		ctx := context.Background()
		purchase(t, svc, "raw", "150", "5000")

		// WHEN: Drying 100 kg raw into 70 kg dried
		id, err := svc.CreateProduction(ctx, inventory.ProductionInput{
			Date:           day,
			ProductionType: "drying",
			Inputs:         []inventory.LineInput{line("raw", "100", "5000")},
			Outputs:        []inventory.LineInput{line("dried", "70", "9000")},
			Workers: []inventory.WorkerAssignment{
				{Name: "Siti", Role: "dryer"},
				{Name: "  "},
			},
		})
		require.NoError(t, err)

		// THEN: One negative input movement, one positive output movement
		doc, err := svc.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "500000", doc.Total.String())
		assert.Equal(t, "630000", doc.OutputTotal.String())
		assert.Equal(t, "drying", doc.ProductionType)
		require.Len(t, doc.Workers, 1)
		assert.Equal(t, "Siti", doc.Workers[0].Name)
		assert.Len(t, doc.LinesByRole(inventory.RoleInput), 1)
		assert.Len(t, doc.LinesByRole(inventory.RoleOutput), 1)

		assertStock(t, svc, "raw", "50")
		assertStock(t, svc, "dried", "70")

		history, err := svc.History(ctx, "dried")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, ledger.SourceProductionOutput, history[0].Kind)
	})
}

// failingOutputs wraps a TxStore so that appending any production output
// movement fails inside the unit of work.
type failingOutputs struct {
	inventory.TxStore
}

var errDiskFull = errors.New("disk full")

func (f failingOutputs) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	return f.TxStore.WithTx(ctx, func(tx inventory.Store) error {
		return fn(failOnOutput{tx})
	})
}

type failOnOutput struct {
	inventory.Store
}

func (f failOnOutput) AppendMovements(ctx context.Context, mvs []ledger.Movement) error {
	for _, mv := range mvs {
		if mv.Kind == ledger.SourceProductionOutput {
			return errDiskFull
		}
	}
	return f.Store.AppendMovements(ctx, mvs)
}

func TestCreateProduction_OutputFailureRollsBackInputs(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		// GIVEN: 100 kg raw on hand
		svc := newService(t, store)
		ctx := context.Background()
		purchase(t, svc, "raw", "100", "5000")

		// WHEN: The output append fails after the inputs were appended
		svc.Store = failingOutputs{store}
		_, err := svc.CreateProduction(ctx, inventory.ProductionInput{
			Date:    day,
			Inputs:  []inventory.LineInput{line("raw", "40", "5000")},
			Outputs: []inventory.LineInput{line("dried", "30", "9000")},
		})

		// THEN: Nothing from the run is visible
		require.ErrorIs(t, err, errDiskFull)
		svc.Store = store

		assertStock(t, svc, "raw", "100")
		assertStock(t, svc, "dried", "0")

		runs, err := svc.ListDocuments(ctx, inventory.DocumentFilter{Kind: inventory.KindProduction})
		require.NoError(t, err)
		assert.Empty(t, runs)

		history, err := svc.History(ctx, "raw")
		require.NoError(t, err)
		assert.Len(t, history, 1, "only the purchase movement remains")
	})
}

// =============================================================================
// REVOCATION
// =============================================================================

func TestRevokeSale_RestoresStockAndKeepsHistory(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		svc := newService(t, store)
		ctx := context.Background()
		purchase(t, svc, "dried", "10", "20000")

		saleID, err := svc.CreateSale(ctx, inventory.DocumentInput{
			Date:  day,
			Lines: []inventory.LineInput{line("dried", "4", "30000")},
		})
		require.NoError(t, err)
		assertStock(t, svc, "dried", "6")

		before, err := svc.History(ctx, "dried")
		require.NoError(t, err)
		contribution := ledger.Contribution(before, saleID)["dried"]

		// WHEN: Revoking the sale
		require.NoError(t, svc.RevokeSale(ctx, saleID, "customer returned goods", "manager"))

		// THEN: Stock moves by exactly the negated contribution
		qty, err := svc.CurrentStock(ctx, "dried")
		require.NoError(t, err)
		assert.True(t, qty.Equal(decimal.NewFromInt(6).Sub(contribution)), "got %s", qty)

		doc, err := svc.GetDocument(ctx, saleID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusCancelled, doc.Status)
		require.NotNil(t, doc.Revocation)
		assert.Equal(t, "customer returned goods", doc.Revocation.Reason)
		assert.Equal(t, "manager", doc.Revocation.Actor)
		assert.Len(t, doc.Lines, 1, "lines survive revocation")

		after, err := svc.History(ctx, "dried")
		require.NoError(t, err)
		assert.Len(t, after, len(before), "movements survive revocation")
	})
}

func TestRevoke_Twice(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		svc := newService(t, store)
		ctx := context.Background()
		id := purchase(t, svc, "raw", "5", "100")

		require.NoError(t, svc.RevokePurchase(ctx, id, "typo", "clerk"))
		err := svc.RevokePurchase(ctx, id, "again", "clerk")

		var stateErr *inventory.InvalidStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, ledger.StatusCancelled, stateErr.Current)
		assert.ErrorIs(t, err, inventory.ErrInvalidState)
		assertStock(t, svc, "raw", "0")

		doc, err := svc.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "typo", doc.Revocation.Reason, "first revocation stamp is kept")
	})
}

func TestRevoke_WrongKindOrUnknown(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()
	id := purchase(t, svc, "raw", "5", "100")

	assert.ErrorIs(t, svc.RevokeSale(ctx, id, "", ""), inventory.ErrDocumentNotFound)
	assert.ErrorIs(t, svc.RevokeProduction(ctx, "nope", "", ""), inventory.ErrDocumentNotFound)
	assertStock(t, svc, "raw", "5")
}

func TestRevokeProduction(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		svc := newService(t, store)
		ctx := context.Background()
		purchase(t, svc, "raw", "100", "5000")

		id, err := svc.CreateProduction(ctx, inventory.ProductionInput{
			Date:    day,
			Inputs:  []inventory.LineInput{line("raw", "100", "5000")},
			Outputs: []inventory.LineInput{line("dried", "70", "9000")},
		})
		require.NoError(t, err)

		require.NoError(t, svc.RevokeProduction(ctx, id, "wrong batch", "supervisor"))

		assertStock(t, svc, "raw", "100")
		assertStock(t, svc, "dried", "0")
	})
}

// =============================================================================
// DRAFTS
// =============================================================================

func TestDraft_NoMovementsUntilPosted(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		svc := newService(t, store)
		ctx := context.Background()

		id, err := svc.CreatePurchase(ctx, inventory.DocumentInput{
			Date:   day,
			Status: ledger.StatusDraft,
			Lines:  []inventory.LineInput{line("raw", "8", "1000")},
		})
		require.NoError(t, err)
		assertStock(t, svc, "raw", "0")

		// A draft cannot be revoked
		assert.ErrorIs(t, svc.RevokePurchase(ctx, id, "", ""), inventory.ErrInvalidState)

		// WHEN: Posting it
		require.NoError(t, svc.PostDraft(ctx, id, "clerk"))

		// THEN: Its movements appear, once
		assertStock(t, svc, "raw", "8")
		assert.ErrorIs(t, svc.PostDraft(ctx, id, "clerk"), inventory.ErrInvalidState)
		assertStock(t, svc, "raw", "8")

		drafts, err := svc.ListDocuments(ctx, inventory.DocumentFilter{Status: ledger.StatusDraft})
		require.NoError(t, err)
		assert.Empty(t, drafts)
	})
}

func TestPostDraft_Unknown(t *testing.T) {
	svc := newService(t, memory.New())
	assert.ErrorIs(t, svc.PostDraft(context.Background(), "nope", "clerk"), inventory.ErrDocumentNotFound)
}

// =============================================================================
// STOCK POLICY
// =============================================================================

func TestSale_NegativeStockAllowedByDefault(t *testing.T) {
	svc := newService(t, memory.New())

	_, err := svc.CreateSale(context.Background(), inventory.DocumentInput{
		Date:  day,
		Lines: []inventory.LineInput{line("packed", "2", "10")},
	})

	require.NoError(t, err)
	assertStock(t, svc, "packed", "-2")
}

func TestSale_OversellRejectedWhenDisallowed(t *testing.T) {
	eachBackend(t, func(t *testing.T, store inventory.TxStore) {
		svc := newService(t, store)
		svc.AllowNegativeStock = false
		ctx := context.Background()
		purchase(t, svc, "dried", "5", "100")

		_, err := svc.CreateSale(ctx, inventory.DocumentInput{
			Date:  day,
			Lines: []inventory.LineInput{line("dried", "3", "10"), line("dried", "3", "10")},
		})

		var stockErr *ledger.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "5", stockErr.Available.String())
		assert.Equal(t, "6", stockErr.Requested.String())
		assertStock(t, svc, "dried", "5")

		sales, err := svc.ListDocuments(ctx, inventory.DocumentFilter{Kind: inventory.KindSale})
		require.NoError(t, err)
		assert.Empty(t, sales)
	})
}

// =============================================================================
// CACHE
// =============================================================================

type recordingCache struct {
	values      map[ledger.ProductID]decimal.Decimal
	invalidated []ledger.ProductID
}

func (c *recordingCache) Get(_ context.Context, p ledger.ProductID) (decimal.Decimal, bool, error) {
	v, ok := c.values[p]
	return v, ok, nil
}

func (c *recordingCache) Set(_ context.Context, p ledger.ProductID, qty decimal.Decimal) error {
	c.values[p] = qty
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, ps ...ledger.ProductID) error {
	for _, p := range ps {
		delete(c.values, p)
	}
	c.invalidated = append(c.invalidated, ps...)
	return nil
}

func TestCache_InvalidatedAfterCommitAndRevoke(t *testing.T) {
	svc := newService(t, memory.New())
	cache := &recordingCache{values: make(map[ledger.ProductID]decimal.Decimal)}
	svc.Cache = cache
	ctx := context.Background()

	id := purchase(t, svc, "raw", "4", "100")
	assertStock(t, svc, "raw", "4")
	assert.Equal(t, "4", cache.values["raw"].String(), "read fills the cache")

	require.NoError(t, svc.RevokePurchase(ctx, id, "", ""))
	assertStock(t, svc, "raw", "0")
	assert.Equal(t, []ledger.ProductID{"raw", "raw"}, cache.invalidated)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func TestCreateProduct_Rules(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, inventory.ProductInput{ID: "raw", Name: "Again", Unit: "kg", Type: inventory.ProductRawMaterial})
	assert.ErrorIs(t, err, inventory.ErrDuplicateProduct)

	_, err = svc.CreateProduct(ctx, inventory.ProductInput{Name: "X", Unit: "kg", Type: "gadget"})
	assert.ErrorIs(t, err, inventory.ErrValidation)

	id, err := svc.CreateProduct(ctx, inventory.ProductInput{Name: "Stik", Unit: "kg", Type: inventory.ProductFinishedGood})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 4)
}
