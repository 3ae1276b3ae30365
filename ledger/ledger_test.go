package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agro-ledger/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// fakeStore keeps movements in a slice and document statuses in a map.
type fakeStore struct {
	movements []ledger.Movement
	status    map[ledger.DocumentID]ledger.Status
	loads     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{status: make(map[ledger.DocumentID]ledger.Status)}
}

func (s *fakeStore) AppendMovements(_ context.Context, mvs []ledger.Movement) error {
	for _, mv := range mvs {
		if _, ok := s.status[mv.DocumentID]; !ok {
			return ledger.ErrSourceNotFound
		}
		for _, existing := range s.movements {
			if existing.Key() == mv.Key() {
				return ledger.ErrDuplicateMovement
			}
		}
	}
	s.movements = append(s.movements, mvs...)
	return nil
}

func (s *fakeStore) LoadMovements(_ context.Context, f ledger.MovementFilter) ([]ledger.Entry, error) {
	s.loads++
	var out []ledger.Entry
	for _, mv := range s.movements {
		if len(f.ProductIDs) > 0 && mv.ProductID != f.ProductIDs[0] {
			continue
		}
		out = append(out, ledger.Entry{Movement: mv, SourceStatus: s.status[mv.DocumentID]})
	}
	return out, nil
}

type fakeCache struct {
	values      map[ledger.ProductID]decimal.Decimal
	invalidated []ledger.ProductID
}

func (c *fakeCache) Get(_ context.Context, p ledger.ProductID) (decimal.Decimal, bool, error) {
	v, ok := c.values[p]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, p ledger.ProductID, qty decimal.Decimal) error {
	c.values[p] = qty
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, ps ...ledger.ProductID) error {
	for _, p := range ps {
		delete(c.values, p)
		c.invalidated = append(c.invalidated, p)
	}
	return nil
}

func mv(doc, line string, product string, kind ledger.SourceKind, delta string) ledger.Movement {
	return ledger.Movement{
		ID:         ledger.MovementID(doc + "-" + line),
		ProductID:  ledger.ProductID(product),
		Delta:      decimal.RequireFromString(delta),
		DocumentID: ledger.DocumentID(doc),
		Kind:       kind,
		LineID:     line,
	}
}

func entry(m ledger.Movement, status ledger.Status) ledger.Entry {
	return ledger.Entry{Movement: m, SourceStatus: status}
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestSum_SkipsCancelledSources(t *testing.T) {
	// GIVEN: A purchase of 10, a sale of 3, and a cancelled purchase of 5
	entries := []ledger.Entry{
		entry(mv("p1", "1", "rattan", ledger.SourcePurchase, "10"), ledger.StatusPosted),
		entry(mv("s1", "1", "rattan", ledger.SourceSale, "-3"), ledger.StatusPosted),
		entry(mv("p2", "1", "rattan", ledger.SourcePurchase, "5"), ledger.StatusCancelled),
	}

	// WHEN: Summing
	totals := ledger.Sum(entries)

	// THEN: Only the posted sources count
	assert.True(t, decimal.NewFromInt(7).Equal(totals["rattan"]), "got %s", totals["rattan"])
}

func TestSum_OrderIndependent(t *testing.T) {
	entries := []ledger.Entry{
		entry(mv("p1", "1", "a", ledger.SourcePurchase, "10.5"), ledger.StatusPosted),
		entry(mv("s1", "1", "a", ledger.SourceSale, "-0.25"), ledger.StatusPosted),
		entry(mv("r1", "1", "b", ledger.SourceProductionOutput, "3"), ledger.StatusPosted),
		entry(mv("r1", "2", "a", ledger.SourceProductionInput, "-4"), ledger.StatusPosted),
	}
	reversed := make([]ledger.Entry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}

	forward := ledger.Sum(entries)
	backward := ledger.Sum(reversed)

	require.Len(t, forward, 2)
	for p, qty := range forward {
		assert.True(t, qty.Equal(backward[p]), "product %s: %s != %s", p, qty, backward[p])
	}
	assert.Equal(t, "6.25", forward["a"].String())
}

func TestContribution_IgnoresStatus(t *testing.T) {
	entries := []ledger.Entry{
		entry(mv("r1", "in", "raw", ledger.SourceProductionInput, "-100"), ledger.StatusCancelled),
		entry(mv("r1", "out", "dried", ledger.SourceProductionOutput, "70"), ledger.StatusCancelled),
		entry(mv("p1", "1", "raw", ledger.SourcePurchase, "500"), ledger.StatusPosted),
	}

	c := ledger.Contribution(entries, "r1")

	assert.Equal(t, "-100", c["raw"].String())
	assert.Equal(t, "70", c["dried"].String())
}

func TestAmountInRange(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"12.75", true},
		{"1e30", true},
		{"1e-30", true},
		{"99999999999999999999999999999999999999", true},
		{"1e31", false},
		{"1e-31", false},
		{"1e2000000", false},
		{"123456789012345678901234567890123456789", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.AmountInRange(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestProducts_FirstSeenOrder(t *testing.T) {
	mvs := []ledger.Movement{
		mv("d", "1", "b", ledger.SourcePurchase, "1"),
		mv("d", "2", "a", ledger.SourcePurchase, "1"),
		mv("d", "3", "b", ledger.SourcePurchase, "1"),
	}
	assert.Equal(t, []ledger.ProductID{"b", "a"}, ledger.Products(mvs))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate_SignRules(t *testing.T) {
	tests := []struct {
		name    string
		mv      ledger.Movement
		wantErr bool
	}{
		{"purchase inbound", mv("d", "1", "p", ledger.SourcePurchase, "5"), false},
		{"purchase outbound", mv("d", "1", "p", ledger.SourcePurchase, "-5"), true},
		{"sale outbound", mv("d", "1", "p", ledger.SourceSale, "-5"), false},
		{"sale inbound", mv("d", "1", "p", ledger.SourceSale, "5"), true},
		{"production input outbound", mv("d", "1", "p", ledger.SourceProductionInput, "-1"), false},
		{"production output inbound", mv("d", "1", "p", ledger.SourceProductionOutput, "1"), false},
		{"production output outbound", mv("d", "1", "p", ledger.SourceProductionOutput, "-1"), true},
		{"zero delta", mv("d", "1", "p", ledger.SourcePurchase, "0"), true},
		{"missing product", mv("d", "1", "", ledger.SourcePurchase, "1"), true},
		{"missing document", mv("", "1", "p", ledger.SourcePurchase, "1"), true},
		{"unknown kind", mv("d", "1", "p", ledger.SourceKind("gift"), "1"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ledger.Validate(tt.mv)
			if tt.wantErr {
				assert.ErrorIs(t, err, ledger.ErrInvalidMovement)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func TestRecordBatch_RejectsWholeBatchOnInvalidMovement(t *testing.T) {
	store := newFakeStore()
	store.status["s1"] = ledger.StatusPosted
	l := ledger.NewLedger(store)

	err := l.RecordBatch(context.Background(), []ledger.Movement{
		mv("s1", "1", "a", ledger.SourceSale, "-1"),
		mv("s1", "2", "a", ledger.SourceSale, "1"),
	})

	var mErr *ledger.MovementError
	require.ErrorAs(t, err, &mErr)
	assert.Empty(t, store.movements)
}

func TestRecordBatch_DuplicateKeyInBatch(t *testing.T) {
	store := newFakeStore()
	store.status["p1"] = ledger.StatusPosted
	l := ledger.NewLedger(store)

	err := l.RecordBatch(context.Background(), []ledger.Movement{
		mv("p1", "1", "a", ledger.SourcePurchase, "1"),
		mv("p1", "1", "b", ledger.SourcePurchase, "2"),
	})

	assert.ErrorIs(t, err, ledger.ErrDuplicateMovement)
}

func TestRecord_DuplicateKeyAcrossCalls(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.status["p1"] = ledger.StatusPosted
	l := ledger.NewLedger(store)

	require.NoError(t, l.Record(ctx, mv("p1", "1", "a", ledger.SourcePurchase, "1")))
	err := l.Record(ctx, mv("p1", "1", "a", ledger.SourcePurchase, "1"))

	assert.True(t, errors.Is(err, ledger.ErrDuplicateMovement))
	assert.Len(t, store.movements, 1)
}

func TestCurrentStock_ExcludesCancelledSource(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.status["p1"] = ledger.StatusPosted
	store.status["s1"] = ledger.StatusPosted
	l := ledger.NewLedger(store)

	require.NoError(t, l.Record(ctx, mv("p1", "1", "a", ledger.SourcePurchase, "10")))
	require.NoError(t, l.Record(ctx, mv("s1", "1", "a", ledger.SourceSale, "-4")))

	qty, err := l.CurrentStock(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "6", qty.String())

	// WHEN: The sale is cancelled
	store.status["s1"] = ledger.StatusCancelled

	// THEN: Its movement stays in history but no longer counts
	qty, err = l.CurrentStock(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "10", qty.String())

	history, err := l.History(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCurrentStock_NegativeAllowed(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.status["s1"] = ledger.StatusPosted
	l := ledger.NewLedger(store)

	require.NoError(t, l.Record(ctx, mv("s1", "1", "a", ledger.SourceSale, "-2")))

	qty, err := l.CurrentStock(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "-2", qty.String())
}

func TestCurrentStock_ReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.status["p1"] = ledger.StatusPosted
	cache := &fakeCache{values: make(map[ledger.ProductID]decimal.Decimal)}
	l := ledger.NewLedger(store).WithCache(cache)

	require.NoError(t, l.Record(ctx, mv("p1", "1", "a", ledger.SourcePurchase, "3")))

	// First read computes from the store and fills the cache
	qty, err := l.CurrentStock(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "3", qty.String())
	assert.Equal(t, 1, store.loads)
	assert.Equal(t, "3", cache.values["a"].String())

	// Second read is served from the cache
	_, err = l.CurrentStock(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)

	// After invalidation the store is consulted again
	require.NoError(t, cache.Invalidate(ctx, "a"))
	_, err = l.CurrentStock(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, store.loads)
}

func TestCurrentStockByProduct(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.status["p1"] = ledger.StatusPosted
	l := ledger.NewLedger(store)

	require.NoError(t, l.RecordBatch(ctx, []ledger.Movement{
		mv("p1", "1", "a", ledger.SourcePurchase, "1.5"),
		mv("p1", "2", "b", ledger.SourcePurchase, "2"),
	}))

	all, err := l.CurrentStockByProduct(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.5", all["a"].String())
	assert.Equal(t, "2", all["b"].String())
}

func TestRecord_UnknownSource(t *testing.T) {
	l := ledger.NewLedger(newFakeStore())
	err := l.Record(context.Background(), mv("ghost", "1", "a", ledger.SourcePurchase, "1"))
	assert.ErrorIs(t, err, ledger.ErrSourceNotFound)
}
