package memory_test

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
)

var errBoom = errors.New("boom")

func purchase(id ledger.DocumentID) inventory.Document {
	return inventory.Document{
		ID:        id,
		Kind:      inventory.KindPurchase,
		Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:    ledger.StatusPosted,
		CreatedAt: time.Now(),
	}
}

func movement(doc ledger.DocumentID, line string, qty string) ledger.Movement {
	return ledger.Movement{
		ID:         ledger.MovementID(doc + "-" + ledger.DocumentID(line)),
		ProductID:  "raw",
		Delta:      decimal.RequireFromString(qty),
		DocumentID: doc,
		Kind:       ledger.SourcePurchase,
		LineID:     line,
	}
}

func TestWithTx_RollsBackEverything(t *testing.T) {
	// GIVEN: an empty store
	m := memory.New()
	ctx := context.Background()

	// WHEN: a unit of work inserts a document and movements, then fails
	err := m.WithTx(ctx, func(tx inventory.Store) error {
		require.NoError(t, tx.InsertDocument(ctx, purchase("d1")))
		require.NoError(t, tx.AppendMovements(ctx, []ledger.Movement{movement("d1", "l1", "5")}))
		return errBoom
	})

	// THEN: the error comes back and nothing was kept
	assert.ErrorIs(t, err, errBoom)
	doc, err := m.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, doc)
	entries, err := m.LoadMovements(ctx, ledger.MovementFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	// AND: the same keys can be written afterwards
	require.NoError(t, m.InsertDocument(ctx, purchase("d1")))
	require.NoError(t, m.AppendMovements(ctx, []ledger.Movement{movement("d1", "l1", "5")}))
}

func TestAppendMovements_RejectsDuplicateAndUnknownSource(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	require.NoError(t, m.InsertDocument(ctx, purchase("d1")))

	err := m.AppendMovements(ctx, []ledger.Movement{movement("d1", "l1", "1"), movement("d1", "l1", "1")})
	assert.ErrorIs(t, err, ledger.ErrDuplicateMovement)

	err = m.AppendMovements(ctx, []ledger.Movement{movement("ghost", "l1", "1")})
	assert.ErrorIs(t, err, ledger.ErrSourceNotFound)

	entries, err := m.LoadMovements(ctx, ledger.MovementFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries, "a rejected batch writes nothing")
}

func TestTransitionStatus_CompareAndSet(t *testing.T) {
	m := memory.New()
	ctx := context.Background()
	require.NoError(t, m.InsertDocument(ctx, purchase("d1")))
	require.NoError(t, m.AppendMovements(ctx, []ledger.Movement{movement("d1", "l1", "5")}))

	rev := &inventory.Revocation{Reason: "typo", Actor: "clerk", At: time.Now()}
	require.NoError(t, m.TransitionStatus(ctx, "d1", ledger.StatusPosted, ledger.StatusCancelled, rev))

	err := m.TransitionStatus(ctx, "d1", ledger.StatusPosted, ledger.StatusCancelled, rev)
	assert.ErrorIs(t, err, inventory.ErrInvalidState)

	err = m.TransitionStatus(ctx, "ghost", ledger.StatusPosted, ledger.StatusCancelled, rev)
	assert.ErrorIs(t, err, inventory.ErrDocumentNotFound)

	// Movements stay; they now carry the cancelled status.
	entries, err := m.LoadMovements(ctx, ledger.MovementFilter{DocumentID: "d1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.StatusCancelled, entries[0].SourceStatus)

	doc, err := m.GetDocument(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, doc.Revocation)
	assert.Equal(t, "clerk", doc.Revocation.Actor)
}
