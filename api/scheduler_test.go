package api_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agro-ledger/api"
	"github.com/warp/agro-ledger/inventory"
	"github.com/warp/agro-ledger/store/memory"
)

func oversell(t *testing.T, inv *inventory.Service) {
	t.Helper()
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := inv.CreatePurchase(ctx, inventory.DocumentInput{
		Date:  date,
		Lines: []inventory.LineInput{{ProductID: "raw", Quantity: "10", UnitPrice: "1000"}},
	})
	require.NoError(t, err)
	_, err = inv.CreateSale(ctx, inventory.DocumentInput{
		Date:  date,
		Lines: []inventory.LineInput{{ProductID: "raw", Quantity: "15", UnitPrice: "1500"}},
	})
	require.NoError(t, err)
}

func TestStockAudit_FlagsNegativeStock(t *testing.T) {
	// GIVEN: a sale beyond what was bought (negative stock is allowed)
	ts := newTestServer(t)
	oversell(t, ts.inv)

	// WHEN: the audit endpoint is read before any scheduled run
	resp := ts.do(t, http.MethodGet, "/api/stock/audit", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	audit := decode[api.StockAuditDTO](t, resp)

	// THEN: it runs an audit on demand and reports the product
	assert.Equal(t, []string{"raw"}, audit.Negative)
	assert.Contains(t, audit.Stock, api.StockDTO{ProductID: "raw", Quantity: "-5"})
	assert.NotEmpty(t, audit.At)
}

func TestStockAuditor_StartRunsImmediately(t *testing.T) {
	store := memory.New()
	inv := inventory.NewService(store)
	_, err := inv.CreateProduct(context.Background(), inventory.ProductInput{
		ID: "raw", Name: "Raw", Unit: "kg", Type: inventory.ProductRawMaterial,
	})
	require.NoError(t, err)
	oversell(t, inv)

	auditor := api.NewStockAuditor(inv, zerolog.Nop())
	auditor.Interval = time.Hour
	auditor.Start()
	t.Cleanup(auditor.Stop)

	require.Eventually(t, func() bool { return auditor.Last() != nil }, 2*time.Second, 10*time.Millisecond)
	report := auditor.Last()
	assert.Equal(t, "-5", report.Stock["raw"].String())
	assert.Len(t, report.Negative, 1)
}

func TestStockAuditor_DisabledDoesNotRun(t *testing.T) {
	auditor := api.NewStockAuditor(inventory.NewService(memory.New()), zerolog.Nop())
	auditor.Enabled = false

	auditor.Start()
	auditor.Stop()

	assert.Nil(t, auditor.Last())
}

func TestStockAuditor_StopIsIdempotent(t *testing.T) {
	auditor := api.NewStockAuditor(inventory.NewService(memory.New()), zerolog.Nop())
	auditor.Interval = time.Hour

	auditor.Start()
	auditor.Stop()
	auditor.Stop()
}
