package wages_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agro-ledger/store/memory"
	"github.com/warp/agro-ledger/wages"
)

var day = time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC)

func fixedRates() wages.RateTable {
	return wages.RateTable{
		wages.StageCutting: {A: decimal.NewFromInt(500), B: decimal.NewFromInt(700)},
		wages.StagePacking: {A: decimal.NewFromInt(250)},
	}
}

// =============================================================================
// CALCULATORS
// =============================================================================

func TestCalculateScraping_ItemAndRecordTotals(t *testing.T) {
	// GIVEN: One worker scraped 10 kg ka and 5 kg stik at 1000 / 1200
	in := wages.ScrapingInput{
		Date:     day,
		RateKa:   "1000",
		RateStik: "1200",
		Items: []wages.ScrapingItem{
			{Name: "Ani", Ka: "10", Stik: "5"},
			{Name: "Budi", Ka: "2.5"},
		},
	}

	// WHEN: Calculating
	rec, err := wages.CalculateScraping(in)
	require.NoError(t, err)

	// THEN: 10×1000 + 5×1200 = 16000, plus 2.5×1000 for the second row
	require.Len(t, rec.Items, 2)
	assert.Equal(t, "16000", rec.Items[0].Total.String())
	assert.Equal(t, "2500", rec.Items[1].Total.String())
	assert.Equal(t, "18500", rec.Total.String())
	assert.Equal(t, wages.StageScraping, rec.Stage)
	assert.Equal(t, 2, rec.Items[1].LineNo)
}

func TestCalculate_DropsUnnamedAndEmptyRows(t *testing.T) {
	rec, err := wages.CalculateCutting(wages.CuttingInput{
		Date: day,
		Items: []wages.CuttingItem{
			{Name: "", Whole: "3"},
			{Name: "Citra", Whole: "", Split: ""},
			{Name: "Citra", Whole: "0", Split: "0"},
			{Name: " Dewi ", Whole: "2", Split: "1"},
		},
	}, fixedRates())
	require.NoError(t, err)

	require.Len(t, rec.Items, 1)
	assert.Equal(t, "Dewi", rec.Items[0].Name)
	assert.Equal(t, 1, rec.Items[0].LineNo)
	// 2×500 + 1×700
	assert.Equal(t, "1700", rec.Total.String())
}

func TestCalculateDrying(t *testing.T) {
	rec, err := wages.CalculateDrying(wages.DryingInput{
		Date:      day,
		DailyRate: "75000",
		Items:     []wages.DryingItem{{Name: "Eka", Days: "3"}, {Name: "Fajar", Days: "0.5"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "262500", rec.Total.String())
	assert.True(t, rec.Items[0].QtyB.IsZero())
}

func TestCalculatePacking(t *testing.T) {
	rec, err := wages.CalculatePacking(wages.PackingInput{
		Date:  day,
		Items: []wages.PackingItem{{Name: "Gita", Packs: "40"}},
	}, fixedRates())
	require.NoError(t, err)
	assert.Equal(t, "10000", rec.Total.String())
	assert.Equal(t, "250", rec.RateA.String())
}

func TestCalculate_Errors(t *testing.T) {
	_, err := wages.CalculateScraping(wages.ScrapingInput{Date: day, RateKa: "1000"})
	assert.ErrorIs(t, err, wages.ErrValidation, "rate_stik is required")

	_, err = wages.CalculateDrying(wages.DryingInput{DailyRate: "10"})
	var vErr *wages.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "date", vErr.Field)

	_, err = wages.CalculatePacking(wages.PackingInput{
		Date:  day,
		Items: []wages.PackingItem{{Name: "Gita", Packs: "-1"}},
	}, fixedRates())
	assert.ErrorIs(t, err, wages.ErrValidation)

	_, err = wages.CalculateCutting(wages.CuttingInput{Date: day}, wages.RateTable{})
	assert.ErrorIs(t, err, wages.ErrMissingRate)
}

func TestCalculate_RejectsOutOfRangeAmounts(t *testing.T) {
	_, err := wages.CalculateScraping(wages.ScrapingInput{
		Date:     day,
		RateKa:   "1e2000000",
		RateStik: "1200",
		Items:    []wages.ScrapingItem{{Name: "Sari", Ka: "1"}},
	})
	var vErr *wages.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "rate_ka", vErr.Field)

	_, err = wages.CalculatePacking(wages.PackingInput{
		Date:  day,
		Items: []wages.PackingItem{{Name: "Gita", Packs: "1e-40"}},
	}, fixedRates())
	assert.ErrorIs(t, err, wages.ErrValidation)
}

// =============================================================================
// SERVICE
// =============================================================================

func TestService_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	svc := wages.NewService(memory.New(), fixedRates())

	id, err := svc.CreateScraping(ctx, wages.ScrapingInput{
		Date:     day,
		RateKa:   "1000",
		RateStik: "1200",
		Items:    []wages.ScrapingItem{{Name: "Ani", Ka: "10", Stik: "5"}},
		Actor:    "foreman",
	})
	require.NoError(t, err)

	_, err = svc.CreatePacking(ctx, wages.PackingInput{
		Date:  day.AddDate(0, 0, 1),
		Items: []wages.PackingItem{{Name: "Gita", Packs: "4"}},
	})
	require.NoError(t, err)

	rec, err := svc.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "16000", rec.Total.String())
	assert.Equal(t, "foreman", rec.CreatedBy)
	require.Len(t, rec.Items, 1)

	scraping, err := svc.ListRecords(ctx, wages.RecordFilter{Stage: wages.StageScraping})
	require.NoError(t, err)
	assert.Len(t, scraping, 1)

	all, err := svc.ListRecords(ctx, wages.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.GetRecord(ctx, "missing")
	assert.ErrorIs(t, err, wages.ErrRecordNotFound)
}

func TestService_RejectedInputIsNotStored(t *testing.T) {
	ctx := context.Background()
	svc := wages.NewService(memory.New(), fixedRates())

	_, err := svc.CreateDrying(ctx, wages.DryingInput{Date: day, DailyRate: "abc"})
	assert.ErrorIs(t, err, wages.ErrValidation)

	recs, err := svc.ListRecords(ctx, wages.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}
