/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the ledger with realistic
	data for demos. Each scenario goes through the services exactly like a
	client would, so every rule (validation, atomic posting, revocation)
	applies.

AVAILABLE SCENARIOS:

	raw-to-chips:   Buy raw material, process it, sell part of the output
	revoked-sale:   A sale recorded by mistake and then revoked
	draft-purchase: A purchase saved as draft, then posted
	wage-week:      One payroll record for each processing stage

HOW SCENARIOS WORK:
 1. Ensure the demo catalog exists (products are created once, reused after;
    a demo product an operator deactivated stays inactive and the load fails)
 2. Record documents and wage records via the services
 3. Return the IDs of what was created

Loading a scenario never deletes anything. The ledger is append-only, so
loading twice records the documents twice.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "raw-to-chips"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, actor)
 3. Register it in scenarioLoaders

SEE ALSO:
  - server.go: /api/scenarios routes
  - factory/rates.go: Default wage rates used by wage-week
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/agro-ledger/inventory"
	"github.com/warp/agro-ledger/ledger"
	"github.com/warp/agro-ledger/wages"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type LoadScenarioResponse struct {
	Scenario  string   `json:"scenario"`
	Documents []string `json:"documents"`
	Wages     []string `json:"wages"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "raw-to-chips",
		Name:        "Raw to Chips",
		Description: "Purchase 300 kg raw, produce 90 kg chips, sell 40 kg",
		Category:    "inventory",
	},
	{
		ID:          "revoked-sale",
		Name:        "Revoked Sale",
		Description: "A sale entered twice; the duplicate is revoked and stock restored",
		Category:    "inventory",
	},
	{
		ID:          "draft-purchase",
		Name:        "Draft Purchase",
		Description: "A purchase kept as draft (no stock effect), then posted",
		Category:    "inventory",
	},
	{
		ID:          "wage-week",
		Name:        "Wage Week",
		Description: "Scraping, cutting, drying and packing payroll records",
		Category:    "wages",
	},
}

// Demo catalog. Fixed IDs so repeated loads reuse the same products.
var demoProducts = []inventory.ProductInput{
	{ID: "demo-raw", Name: "Raw Root (demo)", Unit: "kg", Type: inventory.ProductRawMaterial},
	{ID: "demo-chips", Name: "Dried Chips (demo)", Unit: "kg", Type: inventory.ProductFinishedGood},
}

type scenarioResult struct {
	documents []ledger.DocumentID
	wages     []wages.RecordID
}

type scenarioLoader func(h *Handler, ctx context.Context, actor string) (scenarioResult, error)

var scenarioLoaders = map[string]scenarioLoader{
	"raw-to-chips":   (*Handler).loadRawToChipsScenario,
	"revoked-sale":   (*Handler).loadRevokedSaleScenario,
	"draft-purchase": (*Handler).loadDraftPurchaseScenario,
	"wage-week":      (*Handler).loadWageWeekScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario records a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	who := actor(r)
	if err := h.ensureDemoProducts(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create demo products", err)
		return
	}

	res, err := load(h, ctx, who)
	if err != nil {
		writeError(w, statusFor(err), fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	resp := LoadScenarioResponse{
		Scenario:  req.ScenarioID,
		Documents: make([]string, len(res.documents)),
		Wages:     make([]string, len(res.wages)),
	}
	for i, id := range res.documents {
		resp.Documents[i] = string(id)
	}
	for i, id := range res.wages {
		resp.Wages[i] = string(id)
	}

	h.Log.Info().
		Str("scenario", req.ScenarioID).
		Str("actor", who).
		Int("documents", len(resp.Documents)).
		Int("wages", len(resp.Wages)).
		Msg("scenario loaded")
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ensureDemoProducts(ctx context.Context) error {
	for _, p := range demoProducts {
		_, err := h.Inventory.CreateProduct(ctx, p)
		if err != nil && !errors.Is(err, inventory.ErrDuplicateProduct) {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func (h *Handler) loadRawToChipsScenario(ctx context.Context, actor string) (scenarioResult, error) {
	var res scenarioResult
	day := today()

	purchase, err := h.Inventory.CreatePurchase(ctx, inventory.DocumentInput{
		Date:         day.AddDate(0, 0, -2),
		Counterparty: "Farmers' cooperative",
		Lines: []inventory.LineInput{
			{ProductID: "demo-raw", Quantity: "300", UnitPrice: "4000"},
		},
		Actor: actor,
	})
	if err != nil {
		return res, err
	}
	res.documents = append(res.documents, purchase)

	// 300 kg raw dries down to roughly 30% of its weight.
	production, err := h.Inventory.CreateProduction(ctx, inventory.ProductionInput{
		Date:           day.AddDate(0, 0, -1),
		ProductionType: "drying",
		Inputs:         []inventory.LineInput{{ProductID: "demo-raw", Quantity: "300", UnitPrice: "4000"}},
		Outputs:        []inventory.LineInput{{ProductID: "demo-chips", Quantity: "90", UnitPrice: "18000"}},
		Workers: []inventory.WorkerAssignment{
			{Name: "Sari", Role: "scraping"},
			{Name: "Budi", Role: "drying"},
		},
		Actor: actor,
	})
	if err != nil {
		return res, err
	}
	res.documents = append(res.documents, production)

	sale, err := h.Inventory.CreateSale(ctx, inventory.DocumentInput{
		Date:         day,
		Counterparty: "Pasar Baru wholesaler",
		Lines: []inventory.LineInput{
			{ProductID: "demo-chips", Quantity: "40", UnitPrice: "25000"},
		},
		Actor: actor,
	})
	if err != nil {
		return res, err
	}
	res.documents = append(res.documents, sale)
	return res, nil
}

func (h *Handler) loadRevokedSaleScenario(ctx context.Context, actor string) (scenarioResult, error) {
	var res scenarioResult
	day := today()

	purchase, err := h.Inventory.CreatePurchase(ctx, inventory.DocumentInput{
		Date:         day,
		Counterparty: "Farmers' cooperative",
		Lines:        []inventory.LineInput{{ProductID: "demo-raw", Quantity: "50", UnitPrice: "4000"}},
		Actor:        actor,
	})
	if err != nil {
		return res, err
	}
	res.documents = append(res.documents, purchase)

	sale := inventory.DocumentInput{
		Date:         day,
		Counterparty: "Local buyer",
		Lines:        []inventory.LineInput{{ProductID: "demo-raw", Quantity: "20", UnitPrice: "6000"}},
		Actor:        actor,
	}
	for range 2 {
		id, err := h.Inventory.CreateSale(ctx, sale)
		if err != nil {
			return res, err
		}
		res.documents = append(res.documents, id)
	}

	duplicate := res.documents[len(res.documents)-1]
	if err := h.Inventory.RevokeSale(ctx, duplicate, "entered twice", actor); err != nil {
		return res, err
	}
	return res, nil
}

func (h *Handler) loadDraftPurchaseScenario(ctx context.Context, actor string) (scenarioResult, error) {
	var res scenarioResult

	id, err := h.Inventory.CreatePurchase(ctx, inventory.DocumentInput{
		Date:         today(),
		Counterparty: "Upland supplier",
		Status:       ledger.StatusDraft,
		Notes:        "awaiting weigh-in",
		Lines:        []inventory.LineInput{{ProductID: "demo-raw", Quantity: "120.5", UnitPrice: "3800"}},
		Actor:        actor,
	})
	if err != nil {
		return res, err
	}
	res.documents = append(res.documents, id)

	if err := h.Inventory.PostDraft(ctx, id, actor); err != nil {
		return res, err
	}
	return res, nil
}

func (h *Handler) loadWageWeekScenario(ctx context.Context, actor string) (scenarioResult, error) {
	var res scenarioResult
	day := today()

	steps := []func() (wages.RecordID, error){
		func() (wages.RecordID, error) {
			return h.Wages.CreateScraping(ctx, wages.ScrapingInput{
				Date:     day,
				RateKa:   "1000",
				RateStik: "1200",
				Items: []wages.ScrapingItem{
					{Name: "Sari", Ka: "10", Stik: "5"},
					{Name: "Dewi", Ka: "12.5", Stik: "0"},
				},
				Actor: actor,
			})
		},
		func() (wages.RecordID, error) {
			return h.Wages.CreateCutting(ctx, wages.CuttingInput{
				Date:  day,
				Items: []wages.CuttingItem{{Name: "Agus", Whole: "20", Split: "8"}},
				Actor: actor,
			})
		},
		func() (wages.RecordID, error) {
			return h.Wages.CreateDrying(ctx, wages.DryingInput{
				Date:      day,
				DailyRate: "50000",
				Items:     []wages.DryingItem{{Name: "Budi", Days: "3"}},
				Actor:     actor,
			})
		},
		func() (wages.RecordID, error) {
			return h.Wages.CreatePacking(ctx, wages.PackingInput{
				Date:  day,
				Items: []wages.PackingItem{{Name: "Rina", Packs: "40"}},
				Actor: actor,
			})
		},
	}

	for _, step := range steps {
		id, err := step()
		if err != nil {
			return res, err
		}
		res.wages = append(res.wages, id)
	}
	return res, nil
}
