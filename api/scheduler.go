/*
scheduler.go - Periodic stock audit

PURPOSE:
  Periodically re-derives stock for every product from the full movement
  history, refreshes the stock cache with the result and logs products
  whose stock has gone negative (sold or consumed beyond what was bought
  or produced).

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on Start
  - Keeps the most recent report for GET /api/stock/audit
  - Never writes to the ledger

CONFIGURATION:
  - Interval: How often to run (default: 15 minutes)
  - Enabled:  Whether the audit runs at all (default: true)

USAGE:
  auditor := api.NewStockAuditor(inv, log)
  auditor.Start()
  defer auditor.Stop()

SEE ALSO:
  - inventory/service.go: StockReport
  - server.go: GET /api/stock/audit
*/
package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/agro-ledger/inventory"
)

// StockAuditor runs inventory.Service.StockReport on a timer.
type StockAuditor struct {
	Inventory *inventory.Service
	Log       zerolog.Logger
	Interval  time.Duration
	Enabled   bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   *inventory.StockReport
}

func NewStockAuditor(inv *inventory.Service, log zerolog.Logger) *StockAuditor {
	return &StockAuditor{
		Inventory: inv,
		Log:       log,
		Interval:  15 * time.Minute,
		Enabled:   true,
	}
}

// Start begins the audit loop.
func (a *StockAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled || a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.Interval)
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.run()

	a.Log.Info().Dur("interval", a.Interval).Msg("stock audit started")
}

// Stop stops the loop and waits for a running audit to finish.
func (a *StockAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	close(a.stop)
	a.wg.Wait()
	a.ticker = nil
	a.Log.Info().Msg("stock audit stopped")
}

func (a *StockAuditor) run() {
	defer a.wg.Done()

	a.RunOnce(context.Background())
	for {
		select {
		case <-a.ticker.C:
			a.RunOnce(context.Background())
		case <-a.stop:
			return
		}
	}
}

// RunOnce performs a single audit and stores its report.
func (a *StockAuditor) RunOnce(ctx context.Context) (*inventory.StockReport, error) {
	report, err := a.Inventory.StockReport(ctx)
	if err != nil {
		a.Log.Error().Err(err).Msg("stock audit failed")
		return nil, err
	}

	for _, p := range report.Negative {
		a.Log.Warn().
			Str("product_id", string(p)).
			Str("quantity", report.Stock[p].String()).
			Msg("negative stock")
	}
	a.Log.Info().
		Int("products", len(report.Stock)).
		Int("negative", len(report.Negative)).
		Msg("stock audit completed")

	a.lastMu.Lock()
	a.last = &report
	a.lastMu.Unlock()
	return &report, nil
}

// Last returns the most recent report, or nil before the first run.
func (a *StockAuditor) Last() *inventory.StockReport {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	return a.last
}

// StockAuditDTO is the response of GET /api/stock/audit.
type StockAuditDTO struct {
	At       string     `json:"at"`
	Stock    []StockDTO `json:"stock"`
	Negative []string   `json:"negative"`
}

// GetStockAudit returns the auditor's last report, running one first if
// none exists yet.
// GET /api/stock/audit
func (a *StockAuditor) GetStockAudit(w http.ResponseWriter, r *http.Request) {
	report := a.Last()
	if report == nil {
		var err error
		if report, err = a.RunOnce(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "Stock audit failed", err)
			return
		}
	}

	dto := StockAuditDTO{
		At:       report.At.Format(time.RFC3339),
		Stock:    make([]StockDTO, 0, len(report.Stock)),
		Negative: make([]string, len(report.Negative)),
	}
	for p, qty := range report.Stock {
		dto.Stock = append(dto.Stock, StockDTO{ProductID: string(p), Quantity: qty.String()})
	}
	sort.Slice(dto.Stock, func(i, j int) bool { return dto.Stock[i].ProductID < dto.Stock[j].ProductID })
	for i, p := range report.Negative {
		dto.Negative[i] = string(p)
	}
	writeJSON(w, http.StatusOK, dto)
}
