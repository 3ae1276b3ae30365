/*
handlers.go - HTTP API handlers for the inventory ledger

PURPOSE:
  Exposes products, documents, stock and wage records over REST. Handlers
  parse JSON, call the services and map domain errors to HTTP status.

ENDPOINTS:
  Products:
    GET    /api/products                    List products
    POST   /api/products                    Create product            (write)
    GET    /api/products/{id}               Get product
    POST   /api/products/{id}/active        Activate / deactivate     (write)

  Documents (same shape for /purchases, /sales, /productions):
    GET    /api/purchases                   List (?status=&from=&to=)
    POST   /api/purchases                   Create                    (write)
    GET    /api/purchases/{id}              Get with lines
    POST   /api/purchases/{id}/revoke       Revoke                    (write)
    POST   /api/documents/{id}/post         Post a draft              (write)

  Stock:
    GET    /api/stock                       Stock for every product
    GET    /api/stock/{productID}           Stock for one product
    GET    /api/stock/{productID}/movements Movement history
    GET    /api/stock/audit                 Last stock audit (scheduler.go)

  Wages:
    POST   /api/wages/{stage}               Create record             (write)
    GET    /api/wages/{stage}               List (?from=&to=)
    GET    /api/wages/records/{id}          Get record

  Demo data (scenarios.go):
    GET    /api/scenarios                   List scenarios
    POST   /api/scenarios/load              Load a scenario           (write)

ERROR HANDLING:
  - 400: Malformed JSON, validation errors
  - 401/403: Missing or insufficient token (auth.go)
  - 404: Unknown document, product or wage record
  - 409: Invalid state transition, duplicate
  - 422: Unknown/inactive product on a line, insufficient stock, missing rate
  - 500: Everything else; the unit of work has been rolled back

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/agro-ledger/inventory"
	"github.com/warp/agro-ledger/ledger"
	"github.com/warp/agro-ledger/wages"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Inventory *inventory.Service
	Wages     *wages.Service
	Metrics   *Metrics
	Log       zerolog.Logger

	// Ping checks backing services for /health. Optional.
	Ping func(ctx context.Context) error

	// Auditor serves /api/stock/audit when set.
	Auditor *StockAuditor
}

func NewHandler(inv *inventory.Service, wg *wages.Service) *Handler {
	return &Handler{
		Inventory: inv,
		Wages:     wg,
		Metrics:   NewMetrics(),
		Log:       zerolog.Nop(),
	}
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Inventory.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Inventory.GetProduct(r.Context(), ledger.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		if errors.Is(err, inventory.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "Product not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := h.Inventory.CreateProduct(r.Context(), inventory.ProductInput{
		ID:   req.ID,
		Name: req.Name,
		Unit: req.Unit,
		Type: inventory.ProductType(req.Type),
	})
	writeResult(w, http.StatusCreated, string(id), err)
}

func (h *Handler) SetProductActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.Inventory.SetProductActive(r.Context(), ledger.ProductID(id), req.Active)
	if errors.Is(err, inventory.ErrProductNotFound) {
		writeJSON(w, http.StatusNotFound, ResultDTO{Error: "Product not found"})
		return
	}
	writeResult(w, http.StatusOK, id, err)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	h.createDocument(w, r, inventory.KindPurchase, h.Inventory.CreatePurchase)
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	h.createDocument(w, r, inventory.KindSale, h.Inventory.CreateSale)
}

func (h *Handler) createDocument(
	w http.ResponseWriter,
	r *http.Request,
	kind inventory.Kind,
	create func(context.Context, inventory.DocumentInput) (ledger.DocumentID, error),
) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeResult(w, 0, "", err)
		return
	}

	status := defaultStatus(req.Status)
	id, err := create(r.Context(), inventory.DocumentInput{
		Date:         date,
		Counterparty: req.Counterparty,
		Status:       status,
		Notes:        req.Notes,
		Lines:        toLineInputs(req.Lines),
		Actor:        actor(r),
	})
	if err == nil {
		h.Metrics.documents.WithLabelValues(string(kind), string(status)).Inc()
	}
	writeResult(w, http.StatusCreated, string(id), err)
}

func (h *Handler) CreateProduction(w http.ResponseWriter, r *http.Request) {
	var req ProductionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeResult(w, 0, "", err)
		return
	}

	workers := make([]inventory.WorkerAssignment, len(req.Workers))
	for i, wk := range req.Workers {
		workers[i] = inventory.WorkerAssignment{Name: wk.Name, Role: wk.Role}
	}

	status := defaultStatus(req.Status)
	id, err := h.Inventory.CreateProduction(r.Context(), inventory.ProductionInput{
		Date:           date,
		ProductionType: req.ProductionType,
		Status:         status,
		Notes:          req.Notes,
		Inputs:         toLineInputs(req.Inputs),
		Outputs:        toLineInputs(req.Outputs),
		Workers:        workers,
		Actor:          actor(r),
	})
	if err == nil {
		h.Metrics.documents.WithLabelValues(string(inventory.KindProduction), string(status)).Inc()
	}
	writeResult(w, http.StatusCreated, string(id), err)
}

// ListDocuments returns documents of one kind.
// GET /api/{kind}s?status=posted&from=2025-01-01&to=2025-01-31
func (h *Handler) ListDocuments(kind inventory.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := inventory.DocumentFilter{Kind: kind, Status: ledger.Status(q.Get("status"))}
		if filter.Status != "" && !filter.Status.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid status filter", nil)
			return
		}
		var err error
		if filter.From, filter.To, err = parseRange(q.Get("from"), q.Get("to")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
			return
		}

		docs, err := h.Inventory.ListDocuments(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list documents", err)
			return
		}
		dtos := make([]DocumentDTO, len(docs))
		for i, d := range docs {
			dtos[i] = toDocumentDTO(d)
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

// GetDocument returns a document of the given kind with its lines.
func (h *Handler) GetDocument(kind inventory.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := h.Inventory.GetDocument(r.Context(), ledger.DocumentID(chi.URLParam(r, "id")))
		if err != nil {
			if inventory.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "Document not found", nil)
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to get document", err)
			return
		}
		if doc.Kind != kind {
			writeError(w, http.StatusNotFound, "Document not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, toDocumentDTO(*doc))
	}
}

// Revoke cancels a posted document of the given kind.
// POST /api/{kind}s/{id}/revoke
func (h *Handler) Revoke(kind inventory.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RevokeRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "id")
		err := h.Inventory.Revoke(r.Context(), kind, ledger.DocumentID(id), req.Reason, actor(r))
		if err == nil {
			h.Metrics.revocations.WithLabelValues(string(kind)).Inc()
		}
		writeResult(w, http.StatusOK, id, err)
	}
}

// PostDraft posts a draft document of any kind.
// POST /api/documents/{id}/post
func (h *Handler) PostDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Inventory.PostDraft(r.Context(), ledger.DocumentID(id), actor(r))
	writeResult(w, http.StatusOK, id, err)
}

// =============================================================================
// STOCK
// =============================================================================

func (h *Handler) ListStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.Inventory.CurrentStockByProduct(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stock", err)
		return
	}
	dtos := make([]StockDTO, 0, len(stock))
	for p, qty := range stock {
		dtos = append(dtos, StockDTO{ProductID: string(p), Quantity: qty.String()})
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].ProductID < dtos[j].ProductID })
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	product := ledger.ProductID(chi.URLParam(r, "productID"))
	if !h.productExists(w, r, product) {
		return
	}
	qty, err := h.Inventory.CurrentStock(r.Context(), product)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stock", err)
		return
	}
	writeJSON(w, http.StatusOK, StockDTO{ProductID: string(product), Quantity: qty.String()})
}

// GetMovements returns the product's movements oldest first, including
// those whose source document was cancelled.
func (h *Handler) GetMovements(w http.ResponseWriter, r *http.Request) {
	product := ledger.ProductID(chi.URLParam(r, "productID"))
	if !h.productExists(w, r, product) {
		return
	}
	entries, err := h.Inventory.History(r.Context(), product)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load movements", err)
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	dtos := make([]MovementDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toMovementDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) productExists(w http.ResponseWriter, r *http.Request, id ledger.ProductID) bool {
	_, err := h.Inventory.GetProduct(r.Context(), id)
	switch {
	case errors.Is(err, inventory.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return false
	}
	return true
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeResult answers a write endpoint. On error the status comes from
// statusFor and okStatus is ignored.
func writeResult(w http.ResponseWriter, okStatus int, id string, err error) {
	if err != nil {
		status := statusFor(err)
		resp := ResultDTO{Error: err.Error()}
		if status == http.StatusInternalServerError {
			resp = ResultDTO{Error: "Internal error", Details: err.Error()}
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, okStatus, ResultDTO{Success: true, ID: id})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, inventory.ErrValidation), errors.Is(err, wages.ErrValidation):
		return http.StatusBadRequest
	case inventory.IsNotFound(err), errors.Is(err, wages.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrInvalidState),
		errors.Is(err, inventory.ErrDuplicateProduct),
		errors.Is(err, ledger.ErrDuplicateMovement):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, inventory.ErrProductInactive),
		errors.Is(err, ledger.ErrInsufficientStock),
		errors.Is(err, ledger.ErrInvalidMovement),
		errors.Is(err, wages.ErrMissingRate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes the JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ResultDTO{Error: "Invalid request body", Details: err.Error()})
		return false
	}
	return true
}

func toLineInputs(rows []LineRequest) []inventory.LineInput {
	out := make([]inventory.LineInput, len(rows))
	for i, l := range rows {
		out[i] = inventory.LineInput{
			ProductID: l.ProductID,
			Quantity:  string(l.Quantity),
			UnitPrice: string(l.UnitPrice),
		}
	}
	return out
}

func defaultStatus(s string) ledger.Status {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ledger.StatusPosted
	}
	return ledger.Status(s)
}

// parseDate accepts YYYY-MM-DD or RFC3339. An empty date is left zero so
// the service reports it as a missing field.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &inventory.ValidationError{Field: "date", Message: "use YYYY-MM-DD"}
	}
	return t.UTC(), nil
}

func parseRange(from, to string) (*time.Time, *time.Time, error) {
	var f, t *time.Time
	if from != "" {
		d, err := time.Parse(dateLayout, from)
		if err != nil {
			return nil, nil, err
		}
		f = &d
	}
	if to != "" {
		d, err := time.Parse(dateLayout, to)
		if err != nil {
			return nil, nil, err
		}
		t = &d
	}
	return f, t, nil
}
