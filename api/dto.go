/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes for the HTTP API, kept apart from the domain types so
  field names and formats can stay stable while the domain evolves.

CONVENTIONS:
  - *Request: request bodies
  - *DTO:     response bodies
  - Quantities, prices and totals are decimal strings in responses.
    Requests accept either strings or JSON numbers (Amount).
  - Dates are "2006-01-02"; timestamps are RFC3339.

WRITE RESULTS:
  Create, revoke and post endpoints answer with ResultDTO:
    {"success": true,  "id": "..."}
    {"success": false, "error": "...", "details": "..."}

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/warp/agro-ledger/inventory"
	"github.com/warp/agro-ledger/ledger"
	"github.com/warp/agro-ledger/wages"
)

const dateLayout = "2006-01-02"

// Amount is a decimal carried as text. It unmarshals from "12.5" or 12.5;
// the number's literal text is kept so no float rounding happens.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount must be a number or a string: %w", err)
		}
		*a = Amount(n.String())
	}
	return nil
}

// =============================================================================
// RESULTS & ERRORS
// =============================================================================

// ResultDTO is the response of every write endpoint.
type ResultDTO struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// ErrorResponse is the standard error response for reads.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// PRODUCTS
// =============================================================================

type CreateProductRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
	Type string `json:"type"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

type ProductDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Type      string `json:"type"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toProductDTO(p inventory.Product) ProductDTO {
	return ProductDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Unit:      p.Unit,
		Type:      string(p.Type),
		Active:    p.Active,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type LineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  Amount `json:"quantity"`
	UnitPrice Amount `json:"unit_price"`
}

// DocumentRequest is the body of POST /api/purchases and /api/sales.
type DocumentRequest struct {
	Date         string        `json:"date"`
	Counterparty string        `json:"counterparty"`
	Status       string        `json:"status"`
	Notes        string        `json:"notes"`
	Lines        []LineRequest `json:"lines"`
}

type WorkerDTO struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// ProductionRequest is the body of POST /api/productions.
type ProductionRequest struct {
	Date           string        `json:"date"`
	ProductionType string        `json:"production_type"`
	Status         string        `json:"status"`
	Notes          string        `json:"notes"`
	Inputs         []LineRequest `json:"inputs"`
	Outputs        []LineRequest `json:"outputs"`
	Workers        []WorkerDTO   `json:"workers"`
}

type RevokeRequest struct {
	Reason string `json:"reason"`
}

type LineDTO struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	LineNo    int    `json:"line_no"`
	ProductID string `json:"product_id"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

type RevocationDTO struct {
	Reason string `json:"reason,omitempty"`
	Actor  string `json:"actor,omitempty"`
	At     string `json:"at"`
}

type DocumentDTO struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	Date           string         `json:"date"`
	Counterparty   string         `json:"counterparty,omitempty"`
	ProductionType string         `json:"production_type,omitempty"`
	Status         string         `json:"status"`
	Notes          string         `json:"notes,omitempty"`
	Lines          []LineDTO      `json:"lines"`
	Workers        []WorkerDTO    `json:"workers,omitempty"`
	Total          string         `json:"total"`
	OutputTotal    string         `json:"output_total,omitempty"`
	Revocation     *RevocationDTO `json:"revocation,omitempty"`
	CreatedBy      string         `json:"created_by,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

func toDocumentDTO(d inventory.Document) DocumentDTO {
	dto := DocumentDTO{
		ID:             string(d.ID),
		Kind:           string(d.Kind),
		Date:           d.Date.Format(dateLayout),
		Counterparty:   d.Counterparty,
		ProductionType: d.ProductionType,
		Status:         string(d.Status),
		Notes:          d.Notes,
		Lines:          make([]LineDTO, len(d.Lines)),
		Total:          d.Total.String(),
		CreatedBy:      d.CreatedBy,
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
	}
	if d.Kind == inventory.KindProduction {
		dto.OutputTotal = d.OutputTotal.String()
	}
	for i, l := range d.Lines {
		dto.Lines[i] = LineDTO{
			ID:        l.ID,
			Role:      string(l.Role),
			LineNo:    l.LineNo,
			ProductID: string(l.ProductID),
			Quantity:  l.Quantity.String(),
			UnitPrice: l.UnitPrice.String(),
			Total:     l.Total.String(),
		}
	}
	for _, w := range d.Workers {
		dto.Workers = append(dto.Workers, WorkerDTO{Name: w.Name, Role: w.Role})
	}
	if d.Revocation != nil {
		dto.Revocation = &RevocationDTO{
			Reason: d.Revocation.Reason,
			Actor:  d.Revocation.Actor,
			At:     d.Revocation.At.Format(time.RFC3339),
		}
	}
	return dto
}

// =============================================================================
// STOCK
// =============================================================================

type StockDTO struct {
	ProductID string `json:"product_id"`
	Quantity  string `json:"quantity"`
}

// MovementDTO is one audit row. Counted is false when the source
// document has been cancelled.
type MovementDTO struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	Delta        string `json:"delta"`
	DocumentID   string `json:"document_id"`
	SourceKind   string `json:"source_kind"`
	LineID       string `json:"line_id,omitempty"`
	SourceStatus string `json:"source_status"`
	Counted      bool   `json:"counted"`
	CreatedAt    string `json:"created_at"`
}

func toMovementDTO(e ledger.Entry) MovementDTO {
	return MovementDTO{
		ID:           string(e.ID),
		ProductID:    string(e.ProductID),
		Delta:        e.Delta.String(),
		DocumentID:   string(e.DocumentID),
		SourceKind:   string(e.Kind),
		LineID:       e.LineID,
		SourceStatus: string(e.SourceStatus),
		Counted:      e.SourceStatus.Counts(),
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// WAGES
// =============================================================================

// WageItemRequest carries the quantities of every stage; each stage
// reads only its own fields.
type WageItemRequest struct {
	Name  string `json:"name"`
	Ka    Amount `json:"ka"`
	Stik  Amount `json:"stik"`
	Whole Amount `json:"whole"`
	Split Amount `json:"split"`
	Days  Amount `json:"days"`
	Packs Amount `json:"packs"`
}

// WageRequest is the body of POST /api/wages/{stage}. RateKa and RateStik
// apply to scraping, DailyRate to drying; cutting and packing use the
// configured rate table.
type WageRequest struct {
	Date      string            `json:"date"`
	Notes     string            `json:"notes"`
	RateKa    Amount            `json:"rate_ka"`
	RateStik  Amount            `json:"rate_stik"`
	DailyRate Amount            `json:"daily_rate"`
	Items     []WageItemRequest `json:"items"`
}

type WageItemDTO struct {
	LineNo int    `json:"line_no"`
	Name   string `json:"name"`
	QtyA   string `json:"qty_a"`
	QtyB   string `json:"qty_b,omitempty"`
	RateA  string `json:"rate_a"`
	RateB  string `json:"rate_b,omitempty"`
	Total  string `json:"total"`
}

type WageRecordDTO struct {
	ID        string        `json:"id"`
	Stage     string        `json:"stage"`
	Date      string        `json:"date"`
	Notes     string        `json:"notes,omitempty"`
	RateA     string        `json:"rate_a"`
	RateB     string        `json:"rate_b,omitempty"`
	Items     []WageItemDTO `json:"items"`
	Total     string        `json:"total"`
	CreatedBy string        `json:"created_by,omitempty"`
	CreatedAt string        `json:"created_at"`
}

func toWageRecordDTO(r wages.Record) WageRecordDTO {
	twoQty := r.Stage == wages.StageScraping || r.Stage == wages.StageCutting
	dto := WageRecordDTO{
		ID:        string(r.ID),
		Stage:     string(r.Stage),
		Date:      r.Date.Format(dateLayout),
		Notes:     r.Notes,
		RateA:     r.RateA.String(),
		Items:     make([]WageItemDTO, len(r.Items)),
		Total:     r.Total.String(),
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
	if twoQty {
		dto.RateB = r.RateB.String()
	}
	for i, it := range r.Items {
		dto.Items[i] = WageItemDTO{
			LineNo: it.LineNo,
			Name:   it.Name,
			QtyA:   it.QtyA.String(),
			RateA:  it.RateA.String(),
			Total:  it.Total.String(),
		}
		if twoQty {
			dto.Items[i].QtyB = it.QtyB.String()
			dto.Items[i].RateB = it.RateB.String()
		}
	}
	return dto
}
