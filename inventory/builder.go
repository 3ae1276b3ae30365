package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/agro-ledger/ledger"
)

// =============================================================================
// INPUTS - What callers submit. Amounts are decimal strings.
// =============================================================================

type LineInput struct {
	ProductID string
	Quantity  string
	UnitPrice string
}

// DocumentInput is the submission for a purchase or a sale.
type DocumentInput struct {
	Date         time.Time
	Counterparty string
	Status       ledger.Status // empty means posted
	Notes        string
	Lines        []LineInput
	Actor        string
}

type ProductionInput struct {
	Date           time.Time
	ProductionType string
	Status         ledger.Status
	Notes          string
	Inputs         []LineInput
	Outputs        []LineInput
	Workers        []WorkerAssignment
	Actor          string
}

// =============================================================================
// LINE BUILDING
// =============================================================================

// buildLines turns raw rows into priced lines. Rows missing a product, a
// quantity or a price are incomplete and dropped, as are rows whose
// quantity or price is zero. Rows that are present but malformed fail the
// whole submission.
func buildLines(field string, role LineRole, rows []LineInput, newID func() string) ([]Line, error) {
	lines := make([]Line, 0, len(rows))
	for i, row := range rows {
		product := strings.TrimSpace(row.ProductID)
		qtyText := strings.TrimSpace(row.Quantity)
		priceText := strings.TrimSpace(row.UnitPrice)
		if product == "" || qtyText == "" || priceText == "" {
			continue
		}

		qty, err := parseAmount(fmt.Sprintf("%s[%d].quantity", field, i), qtyText)
		if err != nil {
			return nil, err
		}
		price, err := parseAmount(fmt.Sprintf("%s[%d].unit_price", field, i), priceText)
		if err != nil {
			return nil, err
		}
		if qty.IsZero() || price.IsZero() {
			continue
		}

		lines = append(lines, Line{
			ID:        newID(),
			Role:      role,
			LineNo:    len(lines) + 1,
			ProductID: ledger.ProductID(product),
			Quantity:  qty,
			UnitPrice: price,
			Total:     qty.Mul(price),
		})
	}
	return lines, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid(field, "not a decimal number: %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, invalid(field, "must not be negative")
	}
	if !ledger.AmountInRange(d) {
		return decimal.Zero, invalid(field, "out of range: %q", s)
	}
	return d, nil
}

func sumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total)
	}
	return total
}

// initialStatus resolves the status a new document is created in.
func initialStatus(s ledger.Status) (ledger.Status, error) {
	switch s {
	case "":
		return ledger.StatusPosted, nil
	case ledger.StatusDraft, ledger.StatusPosted:
		return s, nil
	case ledger.StatusCancelled:
		return "", invalid("status", "a document cannot be created cancelled")
	default:
		return "", invalid("status", "unknown status %q", s)
	}
}

// buildDocument validates a purchase or sale submission and returns the
// document to persist. Nothing is written.
func buildDocument(kind Kind, in DocumentInput, newID func() string, now time.Time) (Document, error) {
	if in.Date.IsZero() {
		return Document{}, invalid("date", "required")
	}
	status, err := initialStatus(in.Status)
	if err != nil {
		return Document{}, err
	}
	lines, err := buildLines("lines", RoleItem, in.Lines, newID)
	if err != nil {
		return Document{}, err
	}
	return Document{
		ID:           ledger.DocumentID(newID()),
		Kind:         kind,
		Date:         in.Date,
		Counterparty: strings.TrimSpace(in.Counterparty),
		Status:       status,
		Notes:        in.Notes,
		Lines:        lines,
		Total:        sumLines(lines),
		CreatedBy:    in.Actor,
		CreatedAt:    now,
	}, nil
}

func buildProduction(in ProductionInput, newID func() string, now time.Time) (Document, error) {
	if in.Date.IsZero() {
		return Document{}, invalid("date", "required")
	}
	status, err := initialStatus(in.Status)
	if err != nil {
		return Document{}, err
	}
	inputs, err := buildLines("inputs", RoleInput, in.Inputs, newID)
	if err != nil {
		return Document{}, err
	}
	outputs, err := buildLines("outputs", RoleOutput, in.Outputs, newID)
	if err != nil {
		return Document{}, err
	}

	var workers []WorkerAssignment
	for _, w := range in.Workers {
		name := strings.TrimSpace(w.Name)
		if name == "" {
			continue
		}
		workers = append(workers, WorkerAssignment{Name: name, Role: strings.TrimSpace(w.Role)})
	}

	return Document{
		ID:             ledger.DocumentID(newID()),
		Kind:           KindProduction,
		Date:           in.Date,
		ProductionType: strings.TrimSpace(in.ProductionType),
		Status:         status,
		Notes:          in.Notes,
		Lines:          append(inputs, outputs...),
		Workers:        workers,
		Total:          sumLines(inputs),
		OutputTotal:    sumLines(outputs),
		CreatedBy:      in.Actor,
		CreatedAt:      now,
	}, nil
}
