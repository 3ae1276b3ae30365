package inventory

import (
	"context"
	"strings"

	"github.com/warp/agro-ledger/ledger"
)

type ProductInput struct {
	ID   string // optional, generated when empty
	Name string
	Unit string
	Type ProductType
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (ledger.ProductID, error) {
	name := strings.TrimSpace(in.Name)
	unit := strings.TrimSpace(in.Unit)
	switch {
	case name == "":
		return "", invalid("name", "required")
	case unit == "":
		return "", invalid("unit", "required")
	case !in.Type.Valid():
		return "", invalid("type", "must be %q or %q", ProductRawMaterial, ProductFinishedGood)
	}

	id := ledger.ProductID(strings.TrimSpace(in.ID))
	if id == "" {
		id = ledger.ProductID(s.NewID())
	}

	existing, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", &ProductError{ProductID: id, Err: ErrDuplicateProduct}
	}

	p := Product{ID: id, Name: name, Unit: unit, Type: in.Type, Active: true, CreatedAt: s.Now()}
	if err := s.Store.SaveProduct(ctx, p); err != nil {
		return "", err
	}
	s.Log.Info().Str("product_id", string(id)).Str("name", name).Msg("product created")
	return id, nil
}

func (s *Service) GetProduct(ctx context.Context, id ledger.ProductID) (*Product, error) {
	p, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &ProductError{ProductID: id, Err: ErrProductNotFound}
	}
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.Store.ListProducts(ctx)
}

// SetProductActive toggles whether new documents may reference the product.
// Existing movements are unaffected.
func (s *Service) SetProductActive(ctx context.Context, id ledger.ProductID, active bool) error {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	p.Active = active
	return s.Store.SaveProduct(ctx, *p)
}
