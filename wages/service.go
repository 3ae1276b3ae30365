package wages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store persists wage records. Records are append-only: there is no
// update and no delete.
type Store interface {
	// SaveWageRecord writes header and items atomically.
	SaveWageRecord(ctx context.Context, rec Record) error
	// GetWageRecord returns nil, nil when the record does not exist.
	GetWageRecord(ctx context.Context, id RecordID) (*Record, error)
	ListWageRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
}

type Service struct {
	Store Store
	Rates RateTable
	Log   zerolog.Logger
	NewID func() string
	Now   func() time.Time
}

func NewService(store Store, rates RateTable) *Service {
	return &Service{
		Store: store,
		Rates: rates,
		Log:   zerolog.Nop(),
		NewID: uuid.NewString,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateScraping(ctx context.Context, in ScrapingInput) (RecordID, error) {
	rec, err := CalculateScraping(in)
	if err != nil {
		return "", err
	}
	return s.save(ctx, rec, in.Actor)
}

func (s *Service) CreateCutting(ctx context.Context, in CuttingInput) (RecordID, error) {
	rec, err := CalculateCutting(in, s.Rates)
	if err != nil {
		return "", err
	}
	return s.save(ctx, rec, in.Actor)
}

func (s *Service) CreateDrying(ctx context.Context, in DryingInput) (RecordID, error) {
	rec, err := CalculateDrying(in)
	if err != nil {
		return "", err
	}
	return s.save(ctx, rec, in.Actor)
}

func (s *Service) CreatePacking(ctx context.Context, in PackingInput) (RecordID, error) {
	rec, err := CalculatePacking(in, s.Rates)
	if err != nil {
		return "", err
	}
	return s.save(ctx, rec, in.Actor)
}

func (s *Service) save(ctx context.Context, rec Record, actor string) (RecordID, error) {
	rec.ID = RecordID(s.NewID())
	rec.CreatedBy = actor
	rec.CreatedAt = s.Now()

	if err := s.Store.SaveWageRecord(ctx, rec); err != nil {
		s.Log.Error().Err(err).Str("stage", string(rec.Stage)).Msg("wage record not saved")
		return "", err
	}
	s.Log.Info().
		Str("record_id", string(rec.ID)).
		Str("stage", string(rec.Stage)).
		Int("items", len(rec.Items)).
		Str("total", rec.Total.String()).
		Msg("wage record created")
	return rec.ID, nil
}

func (s *Service) GetRecord(ctx context.Context, id RecordID) (*Record, error) {
	rec, err := s.Store.GetWageRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

func (s *Service) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	return s.Store.ListWageRecords(ctx, filter)
}
