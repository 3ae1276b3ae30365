// Package memory provides an in-memory store for tests and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/agro-ledger/inventory"
	"github.com/warp/agro-ledger/ledger"
	"github.com/warp/agro-ledger/wages"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements inventory.TxStore and wages.Store.
type Memory struct {
	mu sync.RWMutex
	st state
}

type state struct {
	products  map[ledger.ProductID]inventory.Product
	documents map[ledger.DocumentID]*inventory.Document
	movements []ledger.Movement
	keys      map[string]bool
	records   map[wages.RecordID]wages.Record
}

func New() *Memory {
	return &Memory{st: state{
		products:  make(map[ledger.ProductID]inventory.Product),
		documents: make(map[ledger.DocumentID]*inventory.Document),
		keys:      make(map[string]bool),
		records:   make(map[wages.RecordID]wages.Record),
	}}
}

var (
	_ inventory.TxStore = (*Memory)(nil)
	_ wages.Store       = (*Memory)(nil)
)

func (m *Memory) AppendMovements(_ context.Context, mvs []ledger.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appendMovements(mvs)
}

func (m *Memory) LoadMovements(_ context.Context, f ledger.MovementFilter) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.loadMovements(f), nil
}

func (m *Memory) SaveProduct(_ context.Context, p inventory.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.saveProduct(p)
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id ledger.ProductID) (*inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getProduct(id), nil
}

func (m *Memory) ListProducts(_ context.Context) ([]inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listProducts(), nil
}

func (m *Memory) InsertDocument(_ context.Context, d inventory.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.insertDocument(d)
}

func (m *Memory) GetDocument(_ context.Context, id ledger.DocumentID) (*inventory.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getDocument(id), nil
}

func (m *Memory) ListDocuments(_ context.Context, f inventory.DocumentFilter) ([]inventory.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listDocuments(f), nil
}

func (m *Memory) TransitionStatus(_ context.Context, id ledger.DocumentID, from, to ledger.Status, rev *inventory.Revocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.transition(id, from, to, rev)
}

func (m *Memory) SaveWageRecord(_ context.Context, rec wages.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.st.records[rec.ID]; exists {
		return fmt.Errorf("wage record %s already exists", rec.ID)
	}
	rec.Items = append([]wages.Item(nil), rec.Items...)
	m.st.records[rec.ID] = rec
	return nil
}

func (m *Memory) GetWageRecord(_ context.Context, id wages.RecordID) (*wages.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.st.records[id]
	if !ok {
		return nil, nil
	}
	rec.Items = append([]wages.Item(nil), rec.Items...)
	return &rec, nil
}

func (m *Memory) ListWageRecords(_ context.Context, f wages.RecordFilter) ([]wages.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []wages.Record
	for _, rec := range m.st.records {
		if f.Stage != "" && rec.Stage != f.Stage {
			continue
		}
		if f.From != nil && rec.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && rec.Date.After(*f.To) {
			continue
		}
		rec.Items = append([]wages.Item(nil), rec.Items...)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// WithTx executes fn with the store locked. On error the state is
// restored from a snapshot taken before fn ran.
func (m *Memory) WithTx(_ context.Context, fn func(inventory.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.snapshot()
	if err := fn(&txView{m: m}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

type txView struct {
	m *Memory
}

func (v *txView) AppendMovements(_ context.Context, mvs []ledger.Movement) error {
	return v.m.st.appendMovements(mvs)
}

func (v *txView) LoadMovements(_ context.Context, f ledger.MovementFilter) ([]ledger.Entry, error) {
	return v.m.st.loadMovements(f), nil
}

func (v *txView) SaveProduct(_ context.Context, p inventory.Product) error {
	v.m.st.saveProduct(p)
	return nil
}

func (v *txView) GetProduct(_ context.Context, id ledger.ProductID) (*inventory.Product, error) {
	return v.m.st.getProduct(id), nil
}

func (v *txView) ListProducts(_ context.Context) ([]inventory.Product, error) {
	return v.m.st.listProducts(), nil
}

func (v *txView) InsertDocument(_ context.Context, d inventory.Document) error {
	return v.m.st.insertDocument(d)
}

func (v *txView) GetDocument(_ context.Context, id ledger.DocumentID) (*inventory.Document, error) {
	return v.m.st.getDocument(id), nil
}

func (v *txView) ListDocuments(_ context.Context, f inventory.DocumentFilter) ([]inventory.Document, error) {
	return v.m.st.listDocuments(f), nil
}

func (v *txView) TransitionStatus(_ context.Context, id ledger.DocumentID, from, to ledger.Status, rev *inventory.Revocation) error {
	return v.m.st.transition(id, from, to, rev)
}

// =============================================================================
// STATE - unlocked operations shared by Memory and txView
// =============================================================================

func (s *state) snapshot() state {
	cp := state{
		products:  make(map[ledger.ProductID]inventory.Product, len(s.products)),
		documents: make(map[ledger.DocumentID]*inventory.Document, len(s.documents)),
		movements: append([]ledger.Movement(nil), s.movements...),
		keys:      make(map[string]bool, len(s.keys)),
		records:   make(map[wages.RecordID]wages.Record, len(s.records)),
	}
	for k, v := range s.products {
		cp.products[k] = v
	}
	// Documents are replaced, never mutated in place, so sharing pointers
	// with the snapshot is safe.
	for k, v := range s.documents {
		cp.documents[k] = v
	}
	for k, v := range s.keys {
		cp.keys[k] = v
	}
	for k, v := range s.records {
		cp.records[k] = v
	}
	return cp
}

func (s *state) appendMovements(mvs []ledger.Movement) error {
	batch := make(map[string]bool, len(mvs))
	for _, mv := range mvs {
		if _, ok := s.documents[mv.DocumentID]; !ok {
			return fmt.Errorf("%w: %s", ledger.ErrSourceNotFound, mv.DocumentID)
		}
		if s.keys[mv.Key()] || batch[mv.Key()] {
			return ledger.ErrDuplicateMovement
		}
		batch[mv.Key()] = true
	}
	for _, mv := range mvs {
		mv.IdempotencyKey = mv.Key()
		s.movements = append(s.movements, mv)
		s.keys[mv.Key()] = true
	}
	return nil
}

func (s *state) loadMovements(f ledger.MovementFilter) []ledger.Entry {
	var products map[ledger.ProductID]bool
	if len(f.ProductIDs) > 0 {
		products = make(map[ledger.ProductID]bool, len(f.ProductIDs))
		for _, p := range f.ProductIDs {
			products[p] = true
		}
	}

	var out []ledger.Entry
	for _, mv := range s.movements {
		if products != nil && !products[mv.ProductID] {
			continue
		}
		if f.DocumentID != "" && mv.DocumentID != f.DocumentID {
			continue
		}
		out = append(out, ledger.Entry{Movement: mv, SourceStatus: s.documents[mv.DocumentID].Status})
	}
	return out
}

func (s *state) saveProduct(p inventory.Product) {
	if existing, ok := s.products[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	s.products[p.ID] = p
}

func (s *state) getProduct(id ledger.ProductID) *inventory.Product {
	p, ok := s.products[id]
	if !ok {
		return nil
	}
	return &p
}

func (s *state) listProducts() []inventory.Product {
	out := make([]inventory.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *state) insertDocument(d inventory.Document) error {
	if _, exists := s.documents[d.ID]; exists {
		return fmt.Errorf("document %s already exists", d.ID)
	}
	s.documents[d.ID] = cloneDocument(&d)
	return nil
}

func (s *state) getDocument(id ledger.DocumentID) *inventory.Document {
	d, ok := s.documents[id]
	if !ok {
		return nil
	}
	return cloneDocument(d)
}

func (s *state) listDocuments(f inventory.DocumentFilter) []inventory.Document {
	var out []inventory.Document
	for _, d := range s.documents {
		if f.Kind != "" && d.Kind != f.Kind {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.From != nil && d.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && d.Date.After(*f.To) {
			continue
		}
		out = append(out, *cloneDocument(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *state) transition(id ledger.DocumentID, from, to ledger.Status, rev *inventory.Revocation) error {
	d, ok := s.documents[id]
	if !ok {
		return inventory.ErrDocumentNotFound
	}
	if d.Status != from {
		return &inventory.InvalidStateError{DocumentID: id, Current: d.Status, Wanted: to}
	}
	next := cloneDocument(d)
	next.Status = to
	if rev != nil {
		r := *rev
		next.Revocation = &r
	}
	s.documents[id] = next
	return nil
}

func cloneDocument(d *inventory.Document) *inventory.Document {
	cp := *d
	cp.Lines = append([]inventory.Line(nil), d.Lines...)
	cp.Workers = append([]inventory.WorkerAssignment(nil), d.Workers...)
	if d.Revocation != nil {
		r := *d.Revocation
		cp.Revocation = &r
	}
	return &cp
}
