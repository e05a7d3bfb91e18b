// Package memory is the in-process backend: record store, catalog source
// and expansion store without external dependencies. It is the default
// backend and the test double for everything sqlite does.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"expenseform/internal/catalog"
	"expenseform/internal/core"
	"expenseform/internal/form"
	"expenseform/internal/series"
)

type Store struct {
	mu          sync.Mutex
	categories  []core.Category
	instruments []core.PaymentInstrument
	people      []core.Person
	records     map[string]core.CandidateRecord
	order       []string // insertion order, for place history
	expansion   map[form.Mode]map[form.SectionID]bool
}

func New(cats []core.Category, instruments []core.PaymentInstrument, people []core.Person) *Store {
	return &Store{
		categories:  cats,
		instruments: instruments,
		people:      people,
		records:     make(map[string]core.CandidateRecord),
		expansion:   make(map[form.Mode]map[form.SectionID]bool),
	}
}

// NewSeeded returns a store preloaded with the standard catalog data.
func NewSeeded() *Store {
	return New(
		[]core.Category{
			{Name: "Housing"},
			{Name: "Utilities"},
			{Name: "Groceries"},
			{Name: "Dining Out"},
			{Name: "Insurance"},
			{Name: "Gas"},
			{Name: "Vehicle Maintenance"},
			{Name: "Entertainment"},
			{Name: "Subscriptions"},
			{Name: "Recreation Activities"},
			{Name: "Pet Care"},
			{Name: "Tax - Medical", Medical: true, TaxRelevant: true},
			{Name: "Tax - Donation", TaxRelevant: true},
			{Name: "Other"},
		},
		[]core.PaymentInstrument{
			{ID: "cash", Name: "Cash", Kind: core.KindCash, Active: true},
			{ID: "debit", Name: "Debit", Kind: core.KindDebit, Active: true},
			{ID: "cheque", Name: "Cheque", Kind: core.KindCheque, Active: true},
			{ID: "cibc-mc", Name: "CIBC MC", Kind: core.KindRevolvingCredit, Active: true},
			{ID: "pcf-mc", Name: "PCF MC", Kind: core.KindRevolvingCredit, Active: true},
			{ID: "ws-visa", Name: "WS VISA", Kind: core.KindRevolvingCredit, Active: true},
			{ID: "visa", Name: "VISA", Kind: core.KindRevolvingCredit, Active: true},
		},
		nil,
	)
}

// CreateRecord implements form.RecordStore.
func (s *Store) CreateRecord(_ context.Context, rec core.CandidateRecord, allocs []core.PersonAllocation, futureMonths int) (form.CreateResult, error) {
	rec.People = allocs
	if err := rec.Validate(); err != nil {
		return form.CreateResult{}, fmt.Errorf("validate record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = uuid.NewString()
	future := series.Generate(rec, futureMonths)
	for i := range future {
		future[i].ID = uuid.NewString()
	}

	s.put(rec)
	for _, fr := range future {
		s.put(fr)
	}
	return form.CreateResult{Record: rec, FutureRecords: future}, nil
}

// UpdateRecord implements form.RecordStore.
func (s *Store) UpdateRecord(_ context.Context, id string, rec core.CandidateRecord, allocs []core.PersonAllocation) (core.CandidateRecord, error) {
	rec.ID = id
	rec.People = allocs
	if err := rec.Validate(); err != nil {
		return core.CandidateRecord{}, fmt.Errorf("validate record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return core.CandidateRecord{}, fmt.Errorf("update record %s: %w", id, core.ErrRecordNotFound)
	}
	s.records[id] = rec.Clone()
	return rec, nil
}

// DeleteRecord removes a stored record by id.
func (s *Store) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("delete record %s: %w", id, core.ErrRecordNotFound)
	}
	delete(s.records, id)
	for i, rid := range s.order {
		if rid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetRecord returns a stored record by id.
func (s *Store) GetRecord(_ context.Context, id string) (core.CandidateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return core.CandidateRecord{}, fmt.Errorf("get record %s: %w", id, core.ErrRecordNotFound)
	}
	return rec.Clone(), nil
}

func (s *Store) put(rec core.CandidateRecord) {
	s.records[rec.ID] = rec.Clone()
	s.order = append(s.order, rec.ID)
}

// Categories implements catalog.Source.
func (s *Store) Categories(context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.categories...), nil
}

// PaymentInstruments implements catalog.Source.
func (s *Store) PaymentInstruments(context.Context) ([]core.PaymentInstrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.PaymentInstrument(nil), s.instruments...), nil
}

// People implements catalog.Source.
func (s *Store) People(context.Context) ([]core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Person(nil), s.people...), nil
}

// AddPerson registers a catalog person.
func (s *Store) AddPerson(p core.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people = append(s.people, p)
}

// PlaceHistory implements catalog.Source: most recently entered distinct
// places with the category they were filed under.
func (s *Store) PlaceHistory(_ context.Context, limit int) ([]catalog.PlaceVisit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var out []catalog.PlaceVisit
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.records[s.order[i]]
		if rec.Place == "" {
			continue
		}
		if _, ok := seen[rec.Place]; ok {
			continue
		}
		seen[rec.Place] = struct{}{}
		out = append(out, catalog.PlaceVisit{Place: rec.Place, Category: rec.Category})
	}
	return out, nil
}

// GetExpansionDefaults implements form.ExpansionStore.
func (s *Store) GetExpansionDefaults(mode form.Mode) map[form.SectionID]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[form.SectionID]bool, len(s.expansion[mode]))
	for k, v := range s.expansion[mode] {
		out[k] = v
	}
	return out
}

// SetExpansionDefaults implements form.ExpansionStore, last writer wins.
func (s *Store) SetExpansionDefaults(mode form.Mode, defaults map[form.SectionID]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[form.SectionID]bool, len(defaults))
	for k, v := range defaults {
		cp[k] = v
	}
	s.expansion[mode] = cp
}
