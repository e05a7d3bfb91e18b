package form

import (
	"context"
	"errors"
	"sync"
	"testing"

	"expenseform/internal/core"
)

// fakeStore counts collaborator calls and can be told to fail or block.
type fakeStore struct {
	mu          sync.Mutex
	createCalls int
	updateCalls int
	failWith    error
	block       chan struct{} // when set, CreateRecord waits until closed
	lastAllocs  []core.PersonAllocation
	lastFuture  int
	futureCount int // number of future records to report back
}

func (s *fakeStore) CreateRecord(_ context.Context, rec core.CandidateRecord, allocs []core.PersonAllocation, futureMonths int) (CreateResult, error) {
	s.mu.Lock()
	s.createCalls++
	s.lastAllocs = allocs
	s.lastFuture = futureMonths
	block := s.block
	fail := s.failWith
	n := s.futureCount
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	if fail != nil {
		return CreateResult{}, fail
	}
	rec.ID = "rec-1"
	future := make([]core.CandidateRecord, n)
	return CreateResult{Record: rec, FutureRecords: future}, nil
}

func (s *fakeStore) UpdateRecord(_ context.Context, id string, rec core.CandidateRecord, allocs []core.PersonAllocation) (core.CandidateRecord, error) {
	s.mu.Lock()
	s.updateCalls++
	fail := s.failWith
	s.mu.Unlock()
	if fail != nil {
		return core.CandidateRecord{}, fail
	}
	rec.ID = id
	return rec, nil
}

func (s *fakeStore) creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls
}

// fakeSource serves fixed catalogs; individual lookups can be failed.
type fakeSource struct {
	failCategories bool
	failPeople     bool
	suggestion     *CategorySuggestion
}

func (s *fakeSource) ListCategories(context.Context) ([]core.Category, error) {
	if s.failCategories {
		return nil, errors.New("catalog down")
	}
	return []core.Category{
		{Name: "Groceries"},
		{Name: "Housing"},
		{Name: "Tax - Medical", Medical: true, TaxRelevant: true},
		{Name: "Tax - Donation", TaxRelevant: true},
	}, nil
}

func (s *fakeSource) ListPaymentInstruments(context.Context, bool) ([]core.PaymentInstrument, error) {
	return []core.PaymentInstrument{
		{ID: "cash", Name: "Cash", Kind: core.KindCash, Active: true},
		{ID: "visa", Name: "VISA", Kind: core.KindRevolvingCredit, Active: true},
	}, nil
}

func (s *fakeSource) ListPeople(context.Context) ([]core.Person, error) {
	if s.failPeople {
		return nil, errors.New("catalog down")
	}
	return []core.Person{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Ben"}}, nil
}

func (s *fakeSource) SuggestCategory(context.Context, string) (*CategorySuggestion, error) {
	return s.suggestion, nil
}

// fakeExpansion is an in-memory session store.
type fakeExpansion struct {
	mu   sync.Mutex
	data map[Mode]map[SectionID]bool
}

func newFakeExpansion() *fakeExpansion {
	return &fakeExpansion{data: make(map[Mode]map[SectionID]bool)}
}

func (s *fakeExpansion) GetExpansionDefaults(mode Mode) map[SectionID]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[SectionID]bool, len(s.data[mode]))
	for k, v := range s.data[mode] {
		out[k] = v
	}
	return out
}

func (s *fakeExpansion) SetExpansionDefaults(mode Mode, defaults map[SectionID]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[SectionID]bool, len(defaults))
	for k, v := range defaults {
		cp[k] = v
	}
	s.data[mode] = cp
}

func mountedForm(t *testing.T) (*Form, *fakeStore, *fakeExpansion) {
	t.Helper()
	store := &fakeStore{}
	exp := newFakeExpansion()
	f := New(store, &fakeSource{}, exp)
	f.LoadCatalogs(context.Background())
	return f, store, exp
}

func fillValid(f *Form) {
	f.SetDate(core.NewDate(2025, 3, 14))
	f.SetAmount(core.Money{Cents: 3000})
	f.SetCategory("Groceries")
	f.SetInstrument("cash")
}
