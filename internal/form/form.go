// Package form implements the expense-entry rule engine: the section
// visibility and expansion state machine, catalog loading states, and the
// submission orchestrator. The merged CandidateRecord owned by the Form is
// the single source of truth for field values; expansion is a pure display
// concern and never removes or resets data.
package form

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"expenseform/internal/core"
	"expenseform/internal/rules"
	"expenseform/internal/split"
)

// CatalogState tracks one asynchronously resolving catalog lookup. Each
// catalog resolves independently; there is no global ready gate.
type CatalogState int

const (
	CatalogLoading CatalogState = iota
	CatalogReady
	CatalogFailed
)

// CatalogID names one of the external lookups the form depends on.
type CatalogID string

const (
	CatalogCategories  CatalogID = "categories"
	CatalogInstruments CatalogID = "paymentInstruments"
	CatalogPeople      CatalogID = "people"
)

// Form owns one mounted entry form: the candidate record, the per-section
// states, and the catalog slots. All rule evaluation is synchronous; only
// LoadCatalogs and Submit touch the outside world.
type Form struct {
	mu sync.Mutex

	mode   Mode
	record core.CandidateRecord

	sections map[SectionID]*SectionState

	store     RecordStore
	source    CatalogSource
	expansion ExpansionStore
	defaults  map[SectionID]bool // expansion store snapshot, read once at mount

	categories  []core.Category
	instruments []core.PaymentInstrument
	people      []core.Person
	catStates   map[CatalogID]CatalogState

	splitConfirmed   bool
	lastInstrumentID string
	submitting       bool
	tornDown         bool
}

// New mounts a create-mode form with an empty candidate record.
func New(store RecordStore, source CatalogSource, expansion ExpansionStore) *Form {
	return newForm(ModeCreate, core.CandidateRecord{}, store, source, expansion)
}

// NewEdit mounts an edit-mode form seeded with an existing record. Sections
// already holding non-default data start expanded unless the expansion store
// says otherwise.
func NewEdit(store RecordStore, source CatalogSource, expansion ExpansionStore, existing core.CandidateRecord) *Form {
	return newForm(ModeEdit, existing.Clone(), store, source, expansion)
}

func newForm(mode Mode, rec core.CandidateRecord, store RecordStore, source CatalogSource, expansion ExpansionStore) *Form {
	f := &Form{
		mode:      mode,
		record:    rec,
		store:     store,
		source:    source,
		expansion: expansion,
		sections:  make(map[SectionID]*SectionState, len(SectionOrder)),
		catStates: map[CatalogID]CatalogState{
			CatalogCategories:  CatalogLoading,
			CatalogInstruments: CatalogLoading,
			CatalogPeople:      CatalogLoading,
		},
		lastInstrumentID: rec.PaymentInstrumentID,
		splitConfirmed:   len(rec.People) > 0,
	}
	if expansion != nil {
		f.defaults = expansion.GetExpansionDefaults(mode)
	}
	for _, id := range SectionOrder {
		f.sections[id] = &SectionState{Expanded: f.seedExpanded(id)}
	}
	f.recomputeApplicability()
	return f
}

// seedExpanded decides a section's initial Expanded flag: the stored default
// when present, else non-default data in edit mode, else collapsed.
func (f *Form) seedExpanded(id SectionID) bool {
	if v, ok := f.defaults[id]; ok {
		return v
	}
	if f.mode == ModeEdit && sectionHasData(f.record, id) {
		return true
	}
	return false
}

// LoadCatalogs issues every catalog lookup concurrently. Each slot moves
// Loading -> Ready or Failed on its own; results arriving after Teardown are
// discarded. Lookup errors never propagate: a failed catalog only disables
// its dependent section.
func (f *Form) LoadCatalogs(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cats, err := f.source.ListCategories(ctx)
		f.deliver(ctx, CatalogCategories, err, func() { f.categories = cats })
		return nil
	})
	g.Go(func() error {
		insts, err := f.source.ListPaymentInstruments(ctx, true)
		f.deliver(ctx, CatalogInstruments, err, func() { f.instruments = insts })
		return nil
	})
	g.Go(func() error {
		people, err := f.source.ListPeople(ctx)
		f.deliver(ctx, CatalogPeople, err, func() { f.people = people })
		return nil
	})
	_ = g.Wait()
}

func (f *Form) deliver(ctx context.Context, id CatalogID, err error, apply func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tornDown {
		// Form unmounted before the lookup resolved; drop the result.
		return
	}
	if err != nil {
		slog.WarnContext(ctx, "Catalog lookup failed, section disabled",
			"catalog", string(id), "error", err)
		f.catStates[id] = CatalogFailed
		return
	}
	f.catStates[id] = CatalogReady
	apply()
	f.recomputeApplicability()
}

// CatalogStatus returns the loading state of one catalog.
func (f *Form) CatalogStatus(id CatalogID) CatalogState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catStates[id]
}

// Record returns a snapshot of the merged candidate record: the union of all
// sections' current values regardless of expansion state.
func (f *Form) Record() core.CandidateRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record.Clone()
}

// Sections returns a snapshot of every section's state.
func (f *Form) Sections() map[SectionID]SectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[SectionID]SectionState, len(f.sections))
	for id, s := range f.sections {
		out[id] = *s
	}
	return out
}

// Toggle flips a section between collapsed and expanded. Toggling a hidden
// section is a no-op. Field values are untouched either way.
func (f *Form) Toggle(id SectionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sections[id]
	if !ok || !s.Applicable {
		return false
	}
	s.Expanded = !s.Expanded
	return s.Expanded
}

// SectionAvailable reports whether a section is applicable and its backing
// catalog resolved. A failed people lookup disables the people-assignment
// section rather than blocking the rest of the form.
func (f *Form) SectionAvailable(id SectionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sections[id]
	if !ok || !s.Applicable {
		return false
	}
	if id == SectionPeopleAssignment && f.catStates[CatalogPeople] == CatalogFailed {
		return false
	}
	return true
}

// PostedDateEnabled reports whether the posted-date sub-field of the
// advanced-options section is enabled: only for revolving-credit instruments.
func (f *Form) PostedDateEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instrumentLocked(f.record.PaymentInstrumentID)
	return ok && inst.IsRevolvingCredit()
}

func (f *Form) SetDate(d core.Date) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record.Date = d
}

func (f *Form) SetPlace(place string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record.Place = place
}

func (f *Form) SetAmount(m core.Money) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record.Amount = m
}

// SetCategory changes the category and recomputes section applicability.
// Leaving a medical category clears all people data; coming back starts from
// an empty selection, never the prior one.
func (f *Form) SetCategory(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wasMedical := f.categoryLocked(f.record.Category).Medical
	f.record.Category = name
	isMedical := f.categoryLocked(name).Medical
	if wasMedical && !isMedical {
		f.record.People = nil
		f.splitConfirmed = false
	}
	f.recomputeApplicability()
}

func (f *Form) SetInstrument(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record.PaymentInstrumentID = id
	if id != "" {
		f.lastInstrumentID = id
	}
	f.recomputeApplicability()
}

func (f *Form) SetPostedDate(d core.Date) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record.PostedDate = d
}

func (f *Form) SetFutureMonths(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record.FutureMonths = n
}

func (f *Form) SetOriginalCost(m core.Money) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record.OriginalCost = m
}

func (f *Form) SetInsuranceEligible(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record.InsuranceEligible = v
}

func (f *Form) SetClaimStatus(s core.ClaimStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record.ClaimStatus = s
}

// SelectPeople replaces the person selection. With two or more people the
// equal split is seeded as an editable default and custom amounts must be
// confirmed before submission.
func (f *Form) SelectPeople(personIDs []string) split.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := split.Split(f.record.Amount, personIDs)
	f.record.People = res.Allocations
	f.splitConfirmed = res.Mode == split.ModeSingle
	return res
}

// ConfirmAllocations accepts user-entered per-person amounts after checking
// the sum invariant. On mismatch it returns an AllocationError and leaves
// the previous allocations in place.
func (f *Form) ConfirmAllocations(allocs []core.PersonAllocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !split.ValidateSplit(allocs, f.record.Amount) {
		return &AllocationError{Sum: core.AllocationSum(allocs), Total: f.record.Amount}
	}
	f.record.People = make([]core.PersonAllocation, len(allocs))
	copy(f.record.People, allocs)
	f.splitConfirmed = true
	return nil
}

func (f *Form) AddInvoice(ref core.AttachmentRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record.Invoices = append(f.record.Invoices, ref)
}

func (f *Form) RemoveInvoice(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.record.Invoices[:0]
	for _, inv := range f.record.Invoices {
		if inv.ID != id {
			kept = append(kept, inv)
		}
	}
	f.record.Invoices = kept
}

// Validate runs the full rule set against the merged record for live
// feedback. It does not mutate section states; Submit does that on failure.
func (f *Form) Validate() rules.Errors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return rules.ValidateRecord(f.record, f.catalogsLocked())
}

// SuggestCategory asks the catalog collaborator for a category guess based
// on the current place text. A failed lookup yields no suggestion.
func (f *Form) SuggestCategory(ctx context.Context) *CategorySuggestion {
	f.mu.Lock()
	place := f.record.Place
	f.mu.Unlock()
	if place == "" {
		return nil
	}
	sugg, err := f.source.SuggestCategory(ctx, place)
	if err != nil {
		slog.DebugContext(ctx, "Category suggestion failed", "error", err)
		return nil
	}
	return sugg
}

// Teardown unmounts the form: the current expansion flags are written back
// to the session store and any catalog result still in flight will be
// discarded on arrival.
func (f *Form) Teardown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tornDown {
		return
	}
	f.tornDown = true
	f.writeExpansionLocked()
}

func (f *Form) writeExpansionLocked() {
	if f.expansion == nil {
		return
	}
	snapshot := make(map[SectionID]bool, len(f.sections))
	for id, s := range f.sections {
		snapshot[id] = s.Expanded
	}
	f.expansion.SetExpansionDefaults(f.mode, snapshot)
}

// recomputeApplicability re-derives every section's Applicable flag from the
// current category and instrument. A section turning applicable again starts
// from its seeded expansion, not whatever the user toggled last time.
func (f *Form) recomputeApplicability() {
	app := applicability(f.categoryLocked(f.record.Category))
	for id, s := range f.sections {
		now := app[id]
		if now && !s.Applicable {
			s.Expanded = f.seedExpanded(id)
		}
		if !now {
			s.HasError = false
		}
		s.Applicable = now
	}
}

// markErrorsLocked force-opens every section owning an errored field and
// returns the first errored field in document order for focus.
func (f *Form) markErrorsLocked(errs rules.Errors) rules.Field {
	medical := f.categoryLocked(f.record.Category).Medical
	for _, s := range f.sections {
		s.HasError = false
	}
	for field := range errs {
		id, ok := sectionForField(field, medical)
		if !ok {
			continue
		}
		s := f.sections[id]
		s.HasError = true
		s.Expanded = true
	}
	return errs.First()
}

func (f *Form) catalogsLocked() rules.Catalogs {
	return rules.Catalogs{Categories: f.categories, Instruments: f.instruments}
}

func (f *Form) categoryLocked(name string) core.Category {
	for _, c := range f.categories {
		if c.Name == name {
			return c
		}
	}
	return core.Category{}
}

func (f *Form) instrumentLocked(id string) (core.PaymentInstrument, bool) {
	for _, inst := range f.instruments {
		if inst.ID == id {
			return inst, true
		}
	}
	return core.PaymentInstrument{}, false
}
