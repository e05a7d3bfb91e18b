package form

import (
	"context"
	"testing"

	"expenseform/internal/core"
)

func TestApplicabilityFollowsCategory(t *testing.T) {
	f, _, _ := mountedForm(t)

	f.SetCategory("Groceries")
	s := f.Sections()
	if !s[SectionReimbursement].Applicable {
		t.Error("reimbursement must be applicable outside medical categories")
	}
	if s[SectionInsurance].Applicable || s[SectionPeopleAssignment].Applicable {
		t.Error("insurance and people assignment must be hidden outside medical")
	}
	if s[SectionInvoiceAttachments].Applicable {
		t.Error("invoice attachments must be hidden for non tax-relevant categories")
	}

	f.SetCategory("Tax - Medical")
	s = f.Sections()
	if s[SectionReimbursement].Applicable {
		t.Error("reimbursement must be hidden inside medical")
	}
	if !s[SectionInsurance].Applicable || !s[SectionPeopleAssignment].Applicable {
		t.Error("insurance and people assignment must be applicable inside medical")
	}
	if !s[SectionInvoiceAttachments].Applicable {
		t.Error("invoice attachments must be applicable for tax-relevant categories")
	}

	f.SetCategory("Tax - Donation")
	s = f.Sections()
	if !s[SectionInvoiceAttachments].Applicable {
		t.Error("donation is tax-relevant, invoices apply")
	}
	if s[SectionInsurance].Applicable {
		t.Error("donation is not medical")
	}
}

func TestAdvancedOptionsAlwaysApplicable(t *testing.T) {
	f, _, _ := mountedForm(t)
	for _, cat := range []string{"", "Groceries", "Tax - Medical"} {
		f.SetCategory(cat)
		if !f.Sections()[SectionAdvancedOptions].Applicable {
			t.Errorf("advanced options must stay applicable (category %q)", cat)
		}
	}
}

func TestPostedDateEnabledOnlyForRevolvingCredit(t *testing.T) {
	f, _, _ := mountedForm(t)
	f.SetInstrument("cash")
	if f.PostedDateEnabled() {
		t.Error("posted date must be disabled for cash")
	}
	f.SetInstrument("visa")
	if !f.PostedDateEnabled() {
		t.Error("posted date must be enabled for revolving credit")
	}
}

func TestToggleIsLossless(t *testing.T) {
	f, _, _ := mountedForm(t)
	fillValid(f)
	f.SetOriginalCost(core.Money{Cents: 8000})
	f.SetFutureMonths(3)

	before := f.Record()
	// Collapse and re-expand every applicable section a few times.
	for i := 0; i < 3; i++ {
		for _, id := range SectionOrder {
			f.Toggle(id)
		}
	}
	after := f.Record()
	if before.OriginalCost != after.OriginalCost || before.FutureMonths != after.FutureMonths {
		t.Fatalf("toggling altered field values: before=%+v after=%+v", before, after)
	}
}

func TestToggleHiddenSectionIsNoop(t *testing.T) {
	f, _, _ := mountedForm(t)
	f.SetCategory("Groceries")
	if f.Toggle(SectionInsurance) {
		t.Error("toggling a hidden section must not expand it")
	}
	if f.Sections()[SectionInsurance].Expanded {
		t.Error("hidden section must stay unexpanded")
	}
}

func TestLeavingMedicalClearsPeople(t *testing.T) {
	f, _, _ := mountedForm(t)
	fillValid(f)
	f.SetCategory("Tax - Medical")
	f.SetAmount(core.Money{Cents: 20000})
	f.SelectPeople([]string{"a", "b"})
	if len(f.Record().People) != 2 {
		t.Fatal("expected two allocations after selection")
	}

	f.SetCategory("Groceries")
	if got := f.Record().People; len(got) != 0 {
		t.Fatalf("people must be cleared on leaving medical, got %v", got)
	}

	// Coming back starts from an empty selection, not the prior one.
	f.SetCategory("Tax - Medical")
	if got := f.Record().People; len(got) != 0 {
		t.Fatalf("returning to medical must not restore people, got %v", got)
	}
}

func TestExpansionSeedingFromStore(t *testing.T) {
	store := &fakeStore{}
	exp := newFakeExpansion()
	exp.SetExpansionDefaults(ModeCreate, map[SectionID]bool{SectionAdvancedOptions: true})

	f := New(store, &fakeSource{}, exp)
	f.LoadCatalogs(context.Background())
	if !f.Sections()[SectionAdvancedOptions].Expanded {
		t.Error("stored default must seed the section expanded")
	}
	if f.Sections()[SectionReimbursement].Expanded {
		t.Error("sections without a stored default start collapsed in create mode")
	}
}

func TestExpansionSeedingFromEditData(t *testing.T) {
	existing := core.CandidateRecord{
		ID:                  "rec-9",
		Date:                core.NewDate(2025, 2, 1),
		Amount:              core.Money{Cents: 3000},
		Category:            "Groceries",
		PaymentInstrumentID: "cash",
		OriginalCost:        core.Money{Cents: 8000},
	}
	f := NewEdit(&fakeStore{}, &fakeSource{}, newFakeExpansion(), existing)
	f.LoadCatalogs(context.Background())

	s := f.Sections()
	if !s[SectionReimbursement].Expanded {
		t.Error("edit mode: section holding non-default data starts expanded")
	}
	if s[SectionAdvancedOptions].Expanded {
		t.Error("edit mode: empty section starts collapsed")
	}
}

func TestTeardownWritesExpansionBack(t *testing.T) {
	f, _, exp := mountedForm(t)
	f.Toggle(SectionAdvancedOptions)
	f.Teardown()

	got := exp.GetExpansionDefaults(ModeCreate)
	if !got[SectionAdvancedOptions] {
		t.Error("teardown must persist the expanded flag")
	}
	if got[SectionReimbursement] {
		t.Error("collapsed sections persist as collapsed")
	}
}

func TestCatalogFailureDisablesDependentSection(t *testing.T) {
	f := New(&fakeStore{}, &fakeSource{failPeople: true}, newFakeExpansion())
	f.LoadCatalogs(context.Background())

	if f.CatalogStatus(CatalogPeople) != CatalogFailed {
		t.Fatal("people catalog should be failed")
	}
	if f.CatalogStatus(CatalogCategories) != CatalogReady {
		t.Fatal("other catalogs resolve independently")
	}

	f.SetCategory("Tax - Medical")
	if f.SectionAvailable(SectionPeopleAssignment) {
		t.Error("people assignment must be disabled when its catalog is unavailable")
	}
	if !f.SectionAvailable(SectionInsurance) {
		t.Error("unrelated sections stay available")
	}
}

func TestTeardownDiscardsLateCatalogResults(t *testing.T) {
	f := New(&fakeStore{}, &fakeSource{}, newFakeExpansion())
	f.Teardown()
	// Lookups resolving after teardown must not mutate state.
	f.LoadCatalogs(context.Background())
	if f.CatalogStatus(CatalogCategories) != CatalogLoading {
		t.Error("late catalog result must be discarded after teardown")
	}
}

func TestEditRoundTrip(t *testing.T) {
	// Submitting and re-opening the same data reproduces an equivalent record.
	existing := core.CandidateRecord{
		ID:                  "rec-7",
		Date:                core.NewDate(2025, 4, 2),
		Place:               "Pharmacy",
		Amount:              core.Money{Cents: 20000},
		Category:            "Tax - Medical",
		PaymentInstrumentID: "visa",
		InsuranceEligible:   true,
		ClaimStatus:         core.ClaimInProgress,
		OriginalCost:        core.Money{Cents: 45000},
		People: []core.PersonAllocation{
			{PersonID: "a", Amount: core.Money{Cents: 10000}},
			{PersonID: "b", Amount: core.Money{Cents: 10000}},
		},
	}
	f := NewEdit(&fakeStore{}, &fakeSource{}, newFakeExpansion(), existing)
	f.LoadCatalogs(context.Background())

	got := f.Record()
	if got.ID != existing.ID || got.Amount != existing.Amount ||
		got.Category != existing.Category || got.ClaimStatus != existing.ClaimStatus ||
		len(got.People) != len(existing.People) {
		t.Fatalf("edit form record differs: %+v vs %+v", got, existing)
	}

	res, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusUpdated {
		t.Fatalf("status = %s, want %s (errors: %v)", res.Status, StatusUpdated, res.Errors)
	}
	if res.Record.Amount != existing.Amount || res.Record.Category != existing.Category {
		t.Fatal("round trip must preserve the record")
	}
}
