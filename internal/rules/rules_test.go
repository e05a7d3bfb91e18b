package rules

import (
	"testing"

	"expenseform/internal/core"
)

func testCatalogs() Catalogs {
	return Catalogs{
		Categories: []core.Category{
			{Name: "Groceries"},
			{Name: "Tax - Medical", Medical: true, TaxRelevant: true},
			{Name: "Tax - Donation", TaxRelevant: true},
		},
		Instruments: []core.PaymentInstrument{
			{ID: "cash", Name: "Cash", Kind: core.KindCash, Active: true},
			{ID: "visa", Name: "VISA", Kind: core.KindRevolvingCredit, Active: true},
		},
	}
}

func validRecord() core.CandidateRecord {
	return core.CandidateRecord{
		Date:                core.NewDate(2025, 3, 14),
		Amount:              core.Money{Cents: 3000},
		Category:            "Groceries",
		PaymentInstrumentID: "cash",
	}
}

func TestComputeReimbursement(t *testing.T) {
	t.Run("breakdown", func(t *testing.T) {
		// Groceries, amount 30.00, original cost 80.00
		br, msg := ComputeReimbursement(core.Money{Cents: 3000}, core.Money{Cents: 8000})
		if msg != "" {
			t.Fatalf("unexpected error: %q", msg)
		}
		if br == nil {
			t.Fatal("expected a breakdown")
		}
		if br.Charged.Cents != 8000 || br.Reimbursed.Cents != 5000 || br.Net.Cents != 3000 {
			t.Errorf("breakdown = %s/%s/%s, want $80.00/$50.00/$30.00",
				br.Charged, br.Reimbursed, br.Net)
		}
	})

	t.Run("net exceeds original", func(t *testing.T) {
		br, msg := ComputeReimbursement(core.Money{Cents: 10000}, core.Money{Cents: 5000})
		if br != nil {
			t.Error("no breakdown must be shown on error")
		}
		if msg != MsgNetExceedsOriginal {
			t.Errorf("msg = %q, want %q", msg, MsgNetExceedsOriginal)
		}
	})

	t.Run("original cost absent", func(t *testing.T) {
		br, msg := ComputeReimbursement(core.Money{Cents: 3000}, core.Money{})
		if br != nil || msg != "" {
			t.Errorf("expected nothing computed, got %v %q", br, msg)
		}
	})

	t.Run("equal amounts", func(t *testing.T) {
		br, msg := ComputeReimbursement(core.Money{Cents: 3000}, core.Money{Cents: 3000})
		if msg != "" || br == nil || br.Reimbursed.Cents != 0 {
			t.Errorf("amount == originalCost should yield zero reimbursement, got %v %q", br, msg)
		}
	})
}

func TestValidateRecordRequiredFields(t *testing.T) {
	cats := testCatalogs()

	tests := []struct {
		name   string
		mutate func(*core.CandidateRecord)
		field  Field
		msg    string
	}{
		{"missing date", func(r *core.CandidateRecord) { r.Date = core.Date{} }, FieldDate, MsgDateRequired},
		{"zero amount", func(r *core.CandidateRecord) { r.Amount = core.Money{} }, FieldAmount, MsgAmountRequired},
		{"missing category", func(r *core.CandidateRecord) { r.Category = "" }, FieldCategory, MsgCategoryRequired},
		{"unknown category", func(r *core.CandidateRecord) { r.Category = "Yachts" }, FieldCategory, MsgCategoryUnknown},
		{"missing instrument", func(r *core.CandidateRecord) { r.PaymentInstrumentID = "" }, FieldInstrument, MsgInstrumentRequired},
		{"unknown instrument", func(r *core.CandidateRecord) { r.PaymentInstrumentID = "amex" }, FieldInstrument, MsgInstrumentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			errs := ValidateRecord(r, cats)
			if got := errs[tt.field]; got != tt.msg {
				t.Errorf("errs[%s] = %q, want %q (all: %v)", tt.field, got, tt.msg, errs)
			}
		})
	}
}

func TestValidateRecordPostedDate(t *testing.T) {
	cats := testCatalogs()
	r := validRecord()
	r.PaymentInstrumentID = "visa"
	r.PostedDate = core.NewDate(2025, 3, 10) // before the expense date
	errs := ValidateRecord(r, cats)
	if errs[FieldPostedDate] != MsgPostedBeforeDate {
		t.Fatalf("expected posted-date error, got %v", errs)
	}

	r.PostedDate = core.NewDate(2025, 3, 20)
	if errs := ValidateRecord(r, cats); len(errs) != 0 {
		t.Fatalf("posted date after expense date should pass, got %v", errs)
	}
}

func TestValidateRecordFutureMonths(t *testing.T) {
	cats := testCatalogs()
	for _, n := range []int{0, 1, 12, 24} {
		r := validRecord()
		r.FutureMonths = n
		if errs := ValidateRecord(r, cats); errs[FieldFutureMonths] != "" {
			t.Errorf("futureMonths=%d should be valid: %v", n, errs)
		}
	}
	for _, n := range []int{-1, 25, 100} {
		r := validRecord()
		r.FutureMonths = n
		if errs := ValidateRecord(r, cats); errs[FieldFutureMonths] != MsgFutureMonthsRange {
			t.Errorf("futureMonths=%d should fail: %v", n, errs)
		}
	}
}

func TestValidateRecordMedicalInsurance(t *testing.T) {
	cats := testCatalogs()
	r := validRecord()
	r.Category = "Tax - Medical"
	r.InsuranceEligible = true
	r.Amount = core.Money{Cents: 20000}
	r.OriginalCost = core.Money{Cents: 15000} // less than net

	errs := ValidateRecord(r, cats)
	if errs[FieldOriginalCost] != MsgNetExceedsOriginal {
		t.Fatalf("insurance original cost below net must fail, got %v", errs)
	}

	r.OriginalCost = core.Money{Cents: 25000}
	if errs := ValidateRecord(r, cats); len(errs) != 0 {
		t.Fatalf("covering original cost should pass, got %v", errs)
	}
}

func TestValidateRecordGenericReimbursement(t *testing.T) {
	cats := testCatalogs()
	r := validRecord()
	r.Amount = core.Money{Cents: 10000}
	r.OriginalCost = core.Money{Cents: 5000}

	errs := ValidateRecord(r, cats)
	if errs[FieldOriginalCost] != MsgNetExceedsOriginal {
		t.Fatalf("net above original cost must fail, got %v", errs)
	}
}

func TestValidateRecordAllocationSum(t *testing.T) {
	cats := testCatalogs()
	r := validRecord()
	r.Category = "Tax - Medical"
	r.Amount = core.Money{Cents: 20000}
	r.People = []core.PersonAllocation{
		{PersonID: "a", Amount: core.Money{Cents: 10000}},
		{PersonID: "b", Amount: core.Money{Cents: 5000}},
	}
	errs := ValidateRecord(r, cats)
	if errs[FieldPeople] != MsgAllocationSum {
		t.Fatalf("allocation mismatch must fail, got %v", errs)
	}

	r.People[1].Amount.Cents = 10000
	if errs := ValidateRecord(r, cats); len(errs) != 0 {
		t.Fatalf("matching allocations should pass, got %v", errs)
	}
}

func TestErrorsFirst(t *testing.T) {
	errs := Errors{
		FieldPeople: MsgAllocationSum,
		FieldAmount: MsgAmountRequired,
		FieldDate:   MsgDateRequired,
	}
	if got := errs.First(); got != FieldDate {
		t.Errorf("First() = %s, want %s", got, FieldDate)
	}
	if got := (Errors{}).First(); got != "" {
		t.Errorf("First() on empty = %q, want empty", got)
	}
}
