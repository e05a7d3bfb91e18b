// Package rules implements the pure validation and arithmetic rules for an
// expense entry: reimbursement breakdowns and whole-record field validation.
// Everything here is side-effect free and runs synchronously on every field
// change, plus once more on submit.
package rules

import (
	"expenseform/internal/core"
)

// Field names a single input of the entry form. The declared order of
// FieldOrder is the document order used when deciding which errored field
// receives focus.
type Field string

const (
	FieldDate              Field = "date"
	FieldPlace             Field = "place"
	FieldAmount            Field = "amount"
	FieldCategory          Field = "category"
	FieldInstrument        Field = "paymentInstrumentId"
	FieldPostedDate        Field = "postedDate"
	FieldFutureMonths      Field = "futureMonths"
	FieldOriginalCost      Field = "originalCost"
	FieldInsuranceEligible Field = "insuranceEligible"
	FieldClaimStatus       Field = "claimStatus"
	FieldPeople            Field = "people"
	FieldInvoices          Field = "invoices"
)

// FieldOrder is the fixed document order of the form's fields.
var FieldOrder = []Field{
	FieldDate,
	FieldPlace,
	FieldAmount,
	FieldCategory,
	FieldInstrument,
	FieldPostedDate,
	FieldFutureMonths,
	FieldOriginalCost,
	FieldInsuranceEligible,
	FieldClaimStatus,
	FieldPeople,
	FieldInvoices,
}

// User-facing validation messages.
const (
	MsgDateRequired       = "Date is required"
	MsgAmountRequired     = "Amount must be greater than zero"
	MsgCategoryRequired   = "Category is required"
	MsgCategoryUnknown    = "Category is not in the catalog"
	MsgInstrumentRequired = "Payment method is required"
	MsgInstrumentUnknown  = "Payment method is not in the catalog"
	MsgPostedBeforeDate   = "Posted date cannot be before the expense date"
	MsgFutureMonthsRange  = "Future months must be a whole number between 0 and 24"
	MsgNetExceedsOriginal = "Net amount cannot exceed original cost"
	MsgAllocationSum      = "Person amounts must add up to the total amount"
	MsgClaimStatusUnknown = "Unknown claim status"
)

// Errors maps field names to user-facing messages. An empty map means the
// record passed validation.
type Errors map[Field]string

// First returns the earliest errored field in document order, or "" when the
// map is empty.
func (e Errors) First() Field {
	for _, f := range FieldOrder {
		if _, ok := e[f]; ok {
			return f
		}
	}
	return ""
}

// Catalogs carries the externally supplied lookup data validation depends on.
// A nil or empty slice means that catalog is unavailable; checks that need it
// are skipped rather than failed.
type Catalogs struct {
	Categories  []core.Category
	Instruments []core.PaymentInstrument
}

// Category looks up a catalog entry by name.
func (c Catalogs) Category(name string) (core.Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return core.Category{}, false
}

// Instrument looks up a payment instrument by id.
func (c Catalogs) Instrument(id string) (core.PaymentInstrument, bool) {
	for _, inst := range c.Instruments {
		if inst.ID == id {
			return inst, true
		}
	}
	return core.PaymentInstrument{}, false
}

// IsMedical reports whether the named category uses the insurance mechanism.
// Unknown categories are treated as non-medical.
func (c Catalogs) IsMedical(name string) bool {
	cat, ok := c.Category(name)
	return ok && cat.Medical
}

// Reimbursement is the computed breakdown for a partially reimbursed expense.
type Reimbursement struct {
	Charged    core.Money // the originally charged amount
	Reimbursed core.Money // the part not borne by the user
	Net        core.Money // the out-of-pocket amount (the record's Amount)
}

// ComputeReimbursement derives the charged/reimbursed/net breakdown from the
// net amount and the original cost. When originalCost is absent it returns
// (nil, ""): nothing to compute, no error. When the net amount exceeds the
// original cost it returns no breakdown and the field error message.
func ComputeReimbursement(amount, originalCost core.Money) (*Reimbursement, string) {
	if !originalCost.IsSet() {
		return nil, ""
	}
	if amount.Cents > originalCost.Cents {
		return nil, MsgNetExceedsOriginal
	}
	return &Reimbursement{
		Charged:    originalCost,
		Reimbursed: core.Money{Cents: originalCost.Cents - amount.Cents},
		Net:        amount,
	}, ""
}

// ValidateRecord runs every field-level check against the candidate record
// and returns the map of failures. Pure: the record and catalogs are never
// mutated.
func ValidateRecord(rec core.CandidateRecord, catalogs Catalogs) Errors {
	errs := Errors{}

	if rec.Date.IsEmpty() {
		errs[FieldDate] = MsgDateRequired
	}
	if rec.Amount.Cents <= 0 {
		errs[FieldAmount] = MsgAmountRequired
	}
	if rec.Category == "" {
		errs[FieldCategory] = MsgCategoryRequired
	} else if len(catalogs.Categories) > 0 {
		if _, ok := catalogs.Category(rec.Category); !ok {
			errs[FieldCategory] = MsgCategoryUnknown
		}
	}
	if rec.PaymentInstrumentID == "" {
		errs[FieldInstrument] = MsgInstrumentRequired
	} else if len(catalogs.Instruments) > 0 {
		if _, ok := catalogs.Instrument(rec.PaymentInstrumentID); !ok {
			errs[FieldInstrument] = MsgInstrumentUnknown
		}
	}

	if !rec.PostedDate.IsEmpty() && !rec.Date.IsEmpty() && rec.PostedDate.Before(rec.Date.Time) {
		errs[FieldPostedDate] = MsgPostedBeforeDate
	}
	if rec.FutureMonths < 0 || rec.FutureMonths > core.FutureMonthsMax {
		errs[FieldFutureMonths] = MsgFutureMonthsRange
	}
	if err := rec.ClaimStatus.Validate(); err != nil {
		errs[FieldClaimStatus] = MsgClaimStatusUnknown
	}

	medical := catalogs.IsMedical(rec.Category)
	if medical {
		// Insurance mechanism: the original cost must cover the net amount.
		if rec.InsuranceEligible && rec.OriginalCost.IsSet() && rec.OriginalCost.Cents < rec.Amount.Cents {
			errs[FieldOriginalCost] = MsgNetExceedsOriginal
		}
	} else if rec.OriginalCost.IsSet() {
		if _, msg := ComputeReimbursement(rec.Amount, rec.OriginalCost); msg != "" {
			errs[FieldOriginalCost] = msg
		}
	}

	if len(rec.People) > 0 {
		sum := core.AllocationSum(rec.People)
		if diff := sum.Cents - rec.Amount.Cents; diff > 1 || diff < -1 {
			errs[FieldPeople] = MsgAllocationSum
		}
	}

	return errs
}
