package form

import (
	"expenseform/internal/core"
	"expenseform/internal/rules"
)

// Mode distinguishes a fresh entry from editing a stored record. Expansion
// defaults are keyed by mode.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// SectionID names an optional, independently collapsible group of fields.
type SectionID string

const (
	SectionAdvancedOptions    SectionID = "advancedOptions"
	SectionReimbursement      SectionID = "reimbursement"
	SectionInsurance          SectionID = "insurance"
	SectionPeopleAssignment   SectionID = "peopleAssignment"
	SectionInvoiceAttachments SectionID = "invoiceAttachments"
)

// SectionOrder is the fixed display order of the optional sections.
var SectionOrder = []SectionID{
	SectionAdvancedOptions,
	SectionReimbursement,
	SectionInsurance,
	SectionPeopleAssignment,
	SectionInvoiceAttachments,
}

// SectionState tracks one section. Applicable is derived and recomputed on
// every category/instrument change; Expanded is the persisted toggle;
// HasError reflects the last validation pass.
type SectionState struct {
	Applicable bool
	Expanded   bool
	HasError   bool
}

// applicability derives which sections exist for the given category. The
// zero Category (nothing selected yet, or an unknown name) behaves as
// non-medical and non-tax-relevant.
func applicability(cat core.Category) map[SectionID]bool {
	return map[SectionID]bool{
		SectionAdvancedOptions:    true,
		SectionReimbursement:      !cat.Medical,
		SectionInsurance:          cat.Medical,
		SectionPeopleAssignment:   cat.Medical,
		SectionInvoiceAttachments: cat.TaxRelevant,
	}
}

// sectionForField maps a validation field to the section owning it. Base
// fields (date, place, amount, category, instrument) are always visible and
// own no section. OriginalCost belongs to the reimbursement section outside
// medical categories and to the insurance section inside them.
func sectionForField(f rules.Field, medical bool) (SectionID, bool) {
	switch f {
	case rules.FieldPostedDate, rules.FieldFutureMonths:
		return SectionAdvancedOptions, true
	case rules.FieldOriginalCost:
		if medical {
			return SectionInsurance, true
		}
		return SectionReimbursement, true
	case rules.FieldInsuranceEligible, rules.FieldClaimStatus:
		return SectionInsurance, true
	case rules.FieldPeople:
		return SectionPeopleAssignment, true
	case rules.FieldInvoices:
		return SectionInvoiceAttachments, true
	}
	return "", false
}

// sectionHasData reports whether the section already holds non-default
// values in the record. Used to seed Expanded when editing an existing
// record without a stored expansion preference.
func sectionHasData(rec core.CandidateRecord, id SectionID) bool {
	switch id {
	case SectionAdvancedOptions:
		return !rec.PostedDate.IsEmpty() || rec.FutureMonths != 0
	case SectionReimbursement:
		return rec.OriginalCost.IsSet()
	case SectionInsurance:
		return rec.InsuranceEligible || rec.OriginalCost.IsSet() ||
			(rec.ClaimStatus != "" && rec.ClaimStatus != core.ClaimNotClaimed)
	case SectionPeopleAssignment:
		return len(rec.People) > 0
	case SectionInvoiceAttachments:
		return len(rec.Invoices) > 0
	}
	return false
}
