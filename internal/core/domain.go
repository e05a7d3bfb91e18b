package core

import (
	"errors"
	"strings"
	"time"
)

const (
	ClaimNotClaimed ClaimStatus = "not_claimed"
	ClaimInProgress ClaimStatus = "in_progress"
	ClaimPaid       ClaimStatus = "paid"
	ClaimDenied     ClaimStatus = "denied"
)

const (
	KindCash            InstrumentKind = "cash"
	KindDebit           InstrumentKind = "debit"
	KindCheque          InstrumentKind = "cheque"
	KindRevolvingCredit InstrumentKind = "revolving_credit"
)

// FutureMonthsMax bounds how many future-dated clones a single entry may request.
const FutureMonthsMax = 24

type (
	ClaimStatus    string
	InstrumentKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Category is a catalog entry. Medical categories use the insurance
	// reimbursement mechanism; tax-relevant ones accept invoice attachments.
	Category struct {
		Name        string
		Medical     bool
		TaxRelevant bool
	}

	PaymentInstrument struct {
		ID     string
		Name   string
		Kind   InstrumentKind
		Active bool
	}

	Person struct {
		ID   string
		Name string
	}

	// PersonAllocation is one person's share of a shared expense.
	// OriginalAmount is zero unless a pre-reimbursement share was recorded.
	PersonAllocation struct {
		PersonID       string
		Amount         Money
		OriginalAmount Money
	}

	// AttachmentRef points at a stored invoice file. The engine only ever
	// tracks the reference, never file bytes.
	AttachmentRef struct {
		ID       string
		FileName string
	}

	// CandidateRecord is the complete in-progress expense entry. Amount is
	// always the net, out-of-pocket figure; OriginalCost describes the larger
	// originally-charged amount when part of it is recovered (generic
	// reimbursement outside medical categories, insurance inside them — the
	// two mechanisms never coexist on one record).
	CandidateRecord struct {
		ID                  string
		Date                Date
		Place               string
		Amount              Money
		Category            string
		PaymentInstrumentID string
		PostedDate          Date
		FutureMonths        int
		OriginalCost        Money
		InsuranceEligible   bool
		ClaimStatus         ClaimStatus
		People              []PersonAllocation
		Invoices            []AttachmentRef
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyInstrument  = errors.New("empty payment instrument")
	ErrUnknownClaim     = errors.New("unknown claim status")
	ErrAllocationTotals = errors.New("allocations do not sum to the record amount")
	ErrRecordNotFound   = errors.New("record not found")
)

// NewDate creates a Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsEmpty reports whether the date was never set (optional dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsSet reports whether an optional money field carries a value.
func (m Money) IsSet() bool {
	return m.Cents != 0
}

func (c ClaimStatus) Validate() error {
	switch c {
	case ClaimNotClaimed, ClaimInProgress, ClaimPaid, ClaimDenied, "":
		return nil
	}
	return ErrUnknownClaim
}

// IsRevolvingCredit reports whether the instrument enables the posted-date field.
func (p PaymentInstrument) IsRevolvingCredit() bool {
	return p.Kind == KindRevolvingCredit
}

// AllocationSum returns the total of all per-person amounts.
func AllocationSum(allocs []PersonAllocation) Money {
	var total int64
	for _, a := range allocs {
		total += a.Amount.Cents
	}
	return Money{Cents: total}
}

// Clone returns a deep copy of the record. The slices are copied so mutating
// the clone never touches the original.
func (r CandidateRecord) Clone() CandidateRecord {
	out := r
	if r.People != nil {
		out.People = make([]PersonAllocation, len(r.People))
		copy(out.People, r.People)
	}
	if r.Invoices != nil {
		out.Invoices = make([]AttachmentRef, len(r.Invoices))
		copy(out.Invoices, r.Invoices)
	}
	return out
}

// Validate performs the structural checks that hold for any persisted record.
// Field-level form validation with user-facing messages lives in the rules
// package; this is the storage-side gate.
func (r CandidateRecord) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(r.PaymentInstrumentID) == "" {
		return ErrEmptyInstrument
	}
	if err := r.ClaimStatus.Validate(); err != nil {
		return err
	}
	if r.FutureMonths < 0 || r.FutureMonths > FutureMonthsMax {
		return errors.New("future months out of range")
	}
	if len(r.People) > 0 {
		sum := AllocationSum(r.People)
		if diff := sum.Cents - r.Amount.Cents; diff > 1 || diff < -1 {
			return ErrAllocationTotals
		}
	}
	return nil
}
