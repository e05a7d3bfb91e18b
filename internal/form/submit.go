package form

import (
	"context"
	"log/slog"

	"expenseform/internal/core"
	"expenseform/internal/rules"
)

// Status classifies how a submission resolved.
type Status string

const (
	// StatusValidationFailed: errors found, sections force-opened, no
	// collaborator call was made.
	StatusValidationFailed Status = "validation_failed"
	// StatusNeedsAllocation: two or more people selected without confirmed
	// custom amounts; the allocation interaction must run first.
	StatusNeedsAllocation Status = "needs_allocation"
	StatusCreated         Status = "created"
	StatusUpdated         Status = "updated"
	// StatusFailed: the collaborator errored; all field values and section
	// states are untouched and the form is resubmittable.
	StatusFailed Status = "failed"
)

// SubmissionResult reports a finished submission attempt.
type SubmissionResult struct {
	Status     Status
	Errors     rules.Errors
	FocusField rules.Field // first errored field in document order
	Record     core.CandidateRecord
	// FutureRecords is the count of additional future-month records the
	// collaborator created, taken verbatim from its response.
	FutureRecords int
	Err           error
}

// Submit validates the merged record and, when clean, hands it to the
// persistence collaborator. While one submission is in flight any further
// call returns ErrSubmitInFlight to prevent duplicate record creation.
func (f *Form) Submit(ctx context.Context) (SubmissionResult, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return SubmissionResult{}, ErrSubmitInFlight
	}
	f.submitting = true
	rec := f.record.Clone()
	catalogs := f.catalogsLocked()
	confirmed := f.splitConfirmed
	mode := f.mode
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	// Step 1: full validation. On any error, expand and flag the owning
	// sections and stop — no collaborator call.
	errs := rules.ValidateRecord(rec, catalogs)
	if len(errs) > 0 {
		f.mu.Lock()
		focus := f.markErrorsLocked(errs)
		f.mu.Unlock()
		slog.InfoContext(ctx, "Submission blocked by validation",
			"errors", len(errs), "focus_field", string(focus))
		return SubmissionResult{Status: StatusValidationFailed, Errors: errs, FocusField: focus}, nil
	}

	// Step 2: a multi-person split must be user-confirmed before anything
	// leaves the form.
	if len(rec.People) >= 2 && !confirmed {
		return SubmissionResult{Status: StatusNeedsAllocation, Record: rec}, nil
	}

	var allocs []core.PersonAllocation
	if len(rec.People) > 0 {
		allocs = rec.People
	}

	// Step 3: hand off to the collaborator. It alone materializes the
	// recurring series.
	if mode == ModeEdit && rec.ID != "" {
		updated, err := f.store.UpdateRecord(ctx, rec.ID, rec, allocs)
		if err != nil {
			slog.ErrorContext(ctx, "Record update failed", "id", rec.ID, "error", err)
			return SubmissionResult{Status: StatusFailed, Err: &CollaboratorError{Op: "update record", Err: err}}, nil
		}
		slog.InfoContext(ctx, "Record updated", "id", updated.ID, "amount_cents", updated.Amount.Cents)
		return SubmissionResult{Status: StatusUpdated, Record: updated}, nil
	}

	res, err := f.store.CreateRecord(ctx, rec, allocs, rec.FutureMonths)
	if err != nil {
		slog.ErrorContext(ctx, "Record creation failed",
			"category", rec.Category, "amount_cents", rec.Amount.Cents, "error", err)
		return SubmissionResult{Status: StatusFailed, Err: &CollaboratorError{Op: "create record", Err: err}}, nil
	}

	f.resetAfterCreate()
	slog.InfoContext(ctx, "Record created",
		"id", res.Record.ID,
		"category", res.Record.Category,
		"amount_cents", res.Record.Amount.Cents,
		"future_records", len(res.FutureRecords))
	return SubmissionResult{
		Status:        StatusCreated,
		Record:        res.Record,
		FutureRecords: len(res.FutureRecords),
	}, nil
}

// resetAfterCreate returns the form to its defaults after a successful
// create: all transient fields cleared except the last-used payment
// instrument, every section collapsed, and the expansion store overwritten
// with the fully-collapsed state.
func (f *Form) resetAfterCreate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record = core.CandidateRecord{PaymentInstrumentID: f.lastInstrumentID}
	f.splitConfirmed = false
	for _, s := range f.sections {
		s.Expanded = false
		s.HasError = false
	}
	f.recomputeApplicability()
	f.writeExpansionLocked()
}

// PendingSplit reports whether submission would stop for allocation
// collection: two or more people selected and no confirmed custom amounts.
func (f *Form) PendingSplit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.record.People) >= 2 && !f.splitConfirmed
}

// FuturePreview is the count-only preview of additional records a submission
// would create. The series itself is never materialized during editing.
func (f *Form) FuturePreview() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record.FutureMonths
}
