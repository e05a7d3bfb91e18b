package form

import (
	"errors"
	"fmt"

	"expenseform/internal/core"
)

// ErrSubmitInFlight is returned when Submit is called while a previous
// submission has not resolved yet. The caller must wait; no second
// collaborator call is made.
var ErrSubmitInFlight = errors.New("submission already in flight")

// CollaboratorError wraps a failure from the injected persistence
// collaborator. Field values and section states are preserved unchanged so
// the user can retry; the engine never auto-retries.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// AllocationError reports a custom split whose sum does not match the record
// total. Recoverable by user edit, never propagated beyond the form.
type AllocationError struct {
	Sum   core.Money
	Total core.Money
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocations sum to %s, want %s", e.Sum, e.Total)
}
