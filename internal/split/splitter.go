// Package split derives per-person allocations for a shared expense. The
// computation is pure: callers decide whether to accept the automatic equal
// split or collect custom amounts, then check the result with ValidateSplit.
package split

import (
	"expenseform/internal/core"
)

type Mode string

const (
	// ModeSingle: zero or one person; no custom collection needed.
	ModeSingle Mode = "single"
	// ModeNeedsCustom: two or more people; the caller must collect custom
	// per-person amounts, seeded with the equal split as an editable default.
	ModeNeedsCustom Mode = "needs-custom"
)

// tolerance in cents on the sum invariant, absorbing division remainders.
const tolerance = 1

// Result is the outcome of splitting a total across selected people.
type Result struct {
	Mode        Mode
	Allocations []core.PersonAllocation
}

// Split produces the allocation plan for the given total and selection.
// With no people there are no allocations; with exactly one, that person
// carries the full total; with two or more the mode is needs-custom and the
// allocations hold the equal-split default the user may edit.
func Split(total core.Money, personIDs []string) Result {
	switch len(personIDs) {
	case 0:
		return Result{Mode: ModeSingle}
	case 1:
		return Result{
			Mode:        ModeSingle,
			Allocations: []core.PersonAllocation{{PersonID: personIDs[0], Amount: total}},
		}
	default:
		return Result{Mode: ModeNeedsCustom, Allocations: EqualSplit(total, personIDs)}
	}
}

// EqualSplit divides the total evenly, in cents, across the people. The
// remainder cents go to the first person so the sum matches the total
// exactly.
func EqualSplit(total core.Money, personIDs []string) []core.PersonAllocation {
	n := int64(len(personIDs))
	if n == 0 {
		return nil
	}
	base := total.Cents / n
	remainder := total.Cents - base*n
	allocs := make([]core.PersonAllocation, len(personIDs))
	for i, id := range personIDs {
		amount := base
		if i == 0 {
			amount += remainder
		}
		allocs[i] = core.PersonAllocation{PersonID: id, Amount: core.Money{Cents: amount}}
	}
	return allocs
}

// ValidateSplit reports whether the allocations satisfy the sum invariant:
// their total equals the record amount within the smallest currency unit.
func ValidateSplit(allocs []core.PersonAllocation, total core.Money) bool {
	if len(allocs) == 0 {
		return false
	}
	diff := core.AllocationSum(allocs).Cents - total.Cents
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
