package form

import (
	"context"

	"expenseform/internal/core"
)

// Ports for the injected collaborators. The engine never opens connections
// itself; persistence, catalogs and the expansion store are supplied at
// construction.
type (
	// CreateResult is the persistence collaborator's answer to a create call.
	// FutureRecords holds the server-materialized recurring series; its
	// length is reported to the user verbatim.
	CreateResult struct {
		Record        core.CandidateRecord
		FutureRecords []core.CandidateRecord
	}

	// RecordStore persists expense records. The store alone materializes the
	// recurring series on create; updates never re-materialize.
	RecordStore interface {
		CreateRecord(ctx context.Context, rec core.CandidateRecord, allocs []core.PersonAllocation, futureMonths int) (CreateResult, error)
		UpdateRecord(ctx context.Context, id string, rec core.CandidateRecord, allocs []core.PersonAllocation) (core.CandidateRecord, error)
	}

	// CategorySuggestion is a guessed category for a place string.
	CategorySuggestion struct {
		Category   string
		Confidence float64
	}

	// CatalogSource supplies the lookup data the rule engine consumes. A
	// failed lookup disables the dependent section rather than failing the
	// whole form.
	CatalogSource interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		ListPaymentInstruments(ctx context.Context, activeOnly bool) ([]core.PaymentInstrument, error)
		ListPeople(ctx context.Context) ([]core.Person, error)
		SuggestCategory(ctx context.Context, place string) (*CategorySuggestion, error)
	}

	// ExpansionStore is the session-scoped store for default section
	// expansion, keyed by form mode. Read once at mount, written once at
	// unmount or submission success, last writer wins.
	ExpansionStore interface {
		GetExpansionDefaults(mode Mode) map[SectionID]bool
		SetExpansionDefaults(mode Mode, defaults map[SectionID]bool)
	}
)
