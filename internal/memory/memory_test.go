package memory

import (
	"context"
	"errors"
	"testing"

	"expenseform/internal/core"
	"expenseform/internal/form"
)

func validRecord() core.CandidateRecord {
	return core.CandidateRecord{
		Date:                core.NewDate(2025, 1, 31),
		Place:               "Superstore",
		Amount:              core.Money{Cents: 3000},
		Category:            "Groceries",
		PaymentInstrumentID: "cash",
	}
}

func TestCreateAndGet(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	res, err := s.CreateRecord(ctx, validRecord(), nil, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Record.ID == "" {
		t.Fatal("record must get an id")
	}

	got, err := s.GetRecord(ctx, res.Record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Place != "Superstore" || got.Amount.Cents != 3000 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestCreateMaterializesSeries(t *testing.T) {
	s := NewSeeded()
	res, err := s.CreateRecord(context.Background(), validRecord(), nil, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(res.FutureRecords) != 2 {
		t.Fatalf("future records = %d, want 2", len(res.FutureRecords))
	}
	// Jan 31 clamps to Feb 28.
	if want := core.NewDate(2025, 2, 28); !res.FutureRecords[0].Date.Equal(want.Time) {
		t.Errorf("first future date = %v, want %v", res.FutureRecords[0].Date, want)
	}
	for _, fr := range res.FutureRecords {
		if _, err := s.GetRecord(context.Background(), fr.ID); err != nil {
			t.Errorf("future record not stored: %v", err)
		}
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	s := NewSeeded()
	rec := validRecord()
	rec.Category = ""
	if _, err := s.CreateRecord(context.Background(), rec, nil, 0); err == nil {
		t.Fatal("invalid record must be rejected")
	}
}

func TestUpdate(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	res, _ := s.CreateRecord(ctx, validRecord(), nil, 0)

	updated := res.Record
	updated.Amount = core.Money{Cents: 4500}
	if _, err := s.UpdateRecord(ctx, res.Record.ID, updated, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetRecord(ctx, res.Record.ID)
	if got.Amount.Cents != 4500 {
		t.Errorf("update lost: %+v", got)
	}

	if _, err := s.UpdateRecord(ctx, "missing", updated, nil); err == nil {
		t.Error("updating a missing record must fail")
	}
}

func TestDelete(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	res, _ := s.CreateRecord(ctx, validRecord(), nil, 0)

	if err := s.DeleteRecord(ctx, res.Record.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetRecord(ctx, res.Record.ID); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("get after delete = %v, want ErrRecordNotFound", err)
	}
	if visits, _ := s.PlaceHistory(ctx, 10); len(visits) != 0 {
		t.Errorf("deleted record still in place history: %+v", visits)
	}
	if err := s.DeleteRecord(ctx, res.Record.ID); !errors.Is(err, core.ErrRecordNotFound) {
		t.Errorf("double delete = %v, want ErrRecordNotFound", err)
	}
}

func TestSeededCatalogs(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	cats, err := s.Categories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	var medical int
	for _, c := range cats {
		if c.Medical {
			medical++
		}
	}
	if medical != 1 {
		t.Errorf("seeded medical categories = %d, want exactly 1", medical)
	}

	instruments, err := s.PaymentInstruments(ctx)
	if err != nil {
		t.Fatalf("instruments: %v", err)
	}
	var revolving int
	for _, pi := range instruments {
		if pi.IsRevolvingCredit() {
			revolving++
		}
	}
	if revolving != 4 {
		t.Errorf("revolving credit instruments = %d, want 4", revolving)
	}
}

func TestPlaceHistoryMostRecentFirst(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	first := validRecord()
	first.Place = "Shell"
	first.Category = "Gas"
	s.CreateRecord(ctx, first, nil, 0)
	s.CreateRecord(ctx, validRecord(), nil, 0)

	visits, err := s.PlaceHistory(ctx, 10)
	if err != nil {
		t.Fatalf("place history: %v", err)
	}
	if len(visits) != 2 || visits[0].Place != "Superstore" || visits[1].Place != "Shell" {
		t.Errorf("visits = %+v", visits)
	}

	// Limit respected.
	visits, _ = s.PlaceHistory(ctx, 1)
	if len(visits) != 1 {
		t.Errorf("limited visits = %+v", visits)
	}
}

func TestExpansionDefaults(t *testing.T) {
	s := NewSeeded()
	s.SetExpansionDefaults(form.ModeCreate, map[form.SectionID]bool{form.SectionInsurance: true})
	got := s.GetExpansionDefaults(form.ModeCreate)
	if !got[form.SectionInsurance] {
		t.Errorf("round trip = %+v", got)
	}
	if len(s.GetExpansionDefaults(form.ModeEdit)) != 0 {
		t.Error("modes are independent")
	}
}
