// Package storage is the sqlite persistence backend. It implements the
// record store, the catalog source and the expansion-defaults store over a
// single database file, and materializes recurring series server-side.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"expenseform/internal/catalog"
	"expenseform/internal/core"
	"expenseform/internal/form"
	"expenseform/internal/series"
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateRecord implements form.RecordStore. The base record and its whole
// recurring series are written in one transaction; a partial series never
// becomes visible.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.CandidateRecord, allocs []core.PersonAllocation, futureMonths int) (form.CreateResult, error) {
	rec.People = allocs
	if err := rec.Validate(); err != nil {
		return form.CreateResult{}, fmt.Errorf("validate record: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return form.CreateResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec.ID = uuid.NewString()
	future := series.Generate(rec, futureMonths)
	seriesID := ""
	if len(future) > 0 {
		seriesID = uuid.NewString()
	}

	if err := insertRecord(ctx, tx, rec, seriesID); err != nil {
		return form.CreateResult{}, err
	}
	for i := range future {
		future[i].ID = uuid.NewString()
		if err := insertRecord(ctx, tx, future[i], seriesID); err != nil {
			return form.CreateResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return form.CreateResult{}, fmt.Errorf("commit record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", rec.ID,
		"category", rec.Category,
		"amount_cents", rec.Amount.Cents,
		"future_records", len(future))

	return form.CreateResult{Record: rec, FutureRecords: future}, nil
}

// UpdateRecord implements form.RecordStore. The recurring series is never
// re-materialized on update; only the addressed record changes.
func (r *SQLiteRepository) UpdateRecord(ctx context.Context, id string, rec core.CandidateRecord, allocs []core.PersonAllocation) (core.CandidateRecord, error) {
	rec.ID = id
	rec.People = allocs
	if err := rec.Validate(); err != nil {
		return core.CandidateRecord{}, fmt.Errorf("validate record: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.CandidateRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE records SET
			date = ?, place = ?, amount_cents = ?, category = ?,
			payment_instrument_id = ?, posted_date = ?,
			original_cost_cents = ?, insurance_eligible = ?, claim_status = ?,
			updated_at = datetime('now')
		WHERE id = ?`,
		rec.Date.Format(dateLayout), rec.Place, rec.Amount.Cents, rec.Category,
		rec.PaymentInstrumentID, nullableDate(rec.PostedDate),
		rec.OriginalCost.Cents, boolToInt(rec.InsuranceEligible), string(rec.ClaimStatus),
		id)
	if err != nil {
		return core.CandidateRecord{}, fmt.Errorf("update record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.CandidateRecord{}, fmt.Errorf("update record %s: %w", id, core.ErrRecordNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM allocations WHERE record_id = ?", id); err != nil {
		return core.CandidateRecord{}, fmt.Errorf("clear allocations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM attachments WHERE record_id = ?", id); err != nil {
		return core.CandidateRecord{}, fmt.Errorf("clear attachments: %w", err)
	}
	if err := insertChildren(ctx, tx, rec); err != nil {
		return core.CandidateRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.CandidateRecord{}, fmt.Errorf("commit update: %w", err)
	}

	slog.InfoContext(ctx, "Record updated in SQLite", "id", id, "amount_cents", rec.Amount.Cents)
	return rec, nil
}

// DeleteRecord removes one record; allocations and attachments go with it via
// the foreign-key cascades. Series siblings are untouched.
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete record %s: %w", id, core.ErrRecordNotFound)
	}
	slog.InfoContext(ctx, "Record deleted from SQLite", "id", id)
	return nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec core.CandidateRecord, seriesID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO records (
			id, series_id, date, place, amount_cents, category,
			payment_instrument_id, posted_date, original_cost_cents,
			insurance_eligible, claim_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullableString(seriesID), rec.Date.Format(dateLayout), rec.Place,
		rec.Amount.Cents, rec.Category, rec.PaymentInstrumentID,
		nullableDate(rec.PostedDate), rec.OriginalCost.Cents,
		boolToInt(rec.InsuranceEligible), string(rec.ClaimStatus))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return insertChildren(ctx, tx, rec)
}

func insertChildren(ctx context.Context, tx *sql.Tx, rec core.CandidateRecord) error {
	for _, a := range rec.People {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO allocations (record_id, person_id, amount_cents, original_amount_cents)
			VALUES (?, ?, ?, ?)`,
			rec.ID, a.PersonID, a.Amount.Cents, a.OriginalAmount.Cents)
		if err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}
	for _, inv := range rec.Invoices {
		id := inv.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (id, record_id, file_name) VALUES (?, ?, ?)`,
			id, rec.ID, inv.FileName)
		if err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}
	return nil
}

// GetRecord loads one record with its allocations and attachments.
func (r *SQLiteRepository) GetRecord(ctx context.Context, id string) (core.CandidateRecord, error) {
	var (
		rec        core.CandidateRecord
		date       string
		postedDate sql.NullString
		insurance  int
		claim      string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, date, place, amount_cents, category, payment_instrument_id,
		       posted_date, original_cost_cents, insurance_eligible, claim_status
		FROM records WHERE id = ?`, id).Scan(
		&rec.ID, &date, &rec.Place, &rec.Amount.Cents, &rec.Category,
		&rec.PaymentInstrumentID, &postedDate, &rec.OriginalCost.Cents,
		&insurance, &claim)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CandidateRecord{}, fmt.Errorf("get record %s: %w", id, core.ErrRecordNotFound)
	}
	if err != nil {
		return core.CandidateRecord{}, fmt.Errorf("get record %s: %w", id, err)
	}
	rec.Date, err = parseDate(date)
	if err != nil {
		return core.CandidateRecord{}, err
	}
	if postedDate.Valid {
		rec.PostedDate, err = parseDate(postedDate.String)
		if err != nil {
			return core.CandidateRecord{}, err
		}
	}
	rec.InsuranceEligible = insurance != 0
	rec.ClaimStatus = core.ClaimStatus(claim)

	rows, err := r.db.QueryContext(ctx, `
		SELECT person_id, amount_cents, original_amount_cents
		FROM allocations WHERE record_id = ?`, id)
	if err != nil {
		return core.CandidateRecord{}, fmt.Errorf("get allocations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a core.PersonAllocation
		if err := rows.Scan(&a.PersonID, &a.Amount.Cents, &a.OriginalAmount.Cents); err != nil {
			return core.CandidateRecord{}, fmt.Errorf("scan allocation: %w", err)
		}
		rec.People = append(rec.People, a)
	}
	if err := rows.Err(); err != nil {
		return core.CandidateRecord{}, fmt.Errorf("iterate allocations: %w", err)
	}

	invRows, err := r.db.QueryContext(ctx, `
		SELECT id, file_name FROM attachments WHERE record_id = ?`, id)
	if err != nil {
		return core.CandidateRecord{}, fmt.Errorf("get attachments: %w", err)
	}
	defer invRows.Close()
	for invRows.Next() {
		var inv core.AttachmentRef
		if err := invRows.Scan(&inv.ID, &inv.FileName); err != nil {
			return core.CandidateRecord{}, fmt.Errorf("scan attachment: %w", err)
		}
		rec.Invoices = append(rec.Invoices, inv)
	}
	return rec, invRows.Err()
}

// SeriesRecords returns every record sharing the given record's series, the
// addressed record included, ordered by date.
func (r *SQLiteRepository) SeriesRecords(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM records
		WHERE series_id IS NOT NULL
		  AND series_id = (SELECT series_id FROM records WHERE id = ?)
		ORDER BY date`, id)
	if err != nil {
		return nil, fmt.Errorf("get series records: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var rid string
		if err := rows.Scan(&rid); err != nil {
			return nil, fmt.Errorf("scan series record: %w", err)
		}
		ids = append(ids, rid)
	}
	return ids, rows.Err()
}

// Categories implements catalog.Source.
func (r *SQLiteRepository) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name, medical, tax_relevant FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		var (
			c            core.Category
			medical, tax int
		)
		if err := rows.Scan(&c.Name, &medical, &tax); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Medical = medical != 0
		c.TaxRelevant = tax != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// PaymentInstruments implements catalog.Source.
func (r *SQLiteRepository) PaymentInstruments(ctx context.Context) ([]core.PaymentInstrument, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, kind, active FROM payment_instruments ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("get payment instruments: %w", err)
	}
	defer rows.Close()
	var out []core.PaymentInstrument
	for rows.Next() {
		var (
			pi     core.PaymentInstrument
			kind   string
			active int
		)
		if err := rows.Scan(&pi.ID, &pi.Name, &kind, &active); err != nil {
			return nil, fmt.Errorf("scan payment instrument: %w", err)
		}
		pi.Kind = core.InstrumentKind(kind)
		pi.Active = active != 0
		out = append(out, pi)
	}
	return out, rows.Err()
}

// People implements catalog.Source.
func (r *SQLiteRepository) People(ctx context.Context) ([]core.Person, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM people ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("get people: %w", err)
	}
	defer rows.Close()
	var out []core.Person
	for rows.Next() {
		var p core.Person
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddPerson inserts a catalog person, used by seeding and tests.
func (r *SQLiteRepository) AddPerson(ctx context.Context, p core.Person) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO people (id, name) VALUES (?, ?)", p.ID, p.Name); err != nil {
		return fmt.Errorf("add person: %w", err)
	}
	return nil
}

// PlaceHistory implements catalog.Source: most recent distinct places with
// the category they were last filed under.
func (r *SQLiteRepository) PlaceHistory(ctx context.Context, limit int) ([]catalog.PlaceVisit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT place, category, MAX(date)
		FROM records
		WHERE place <> ''
		GROUP BY place
		ORDER BY MAX(date) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get place history: %w", err)
	}
	defer rows.Close()
	var out []catalog.PlaceVisit
	for rows.Next() {
		var (
			v        catalog.PlaceVisit
			lastDate string
		)
		if err := rows.Scan(&v.Place, &v.Category, &lastDate); err != nil {
			return nil, fmt.Errorf("scan place visit: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetExpansionDefaults implements form.ExpansionStore. The interface is
// error-free by design; a read failure logs and yields the collapsed default.
func (r *SQLiteRepository) GetExpansionDefaults(mode form.Mode) map[form.SectionID]bool {
	out := make(map[form.SectionID]bool)
	rows, err := r.db.Query(
		"SELECT section, expanded FROM expansion_defaults WHERE mode = ?", string(mode))
	if err != nil {
		slog.Warn("Expansion defaults read failed", "mode", string(mode), "error", err)
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var (
			section  string
			expanded int
		)
		if err := rows.Scan(&section, &expanded); err != nil {
			slog.Warn("Expansion defaults scan failed", "error", err)
			return out
		}
		out[form.SectionID(section)] = expanded != 0
	}
	return out
}

// SetExpansionDefaults implements form.ExpansionStore, last writer wins.
func (r *SQLiteRepository) SetExpansionDefaults(mode form.Mode, defaults map[form.SectionID]bool) {
	tx, err := r.db.Begin()
	if err != nil {
		slog.Warn("Expansion defaults write failed", "error", err)
		return
	}
	defer tx.Rollback()
	if _, err := tx.Exec(
		"DELETE FROM expansion_defaults WHERE mode = ?", string(mode)); err != nil {
		slog.Warn("Expansion defaults clear failed", "error", err)
		return
	}
	for section, expanded := range defaults {
		if _, err := tx.Exec(
			"INSERT INTO expansion_defaults (mode, section, expanded) VALUES (?, ?, ?)",
			string(mode), string(section), boolToInt(expanded)); err != nil {
			slog.Warn("Expansion defaults insert failed", "section", string(section), "error", err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Warn("Expansion defaults commit failed", "error", err)
	}
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func nullableDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.Format(dateLayout)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
