// Package export appends expense records to the spreadsheet-compatible CSV
// file: seven columns (Date, Place, Amount, Notes, Type, Week, Method) after
// three blank header rows, the layout the downstream import expects.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"expenseform/internal/core"
)

const headerRows = 3

// Row is one CSV line in the export layout.
type Row struct {
	Date   string
	Place  string
	Amount string
	Notes  string
	Type   string
	Week   string
	Method string
}

// BuildRow converts a record into its export row. methodName is the display
// name of the payment instrument ("VISA", "Cash", ...), not its id.
func BuildRow(rec core.CandidateRecord, methodName string) Row {
	return Row{
		Date:   rec.Date.Format("2006-01-02"),
		Place:  rec.Place,
		Amount: rec.Amount.String(),
		Notes:  buildNotes(rec),
		Type:   rec.Category,
		Week:   weekLabel(rec.Date),
		Method: methodName,
	}
}

func buildNotes(rec core.CandidateRecord) string {
	if !rec.OriginalCost.IsSet() {
		return ""
	}
	note := fmt.Sprintf("original %s", rec.OriginalCost.String())
	if rec.ClaimStatus != "" {
		note += fmt.Sprintf(", claim %s", rec.ClaimStatus)
	}
	return note
}

func weekLabel(d core.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return fmt.Sprintf("Week %d", (d.Day()-1)/7+1)
}

func (r Row) fields() []string {
	return []string{r.Date, r.Place, r.Amount, r.Notes, r.Type, r.Week, r.Method}
}

// Validate mirrors the downstream import's checks so bad rows are caught
// before they land in the file.
func (r Row) Validate() error {
	if r.Date == "" {
		return fmt.Errorf("missing Date")
	}
	if r.Amount == "" {
		return fmt.Errorf("missing Amount")
	}
	if r.Type == "" {
		return fmt.Errorf("missing Type")
	}
	if r.Method == "" {
		return fmt.Errorf("missing Method")
	}
	return nil
}

// Writer appends rows to the export file, creating it with the blank header
// rows on first use.
type Writer struct {
	mu   sync.Mutex
	path string
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

func (w *Writer) Append(rows ...Row) error {
	for _, r := range rows {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("validate row: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	fresh := false
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
		fresh = true
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if fresh {
		for i := 0; i < headerRows; i++ {
			if err := cw.Write([]string{""}); err != nil {
				return fmt.Errorf("write header row: %w", err)
			}
		}
	}
	for _, r := range rows {
		if err := cw.Write(r.fields()); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush export file: %w", err)
	}
	return nil
}
