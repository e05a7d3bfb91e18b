package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expenseform/internal/amqp"
	"expenseform/internal/core"
)

// RecordReader loads the full record a consumed event points at.
type RecordReader interface {
	GetRecord(ctx context.Context, id string) (core.CandidateRecord, error)
	PaymentInstruments(ctx context.Context) ([]core.PaymentInstrument, error)
}

// Worker turns record events into export rows. Updated records are skipped:
// the CSV file is append-only and the downstream import dedupes nothing.
type Worker struct {
	reader RecordReader
	writer *Writer
}

func NewWorker(reader RecordReader, writer *Writer) *Worker {
	return &Worker{reader: reader, writer: writer}
}

// HandleRecordEvent is the AMQP consumer callback. A returned error requeues
// the event.
func (w *Worker) HandleRecordEvent(ctx context.Context, event *amqp.RecordEvent) error {
	if event.Action != amqp.ActionCreated {
		slog.InfoContext(ctx, "Skipping non-create record event",
			"record_id", event.RecordID, "action", event.Action)
		return nil
	}

	rec, err := w.reader.GetRecord(ctx, event.RecordID)
	if errors.Is(err, core.ErrRecordNotFound) {
		// Deleted before the event was consumed; requeueing would loop forever.
		slog.WarnContext(ctx, "Record gone before export, dropping event",
			"record_id", event.RecordID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load record %s: %w", event.RecordID, err)
	}

	method, err := w.methodName(ctx, rec.PaymentInstrumentID)
	if err != nil {
		return err
	}

	if err := w.writer.Append(BuildRow(rec, method)); err != nil {
		return fmt.Errorf("append export row: %w", err)
	}

	slog.InfoContext(ctx, "Record exported",
		"record_id", rec.ID,
		"category", rec.Category,
		"amount_cents", rec.Amount.Cents)
	return nil
}

func (w *Worker) methodName(ctx context.Context, instrumentID string) (string, error) {
	instruments, err := w.reader.PaymentInstruments(ctx)
	if err != nil {
		return "", fmt.Errorf("list payment instruments: %w", err)
	}
	for _, pi := range instruments {
		if pi.ID == instrumentID {
			return pi.Name, nil
		}
	}
	return "", fmt.Errorf("unknown payment instrument %q", instrumentID)
}
