package ledger

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{
	"Attempt", "Resource", "Resource ID", "Date", "Points", "Amount", "Currency",
	"Payment intent", "Collected", "Booking", "State", "Error kind", "Message",
	"Reconciled", "Note", "Started", "Updated",
}

// Export writes every attempt, and a separate sheet of unreconciled captured
// payments, as an Excel workbook.
func (l *Ledger) Export(ctx context.Context, w io.Writer) error {
	all, err := l.List(ctx, 0)
	if err != nil {
		return err
	}
	open, err := l.ListUnreconciled(ctx)
	if err != nil {
		return err
	}

	sw := newSheetWriter()
	defer sw.Close()

	for _, sheet := range []struct {
		name    string
		entries []Entry
	}{
		{"Attempts", all},
		{"Unreconciled payments", open},
	} {
		if err := sw.AddSheet(sheet.name); err != nil {
			return err
		}
		if err := sw.WriteHeader(exportColumns); err != nil {
			return err
		}
		for i := range sheet.entries {
			if err := sw.WriteRow(exportRow(&sheet.entries[i])); err != nil {
				return fmt.Errorf("write attempt %s: %w", sheet.entries[i].AttemptID, err)
			}
		}
	}
	return sw.Save(w)
}

func exportRow(e *Entry) []any {
	return []any{
		e.AttemptID, e.Resource, e.ResourceID, e.ScheduledDate, e.PointsToUse, e.Amount, e.Currency,
		e.PaymentIntentID, e.Collected, e.BookingID, string(e.State), string(e.ErrorKind), e.Message,
		e.Reconciled, e.Note,
		e.StartedAt.Format("2006-01-02 15:04:05"), e.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// sheetWriter fills an excelize workbook one row at a time.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

// AddSheet adds a new sheet with the given name.
func (w *sheetWriter) AddSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers to the current sheet.
func (w *sheetWriter) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	start := w.currentRow
	if err := w.WriteRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, start)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), start)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	return nil
}

// WriteRow writes a data row to the current sheet.
func (w *sheetWriter) WriteRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

func (w *sheetWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *sheetWriter) Close() error {
	return w.file.Close()
}
