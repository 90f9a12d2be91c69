package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/xuri/excelize/v2"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

// Lister is the read API the exporter consumes.
type Lister interface {
	ListAll(ctx context.Context) ([]record.Client, error)
}

// Exporter writes the full record set to a workbook.
type Exporter struct {
	lister   Lister
	branding record.Branding
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithBranding colors the header row with the branding accent color.
func WithBranding(b record.Branding) Option {
	return func(e *Exporter) {
		e.branding = b
	}
}

// New creates an exporter reading from lister.
func New(lister Lister, opts ...Option) *Exporter {
	e := &Exporter{lister: lister}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes every client to path as an .xlsx workbook, replacing
// any existing file. The workbook is written to a temporary file in the
// same directory and renamed over path only when complete; on any error
// or cancellation the destination is left untouched.
func (e *Exporter) Export(ctx context.Context, path string) (Table, error) {
	const op = "export"

	clients, err := e.lister.ListAll(ctx)
	if err != nil {
		return Table{}, err
	}
	table := BuildTable(clients)
	if err := checkCells(table); err != nil {
		return Table{}, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeSheet(f, table); err != nil {
		return Table{}, fmt.Errorf("%s: build workbook: %w", op, err)
	}

	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return Table{}, record.NewIOError(op, path, err)
	}
	defer pf.Cleanup()

	if _, err := f.WriteTo(pf); err != nil {
		return Table{}, record.NewIOError(op, path, fmt.Errorf("write workbook: %w", err))
	}

	if err := ctx.Err(); err != nil {
		slog.Debug("export cancelled", "path", path)
		return Table{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := pf.CloseAtomicallyReplace(); err != nil {
		return Table{}, record.NewIOError(op, path, fmt.Errorf("place workbook: %w", err))
	}

	slog.Info("export written", "path", path, "clients", len(table.Rows), "columns", len(table.Header))
	return table, nil
}

// maxNumericID is the largest id written as a number. Workbook readers
// round numbers beyond 15 significant digits, so larger ids are written as
// text.
const maxNumericID = 999_999_999_999_999

// checkCells rejects text the workbook would shorten or replace, so a
// written file always reads back as the table.
func checkCells(t Table) error {
	const op = "export"

	for _, h := range t.Header {
		if err := record.ValidateText(op, fmt.Sprintf("column %q", h), h); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		for col, v := range row {
			if err := record.ValidateText(op, fmt.Sprintf("client %s column %q", row[0], t.Header[col]), v); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeSheet fills the default sheet with the table. Ids up to
// maxNumericID are written as numbers, everything else as text so values
// like "0049" survive unchanged.
func (e *Exporter) writeSheet(f *excelize.File, t Table) error {
	sheet := f.GetSheetName(0)

	for col, h := range t.Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return err
		}
	}

	for r, row := range t.Rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if col == 0 {
				id, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					return fmt.Errorf("row %d: id %q: %w", r+1, v, err)
				}
				if id > maxNumericID {
					err = f.SetCellStr(sheet, cell, v)
				} else {
					err = f.SetCellValue(sheet, cell, id)
				}
				if err != nil {
					return err
				}
				continue
			}
			if v == "" {
				continue
			}
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return e.styleHeader(f, sheet, len(t.Header))
}

func (e *Exporter) styleHeader(f *excelize.File, sheet string, columns int) error {
	accent := strings.TrimPrefix(e.branding.Accent(), "#")
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{strings.ToUpper(accent)}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

// ReadTable reads an exported workbook back into a Table. Short rows are
// padded with empty cells to the header width.
func ReadTable(path string) (Table, error) {
	const op = "read_export"

	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, record.NewIOError(op, path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return Table{}, record.NewIOError(op, path, fmt.Errorf("read rows: %w", err))
	}
	if len(rows) == 0 {
		return Table{}, record.NewIOError(op, path, fmt.Errorf("workbook has no header row"))
	}

	t := Table{Header: rows[0], Rows: make([][]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		padded := make([]string, len(t.Header))
		copy(padded, row)
		t.Rows = append(t.Rows, padded)
	}
	return t, nil
}
