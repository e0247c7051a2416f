package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter implements SheetWriter by saving an .xlsx workbook to a file.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates an XLSXWriter for path. An existing workbook is updated in place,
// keeping its other sheets.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write replaces the named sheet with values. The first row is styled as a header.
func (w *XLSXWriter) Write(ctx context.Context, sheet string, values [][]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := excelize.OpenFile(w.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f = excelize.NewFile()
	case err != nil:
		return fmt.Errorf("opening %s: %w", w.path, err)
	}
	defer f.Close()

	if err := replaceSheet(f, sheet); err != nil {
		return err
	}

	for i, row := range values {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("addressing row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if len(values) > 0 {
		if err := styleHeader(f, sheet, len(values[0])); err != nil {
			return err
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving %s: %w", w.path, err)
	}
	return nil
}

// replaceSheet leaves an empty, active sheet named sheet in f. A fresh workbook's default
// sheet is dropped.
func replaceSheet(f *excelize.File, sheet string) error {
	const defaultSheet = "Sheet1"
	fresh := f.SheetCount == 1 && f.GetSheetName(0) == defaultSheet && sheet != defaultSheet

	tmp := sheet + "_new"
	if _, err := f.NewSheet(tmp); err != nil {
		return fmt.Errorf("creating sheet %s: %w", sheet, err)
	}
	if idx, _ := f.GetSheetIndex(sheet); idx >= 0 {
		if err := f.DeleteSheet(sheet); err != nil {
			return fmt.Errorf("removing old sheet %s: %w", sheet, err)
		}
	}
	if err := f.SetSheetName(tmp, sheet); err != nil {
		return fmt.Errorf("renaming sheet %s: %w", sheet, err)
	}
	if fresh {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("removing default sheet: %w", err)
		}
	}

	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("locating sheet %s: %w", sheet, err)
	}
	f.SetActiveSheet(idx)
	return nil
}

func styleHeader(f *excelize.File, sheet string, width int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(width, 1)
	if err != nil {
		return fmt.Errorf("addressing header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(width)
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	return nil
}
