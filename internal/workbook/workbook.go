// Package workbook holds the raw, untyped form of an uploaded spreadsheet and
// converts it from and to .xlsx files.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var ErrUnreadable = errors.New("workbook is not a readable .xlsx file")

// Workbook is an ordered set of named sheets.
type Workbook struct {
	Sheets []Sheet
}

// Sheet is a grid of cells; the first row is the header.
// Cells are nil (blank), string, float64, bool or time.Time.
type Sheet struct {
	Name string
	Rows [][]any
}

// Sheet looks a sheet up by exact name.
func (wb Workbook) Sheet(name string) (Sheet, bool) {
	for _, s := range wb.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return Sheet{}, false
}

// Names returns the sheet names in workbook order.
func (wb Workbook) Names() []string {
	names := make([]string, 0, len(wb.Sheets))
	for _, s := range wb.Sheets {
		names = append(names, s.Name)
	}
	return names
}

// ReadXLSX parses every sheet of an .xlsx stream. Numeric cells become
// float64 (dates stay as spreadsheet serial numbers), booleans become bool,
// everything else is kept as text. Empty cells are nil.
func ReadXLSX(r io.Reader) (Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Workbook{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	var wb Workbook
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return Workbook{}, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sheet := Sheet{Name: name, Rows: make([][]any, len(rows))}
		for i, row := range rows {
			cells := make([]any, len(row))
			for j, raw := range row {
				cells[j], err = typedCell(f, name, j+1, i+1, raw)
				if err != nil {
					return Workbook{}, err
				}
			}
			sheet.Rows[i] = cells
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func typedCell(f *excelize.File, sheet string, col, row int, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return nil, fmt.Errorf("cell type %s!%s: %w", sheet, ref, err)
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v, nil
		}
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t, nil
		}
	}
	return raw, nil
}

// WriteXLSX writes the workbook as an .xlsx stream, one worksheet per sheet.
func WriteXLSX(w io.Writer, wb Workbook) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const defaultSheet = "Sheet1"
	for _, s := range wb.Sheets {
		if s.Name == defaultSheet {
			continue
		}
		if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("create sheet %q: %w", s.Name, err)
		}
	}
	for _, s := range wb.Sheets {
		for i, row := range s.Rows {
			ref, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.Name, ref, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", s.Name, i+1, err)
			}
		}
	}
	if _, ok := wb.Sheet(defaultSheet); !ok && len(wb.Sheets) > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return err
		}
		f.SetActiveSheet(0)
	}
	_, err := f.WriteTo(w)
	return err
}
