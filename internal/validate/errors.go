package validate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Reasons reported by Diagnostic.Reason.
const (
	ReasonMissingSheets  = "missing_sheets"
	ReasonMissingColumns = "missing_columns"
	ReasonInvalidNumeric = "invalid_numeric"
	ReasonInvalidDate    = "invalid_date"
	ReasonInvalidText    = "invalid_text"
	ReasonDuplicateKey   = "duplicate_key"
)

// Diagnostic is implemented by every validation error.
type Diagnostic interface {
	error
	Reason() string
	Detail() map[string]any
}

// MissingSheetsError lists every absent sheet in canonical order.
type MissingSheetsError struct {
	Sheets []string
}

func (e *MissingSheetsError) Error() string {
	return "missing sheets: " + quoteAll(e.Sheets)
}

func (e *MissingSheetsError) Reason() string { return ReasonMissingSheets }

func (e *MissingSheetsError) Detail() map[string]any {
	return map[string]any{"sheets": e.Sheets}
}

// MissingColumnsError lists the missing columns of one sheet.
type MissingColumnsError struct {
	Sheet   string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("sheet %q is missing columns %s", e.Sheet, quoteAll(e.Columns))
}

func (e *MissingColumnsError) Reason() string { return ReasonMissingColumns }

func (e *MissingColumnsError) Detail() map[string]any {
	return map[string]any{"sheet": e.Sheet, "columns": e.Columns}
}

// CellError locates offending cells of one column. Rows are 1-based data
// row positions (the header is not counted) and Values holds the raw
// content of each offending cell.
type CellError struct {
	Sheet  string
	Column string
	Rows   []int
	Values []string
}

func (e CellError) describe(what string) string {
	cells := make([]string, len(e.Rows))
	for i, row := range e.Rows {
		cells[i] = fmt.Sprintf("row %d (%q)", row, e.Values[i])
	}
	return fmt.Sprintf("sheet %q column %q: %s at %s", e.Sheet, e.Column, what, strings.Join(cells, ", "))
}

func (e CellError) detail() map[string]any {
	return map[string]any{"sheet": e.Sheet, "column": e.Column, "rows": e.Rows, "values": e.Values}
}

// InvalidNumericError reports cells that are not finite numbers, negative
// where the column forbids it, or fractional in an ID column.
type InvalidNumericError struct{ CellError }

func (e *InvalidNumericError) Error() string          { return e.describe("invalid number") }
func (e *InvalidNumericError) Reason() string         { return ReasonInvalidNumeric }
func (e *InvalidNumericError) Detail() map[string]any { return e.detail() }

// InvalidDateError reports cells that do not parse to a calendar date.
type InvalidDateError struct{ CellError }

func (e *InvalidDateError) Error() string          { return e.describe("invalid date") }
func (e *InvalidDateError) Reason() string         { return ReasonInvalidDate }
func (e *InvalidDateError) Detail() map[string]any { return e.detail() }

// InvalidTextError reports non-text values in a text column and blank keys.
type InvalidTextError struct{ CellError }

func (e *InvalidTextError) Error() string          { return e.describe("invalid text") }
func (e *InvalidTextError) Reason() string         { return ReasonInvalidText }
func (e *InvalidTextError) Detail() map[string]any { return e.detail() }

// DuplicateKeyError reports the first repeated key and both rows holding it.
type DuplicateKeyError struct {
	Sheet  string
	Column string
	Value  string
	Rows   []int
}

func (e *DuplicateKeyError) Error() string {
	rows := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		rows[i] = strconv.Itoa(r)
	}
	return fmt.Sprintf("sheet %q column %q: duplicate key %q at rows %s", e.Sheet, e.Column, e.Value, strings.Join(rows, ", "))
}

func (e *DuplicateKeyError) Reason() string { return ReasonDuplicateKey }

func (e *DuplicateKeyError) Detail() map[string]any {
	return map[string]any{"sheet": e.Sheet, "column": e.Column, "value": e.Value, "rows": e.Rows}
}

// Diagnostics flattens a validation error into its individual diagnostics,
// preserving order. Errors that are not validation errors yield nil.
func Diagnostics(err error) []Diagnostic {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []Diagnostic
		for _, e := range joined.Unwrap() {
			out = append(out, Diagnostics(e)...)
		}
		return out
	}
	var d Diagnostic
	if errors.As(err, &d) {
		return []Diagnostic{d}
	}
	return nil
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = strconv.Quote(n)
	}
	return strings.Join(q, ", ")
}
