// Package validate checks a raw workbook against the four-sheet finance
// schema and converts it into typed, normalized tables.
//
// Checks run in stages and stop at the first failing stage: sheet presence,
// column presence, per-column type conformance (all offending columns are
// reported together) and key uniqueness. Validation is a pure function of
// its input.
package validate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"findash/internal/core"
	"findash/internal/workbook"
)

var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006/01/02",
	"02.01.2006",
}

var maxID = decimal.NewFromInt(math.MaxInt64)

type dataRow struct {
	num   int // 1-based among data rows
	cells []any
}

type frame struct {
	index map[string]int
	rows  []dataRow
}

type value struct {
	date core.Date
	num  decimal.Decimal
	text string
}

type record struct {
	row    int
	values map[string]value
}

// Validate checks wb and returns the normalized snapshot, or a nil snapshot
// and an error describing why the workbook was rejected. Type conformance
// failures are joined with errors.Join in sheet and column order.
func Validate(wb workbook.Workbook) (*core.Snapshot, error) {
	if err := checkSheets(wb); err != nil {
		return nil, err
	}

	frames := make([]frame, len(schema))
	for i, t := range schema {
		sheet, _ := wb.Sheet(t.sheet)
		f, err := locate(t, sheet)
		if err != nil {
			return nil, err
		}
		frames[i] = f
	}

	var errs []error
	tables := make([][]record, len(schema))
	for i, t := range schema {
		recs, tableErrs := parseTable(t, frames[i])
		tables[i] = recs
		errs = append(errs, tableErrs...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for i, t := range schema {
		if err := checkUnique(t, tables[i]); err != nil {
			return nil, err
		}
	}
	return build(tables), nil
}

func checkSheets(wb workbook.Workbook) error {
	var missing []string
	for _, t := range schema {
		if _, ok := wb.Sheet(t.sheet); !ok {
			missing = append(missing, t.sheet)
		}
	}
	if len(missing) > 0 {
		return &MissingSheetsError{Sheets: missing}
	}
	return nil
}

// locate maps required columns to their position in the header row and
// collects the data rows.
func locate(t table, sheet workbook.Sheet) (frame, error) {
	f := frame{index: make(map[string]int, len(t.columns))}
	var header []any
	if len(sheet.Rows) > 0 {
		header = sheet.Rows[0]
	}
	positions := make(map[string]int, len(header))
	for i, cell := range header {
		name := strings.TrimSpace(rawString(cell))
		if _, seen := positions[name]; !seen && name != "" {
			positions[name] = i
		}
	}

	var missing []string
	for _, c := range t.columns {
		pos, ok := positions[c.name]
		if !ok {
			missing = append(missing, c.name)
			continue
		}
		f.index[c.name] = pos
	}
	if len(missing) > 0 {
		return frame{}, &MissingColumnsError{Sheet: t.sheet, Columns: missing}
	}

	for i := 1; i < len(sheet.Rows); i++ {
		if blank(sheet.Rows[i]) {
			continue
		}
		f.rows = append(f.rows, dataRow{num: i, cells: sheet.Rows[i]})
	}
	return f, nil
}

func parseTable(t table, f frame) ([]record, []error) {
	recs := make([]record, len(f.rows))
	for i, r := range f.rows {
		recs[i] = record{row: r.num, values: make(map[string]value, len(t.columns))}
	}

	var errs []error
	for _, c := range t.columns {
		bad := CellError{Sheet: t.sheet, Column: c.name}
		for i, r := range f.rows {
			var cell any
			if pos := f.index[c.name]; pos < len(r.cells) {
				cell = r.cells[pos]
			}
			v, ok := parseCell(c.kind, cell)
			if !ok {
				bad.Rows = append(bad.Rows, r.num)
				bad.Values = append(bad.Values, rawString(cell))
				continue
			}
			recs[i].values[c.name] = v
		}
		if len(bad.Rows) == 0 {
			continue
		}
		switch c.kind {
		case kindDate:
			errs = append(errs, &InvalidDateError{bad})
		case kindText, kindKeyText:
			errs = append(errs, &InvalidTextError{bad})
		default:
			errs = append(errs, &InvalidNumericError{bad})
		}
	}
	return recs, errs
}

func parseCell(k kind, cell any) (value, bool) {
	switch k {
	case kindDate:
		d, ok := parseDate(cell)
		return value{date: d}, ok
	case kindNumber, kindNonNegative, kindInteger:
		n, ok := parseNumber(cell)
		if !ok {
			return value{}, false
		}
		if k == kindNonNegative && n.IsNegative() {
			return value{}, false
		}
		if k == kindInteger && (!n.IsInteger() || n.Abs().GreaterThan(maxID)) {
			return value{}, false
		}
		return value{num: n}, true
	default:
		var s string
		switch v := cell.(type) {
		case nil:
		case string:
			s = strings.TrimSpace(v)
		default:
			return value{}, false
		}
		if k == kindKeyText && s == "" {
			return value{}, false
		}
		return value{text: s}, true
	}
}

func parseDate(cell any) (core.Date, bool) {
	switch v := cell.(type) {
	case time.Time:
		return core.DateOf(v), !v.IsZero()
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 1 {
			return core.Date{}, false
		}
		t, err := excelize.ExcelDateToTime(v, false)
		if err != nil {
			return core.Date{}, false
		}
		return core.DateOf(t), true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return core.DateOf(t), true
			}
		}
	}
	return core.Date{}, false
}

func parseNumber(cell any) (decimal.Decimal, bool) {
	switch v := cell.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case string:
		d, err := core.ParseAmount(v)
		return d, err == nil
	}
	return decimal.Zero, false
}

func checkUnique(t table, recs []record) error {
	if t.key == "" {
		return nil
	}
	seen := make(map[string]int, len(recs))
	for _, r := range recs {
		v := r.values[t.key]
		key := v.text
		if key == "" {
			key = v.num.String()
		}
		if first, dup := seen[key]; dup {
			return &DuplicateKeyError{Sheet: t.sheet, Column: t.key, Value: key, Rows: []int{first, r.row}}
		}
		seen[key] = r.row
	}
	return nil
}

func build(tables [][]record) *core.Snapshot {
	netWorth := make([]core.NetWorthRow, 0, len(tables[0]))
	for _, r := range tables[0] {
		v := r.values
		netWorth = append(netWorth, core.NetWorthRow{
			Date:        v[ColDate].date,
			Assets:      v[ColAssets].num,
			Liabilities: v[ColLiabilities].num,
		})
	}
	income := make([]core.IncomeRow, 0, len(tables[1]))
	for _, r := range tables[1] {
		v := r.values
		income = append(income, core.IncomeRow{
			ID:     v[ColIncomeID].num.IntPart(),
			Date:   v[ColDate].date,
			Source: v[ColSource].text,
			Amount: v[ColAmount].num,
		})
	}
	expenses := make([]core.ExpenseRow, 0, len(tables[2]))
	for _, r := range tables[2] {
		v := r.values
		expenses = append(expenses, core.ExpenseRow{
			ID:          v[ColExpenseID].num.IntPart(),
			Date:        v[ColDate].date,
			Category:    v[ColCategory].text,
			Description: v[ColDescription].text,
			Amount:      v[ColAmount].num,
		})
	}
	budget := make([]core.BudgetRow, 0, len(tables[3]))
	for _, r := range tables[3] {
		v := r.values
		budget = append(budget, core.BudgetRow{
			Category: v[ColCategory].text,
			Amount:   v[ColBudgetAmount].num,
		})
	}
	return core.NewSnapshot(netWorth, income, expenses, budget)
}

func blank(cells []any) bool {
	for _, c := range cells {
		if strings.TrimSpace(rawString(c)) != "" {
			return false
		}
	}
	return true
}

func rawString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.DateOnly)
	default:
		return fmt.Sprint(v)
	}
}
