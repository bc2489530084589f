package validate

import "findash/internal/core"

type kind int

const (
	kindDate kind = iota
	kindNumber
	kindNonNegative
	kindInteger
	kindText
	kindKeyText // text that must not be blank
)

type column struct {
	name string
	kind kind
}

type table struct {
	sheet   string
	columns []column
	key     string // unique column, empty when none
}

// Column names of every table.
const (
	ColDate         = "Date"
	ColAssets       = "Assets"
	ColLiabilities  = "Liabilities"
	ColIncomeID     = "IncomeID"
	ColSource       = "Source"
	ColAmount       = "Amount"
	ColExpenseID    = "ExpenseID"
	ColCategory     = "Category"
	ColDescription  = "Description"
	ColBudgetAmount = "BudgetAmount"
)

// schema lists the tables in canonical order; error reporting follows it.
var schema = []table{
	{
		sheet: core.SheetNetWorth,
		columns: []column{
			{ColDate, kindDate},
			{ColAssets, kindNonNegative},
			{ColLiabilities, kindNonNegative},
		},
	},
	{
		sheet: core.SheetIncome,
		columns: []column{
			{ColIncomeID, kindInteger},
			{ColDate, kindDate},
			{ColSource, kindText},
			{ColAmount, kindNumber},
		},
		key: ColIncomeID,
	},
	{
		sheet: core.SheetExpenses,
		columns: []column{
			{ColExpenseID, kindInteger},
			{ColDate, kindDate},
			{ColCategory, kindText},
			{ColDescription, kindText},
			{ColAmount, kindNumber},
		},
		key: ColExpenseID,
	},
	{
		sheet: core.SheetBudget,
		columns: []column{
			{ColCategory, kindKeyText},
			{ColBudgetAmount, kindNonNegative},
		},
		key: ColCategory,
	},
}

// Sheets returns the required sheet names in canonical order.
func Sheets() []string {
	names := make([]string, len(schema))
	for i, t := range schema {
		names[i] = t.sheet
	}
	return names
}

// Columns returns the required columns of a sheet, or nil for unknown sheets.
func Columns(sheet string) []string {
	for _, t := range schema {
		if t.sheet == sheet {
			cols := make([]string, len(t.columns))
			for i, c := range t.columns {
				cols[i] = c.name
			}
			return cols
		}
	}
	return nil
}
