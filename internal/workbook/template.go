package workbook

import (
	"io"
	"time"

	"findash/internal/core"
)

// Sample returns a small workbook with the four expected sheets, their
// headers and a few example records dated around now.
func Sample(now time.Time) Workbook {
	month := func(back int, day int) time.Time {
		y, m, _ := now.Date()
		return time.Date(y, m-time.Month(back), day, 0, 0, 0, 0, time.UTC)
	}
	return Workbook{Sheets: []Sheet{
		{Name: core.SheetNetWorth, Rows: [][]any{
			{"Date", "Assets", "Liabilities"},
			{month(2, 1), 10000.0, 2500.0},
			{month(1, 1), 10800.0, 2300.0},
			{month(0, 1), 11250.0, 2100.0},
		}},
		{Name: core.SheetIncome, Rows: [][]any{
			{"IncomeID", "Date", "Source", "Amount"},
			{1.0, month(1, 27), "Salary", 3200.0},
			{2.0, month(0, 27), "Salary", 3200.0},
			{3.0, month(0, 12), "Freelance", 450.0},
		}},
		{Name: core.SheetExpenses, Rows: [][]any{
			{"ExpenseID", "Date", "Category", "Description", "Amount"},
			{1.0, month(1, 3), "Rent", "Monthly rent", 1200.0},
			{2.0, month(1, 9), "Food", "Groceries", 310.5},
			{3.0, month(0, 3), "Rent", "Monthly rent", 1200.0},
			{4.0, month(0, 8), "Food", "Groceries", 285.2},
			{5.0, month(0, 14), "Transport", "Train pass", 79.0},
		}},
		{Name: core.SheetBudget, Rows: [][]any{
			{"Category", "BudgetAmount"},
			{"Rent", 1200.0},
			{"Food", 400.0},
			{"Transport", 60.0},
		}},
	}}
}

// WriteTemplate writes Sample(now) as an .xlsx stream.
func WriteTemplate(w io.Writer, now time.Time) error {
	return WriteXLSX(w, Sample(now))
}
