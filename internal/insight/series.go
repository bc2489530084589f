// Package insight derives chart series and summary insights from a
// validated snapshot.
package insight

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"findash/internal/core"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrDivisionByZero   = errors.New("division by zero")
)

// InsufficientDataError reports a table with fewer rows than a computation needs.
type InsufficientDataError struct {
	Table string
	Need  int
	Have  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s has %d row(s), need at least %d", e.Table, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

func need(table string, have, n int) error {
	if have < n {
		return &InsufficientDataError{Table: table, Need: n, Have: have}
	}
	return nil
}

type (
	// NetWorthPoint is one point of the net worth line chart.
	NetWorthPoint struct {
		Date        core.Date       `json:"x"`
		Assets      decimal.Decimal `json:"assets"`
		Liabilities decimal.Decimal `json:"liabilities"`
		Net         decimal.Decimal `json:"net"`
	}

	// MonthAmount is the summed amount of one calendar month.
	MonthAmount struct {
		Month  core.YearMonth  `json:"month"`
		Amount decimal.Decimal `json:"amount"`
	}

	// CategoryAmount is the summed amount of one category.
	CategoryAmount struct {
		Category string          `json:"x"`
		Amount   decimal.Decimal `json:"y"`
	}

	// MonthlyComparison holds income and expenses on a shared month axis.
	MonthlyComparison struct {
		Months   []core.YearMonth  `json:"months"`
		Income   []decimal.Decimal `json:"income"`
		Expenses []decimal.Decimal `json:"expenses"`
	}

	// BudgetLine compares one budget category with its actual spending.
	BudgetLine struct {
		Category string          `json:"category"`
		Budget   decimal.Decimal `json:"budget"`
		Actual   decimal.Decimal `json:"actual"`
	}
)

// FilterByRange keeps rows dated on or after the range cutoff relative to
// now. MAX returns every row. Row order is preserved.
func FilterByRange[T core.Dated](rows []T, r core.Range, now time.Time) []T {
	cutoff, bounded := r.Cutoff(now)
	if !bounded {
		return slices.Clone(rows)
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if !row.RowDate().Before(cutoff.Time) {
			out = append(out, row)
		}
	}
	return out
}

// MonthlyAggregate sums amounts per calendar month after range filtering.
// Months without rows are absent; the result is sorted by month.
func MonthlyAggregate[T core.Amounted](rows []T, r core.Range, now time.Time) []MonthAmount {
	sums := make(map[core.YearMonth]decimal.Decimal)
	for _, row := range FilterByRange(rows, r, now) {
		ym := row.RowDate().YearMonth()
		sums[ym] = sums[ym].Add(row.RowAmount())
	}
	out := make([]MonthAmount, 0, len(sums))
	for ym, amount := range sums {
		out = append(out, MonthAmount{Month: ym, Amount: amount})
	}
	slices.SortFunc(out, func(a, b MonthAmount) int {
		switch {
		case a.Month.Before(b.Month):
			return -1
		case b.Month.Before(a.Month):
			return 1
		}
		return 0
	})
	return out
}

// sumByCategory sums amounts per category in first-encountered order.
func sumByCategory(rows []core.ExpenseRow) []CategoryAmount {
	index := make(map[string]int)
	var out []CategoryAmount
	for _, row := range rows {
		i, ok := index[row.Category]
		if !ok {
			i = len(out)
			index[row.Category] = i
			out = append(out, CategoryAmount{Category: row.Category})
		}
		out[i].Amount = out[i].Amount.Add(row.Amount)
	}
	return out
}

// monthActuals sums expenses per category within one month.
func monthActuals(rows []core.ExpenseRow, month core.YearMonth) map[string]decimal.Decimal {
	actual := make(map[string]decimal.Decimal)
	for _, row := range rows {
		if row.Date.YearMonth() == month {
			actual[row.Category] = actual[row.Category].Add(row.Amount)
		}
	}
	return actual
}
