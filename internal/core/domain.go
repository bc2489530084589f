package core

import (
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Sheet names of an uploaded workbook.
const (
	SheetNetWorth = "Net Worth Table"
	SheetIncome   = "Income Table"
	SheetExpenses = "Expenses Table"
	SheetBudget   = "Budget Table"
)

// SheetNames lists the required sheets in canonical order.
var SheetNames = []string{SheetNetWorth, SheetIncome, SheetExpenses, SheetBudget}

type (
	Date struct {
		time.Time
	}

	NetWorthRow struct {
		Date        Date
		Assets      decimal.Decimal
		Liabilities decimal.Decimal
	}

	IncomeRow struct {
		ID     int64
		Date   Date
		Source string
		Amount decimal.Decimal
	}

	ExpenseRow struct {
		ID          int64
		Date        Date
		Category    string
		Description string
		Amount      decimal.Decimal
	}

	BudgetRow struct {
		Category string
		Amount   decimal.Decimal
	}

	// TableCounts reports the number of rows per table of a snapshot.
	TableCounts struct {
		NetWorth int `json:"net_worth"`
		Income   int `json:"income"`
		Expenses int `json:"expenses"`
		Budget   int `json:"budget"`
	}
)

// Dated is implemented by rows carrying a calendar date.
type Dated interface {
	RowDate() Date
}

// Amounted is implemented by dated rows carrying a summable amount.
type Amounted interface {
	Dated
	RowAmount() decimal.Decimal
}

var ErrNoSnapshot = errors.New("no validated workbook loaded")

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// MarshalText keeps JSON output at day granularity.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

func (r NetWorthRow) RowDate() Date { return r.Date }

// Net is recomputed on every call and never stored.
func (r NetWorthRow) Net() decimal.Decimal { return r.Assets.Sub(r.Liabilities) }

func (r IncomeRow) RowDate() Date               { return r.Date }
func (r IncomeRow) RowAmount() decimal.Decimal  { return r.Amount }
func (r ExpenseRow) RowDate() Date              { return r.Date }
func (r ExpenseRow) RowAmount() decimal.Decimal { return r.Amount }

// Snapshot is the immutable set of four validated tables produced by one
// successful workbook upload. Accessors return copies.
type Snapshot struct {
	netWorth []NetWorthRow
	income   []IncomeRow
	expenses []ExpenseRow
	budget   []BudgetRow
}

// NewSnapshot copies the given tables into a new snapshot.
func NewSnapshot(netWorth []NetWorthRow, income []IncomeRow, expenses []ExpenseRow, budget []BudgetRow) *Snapshot {
	return &Snapshot{
		netWorth: slices.Clone(netWorth),
		income:   slices.Clone(income),
		expenses: slices.Clone(expenses),
		budget:   slices.Clone(budget),
	}
}

func (s *Snapshot) NetWorth() []NetWorthRow { return slices.Clone(s.netWorth) }
func (s *Snapshot) Income() []IncomeRow     { return slices.Clone(s.income) }
func (s *Snapshot) Expenses() []ExpenseRow  { return slices.Clone(s.expenses) }
func (s *Snapshot) Budget() []BudgetRow     { return slices.Clone(s.budget) }

func (s *Snapshot) Counts() TableCounts {
	return TableCounts{
		NetWorth: len(s.netWorth),
		Income:   len(s.income),
		Expenses: len(s.expenses),
		Budget:   len(s.budget),
	}
}
