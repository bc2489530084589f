package insight

import (
	"cmp"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"findash/internal/core"
)

// Trend is the direction of the latest net worth change.
type Trend string

const (
	TrendPositive Trend = "positive"
	TrendNegative Trend = "negative"
	TrendFlat     Trend = "flat"
)

const topExpenseCount = 3

// Engine computes insights over one immutable snapshot.
type Engine struct {
	snap *core.Snapshot
	now  func() time.Time
}

type Option func(*Engine)

// WithClock overrides the wall clock used for ranges and the current month.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine for snap. A nil snapshot fails with core.ErrNoSnapshot.
func New(snap *core.Snapshot, opts ...Option) (*Engine, error) {
	if snap == nil {
		return nil, core.ErrNoSnapshot
	}
	e := &Engine{snap: snap, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Now returns the engine's notion of the current time.
func (e *Engine) Now() time.Time { return e.now() }

// NetWorthSeries returns the net worth points within the range, in file order.
func (e *Engine) NetWorthSeries(r core.Range) ([]NetWorthPoint, error) {
	rows := e.snap.NetWorth()
	if err := need(core.SheetNetWorth, len(rows), 1); err != nil {
		return nil, err
	}
	filtered := FilterByRange(rows, r, e.now())
	out := make([]NetWorthPoint, len(filtered))
	for i, row := range filtered {
		out[i] = NetWorthPoint{Date: row.Date, Assets: row.Assets, Liabilities: row.Liabilities, Net: row.Net()}
	}
	return out, nil
}

func (e *Engine) MonthlyIncome(r core.Range) ([]MonthAmount, error) {
	rows := e.snap.Income()
	if err := need(core.SheetIncome, len(rows), 1); err != nil {
		return nil, err
	}
	return MonthlyAggregate(rows, r, e.now()), nil
}

func (e *Engine) MonthlyExpenses(r core.Range) ([]MonthAmount, error) {
	rows := e.snap.Expenses()
	if err := need(core.SheetExpenses, len(rows), 1); err != nil {
		return nil, err
	}
	return MonthlyAggregate(rows, r, e.now()), nil
}

// IncomeVsExpenses aligns monthly income and expenses on the union of their
// months, filling zero where one side has no rows.
func (e *Engine) IncomeVsExpenses(r core.Range) (MonthlyComparison, error) {
	income, err := e.MonthlyIncome(r)
	if err != nil {
		return MonthlyComparison{}, err
	}
	expenses, err := e.MonthlyExpenses(r)
	if err != nil {
		return MonthlyComparison{}, err
	}

	var out MonthlyComparison
	i, j := 0, 0
	for i < len(income) || j < len(expenses) {
		switch {
		case j == len(expenses) || (i < len(income) && income[i].Month.Before(expenses[j].Month)):
			out.add(income[i].Month, income[i].Amount, decimal.Zero)
			i++
		case i == len(income) || expenses[j].Month.Before(income[i].Month):
			out.add(expenses[j].Month, decimal.Zero, expenses[j].Amount)
			j++
		default:
			out.add(income[i].Month, income[i].Amount, expenses[j].Amount)
			i++
			j++
		}
	}
	return out, nil
}

func (c *MonthlyComparison) add(ym core.YearMonth, income, expenses decimal.Decimal) {
	c.Months = append(c.Months, ym)
	c.Income = append(c.Income, income)
	c.Expenses = append(c.Expenses, expenses)
}

// CategoryBreakdown sums expenses per category within the range.
func (e *Engine) CategoryBreakdown(r core.Range) ([]CategoryAmount, error) {
	rows := e.snap.Expenses()
	if err := need(core.SheetExpenses, len(rows), 1); err != nil {
		return nil, err
	}
	return sumByCategory(FilterByRange(rows, r, e.now())), nil
}

// BudgetVsActual returns one line per budget category, restricted to
// selected when it is non-empty. Expense categories without a budget row
// are not reported.
func (e *Engine) BudgetVsActual(selected []string, month core.YearMonth) ([]BudgetLine, error) {
	budget := e.snap.Budget()
	if err := need(core.SheetBudget, len(budget), 1); err != nil {
		return nil, err
	}
	actual := monthActuals(e.snap.Expenses(), month)
	out := make([]BudgetLine, 0, len(budget))
	for _, b := range budget {
		if len(selected) > 0 && !slices.Contains(selected, b.Category) {
			continue
		}
		out = append(out, BudgetLine{Category: b.Category, Budget: b.Amount, Actual: actual[b.Category]})
	}
	return out, nil
}

// Categories lists distinct expense categories in first-encountered order.
func (e *Engine) Categories() []string {
	var out []string
	seen := make(map[string]bool)
	for _, row := range e.snap.Expenses() {
		if !seen[row.Category] {
			seen[row.Category] = true
			out = append(out, row.Category)
		}
	}
	return out
}

type (
	// Panel carries one insight value or the reason it could not be computed.
	Panel[T any] struct {
		Value T
		Err   error
	}

	NetWorthInsight struct {
		Current   decimal.Decimal `json:"current"`
		Previous  decimal.Decimal `json:"previous"`
		ChangePct decimal.Decimal `json:"change_pct"`
		Trend     Trend           `json:"trend"`
	}

	MonthlyInsight struct {
		Month       core.YearMonth  `json:"month"`
		Income      decimal.Decimal `json:"income"`
		Expenses    decimal.Decimal `json:"expenses"`
		SavingsRate decimal.Decimal `json:"savings_rate"`
	}

	BudgetWarning struct {
		Category  string          `json:"category"`
		Budget    decimal.Decimal `json:"budget"`
		Actual    decimal.Decimal `json:"actual"`
		Overspend decimal.Decimal `json:"overspend"`
	}

	// Report bundles the dashboard insight panels. A failing panel never
	// hides the others.
	Report struct {
		NetWorth       Panel[NetWorthInsight]  `json:"net_worth"`
		Monthly        Panel[MonthlyInsight]   `json:"monthly"`
		TopExpenses    Panel[[]CategoryAmount] `json:"top_expenses"`
		BudgetWarnings Panel[[]BudgetWarning]  `json:"budget_warnings"`
	}
)

type panelError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// MarshalJSON renders {"value":...,"error":{"reason":...,"message":...}}.
func (p Panel[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		Value T           `json:"value"`
		Error *panelError `json:"error,omitempty"`
	}{Value: p.Value}
	if p.Err != nil {
		out.Error = &panelError{Reason: Reason(p.Err), Message: p.Err.Error()}
	}
	return json.Marshal(out)
}

// Reason maps an insight error to a stable machine-readable code.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(err, core.ErrNoSnapshot):
		return "no_snapshot"
	}
	return "error"
}

// CalculateInsights computes every panel against the current month.
func (e *Engine) CalculateInsights() Report {
	month := core.MonthOf(e.now())
	var rep Report
	rep.NetWorth.Value, rep.NetWorth.Err = e.netWorthInsight()
	rep.Monthly.Value, rep.Monthly.Err = e.monthlyInsight(month)
	rep.TopExpenses.Value, rep.TopExpenses.Err = e.topExpenses()
	rep.BudgetWarnings.Value, rep.BudgetWarnings.Err = e.budgetWarnings(month)
	return rep
}

// netWorthInsight compares the last two rows in file order.
func (e *Engine) netWorthInsight() (NetWorthInsight, error) {
	rows := e.snap.NetWorth()
	if err := need(core.SheetNetWorth, len(rows), 2); err != nil {
		if len(rows) == 1 {
			return NetWorthInsight{Current: rows[0].Net()}, err
		}
		return NetWorthInsight{}, err
	}
	cur, prev := rows[len(rows)-1].Net(), rows[len(rows)-2].Net()
	out := NetWorthInsight{Current: cur, Previous: prev}
	if prev.IsZero() {
		return out, ErrDivisionByZero
	}
	out.ChangePct = core.Percent(cur.Sub(prev), prev)
	switch out.ChangePct.Sign() {
	case 1:
		out.Trend = TrendPositive
	case -1:
		out.Trend = TrendNegative
	default:
		out.Trend = TrendFlat
	}
	return out, nil
}

func (e *Engine) monthlyInsight(month core.YearMonth) (MonthlyInsight, error) {
	income, expenses := e.snap.Income(), e.snap.Expenses()
	if err := need(core.SheetIncome, len(income), 1); err != nil {
		return MonthlyInsight{Month: month}, err
	}
	if err := need(core.SheetExpenses, len(expenses), 1); err != nil {
		return MonthlyInsight{Month: month}, err
	}
	out := MonthlyInsight{Month: month}
	for _, row := range income {
		if row.Date.YearMonth() == month {
			out.Income = out.Income.Add(row.Amount)
		}
	}
	for _, row := range expenses {
		if row.Date.YearMonth() == month {
			out.Expenses = out.Expenses.Add(row.Amount)
		}
	}
	if out.Income.IsPositive() {
		out.SavingsRate = core.Percent(out.Income.Sub(out.Expenses), out.Income)
	}
	return out, nil
}

func (e *Engine) topExpenses() ([]CategoryAmount, error) {
	rows := e.snap.Expenses()
	if err := need(core.SheetExpenses, len(rows), 1); err != nil {
		return nil, err
	}
	sums := sumByCategory(rows)
	// stable sort keeps first-encountered order among ties
	slices.SortStableFunc(sums, func(a, b CategoryAmount) int {
		return cmp.Compare(0, a.Amount.Cmp(b.Amount))
	})
	return sums[:min(topExpenseCount, len(sums))], nil
}

func (e *Engine) budgetWarnings(month core.YearMonth) ([]BudgetWarning, error) {
	budget := e.snap.Budget()
	if err := need(core.SheetBudget, len(budget), 1); err != nil {
		return nil, err
	}
	actual := monthActuals(e.snap.Expenses(), month)
	out := []BudgetWarning{}
	for _, b := range budget {
		spent := actual[b.Category]
		if spent.GreaterThan(b.Amount) {
			out = append(out, BudgetWarning{
				Category:  b.Category,
				Budget:    b.Amount,
				Actual:    spent,
				Overspend: spent.Sub(b.Amount),
			})
		}
	}
	return out, nil
}
