package insight

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"findash/internal/core"
)

var now = time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixedClock() time.Time { return now }

func newEngine(t *testing.T, snap *core.Snapshot) *Engine {
	t.Helper()
	e, err := New(snap, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func sampleExpenses() []core.ExpenseRow {
	return []core.ExpenseRow{
		{ID: 1, Date: core.NewDate(2024, 2, 10), Category: "Travel", Amount: dec("900")},
		{ID: 2, Date: core.NewDate(2024, 11, 5), Category: "Rent", Amount: dec("1200")},
		{ID: 3, Date: core.NewDate(2025, 1, 8), Category: "Food", Amount: dec("210.40")},
		{ID: 4, Date: core.NewDate(2025, 2, 20), Category: "Rent", Amount: dec("1200")},
		{ID: 5, Date: core.NewDate(2025, 3, 2), Category: "Food", Amount: dec("400")},
		{ID: 6, Date: core.NewDate(2025, 3, 15), Category: "Food", Amount: dec("250")},
		{ID: 7, Date: core.NewDate(2025, 3, 16), Category: "Fun", Amount: dec("30")},
	}
}

func TestNewRejectsNilSnapshot(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, core.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestNetWorthChange(t *testing.T) {
	snap := core.NewSnapshot([]core.NetWorthRow{
		{Date: core.NewDate(2025, 1, 31), Assets: dec("1000"), Liabilities: dec("200")},
		{Date: core.NewDate(2025, 2, 28), Assets: dec("1100"), Liabilities: dec("150")},
	}, nil, nil, nil)
	rep := newEngine(t, snap).CalculateInsights()
	if rep.NetWorth.Err != nil {
		t.Fatalf("unexpected error: %v", rep.NetWorth.Err)
	}
	got := rep.NetWorth.Value
	if !got.Current.Equal(dec("950")) || !got.Previous.Equal(dec("800")) || !got.ChangePct.Equal(dec("18.75")) || got.Trend != TrendPositive {
		t.Fatalf("unexpected net worth insight %+v", got)
	}
}

// netRow builds a row whose net equals net, moving negatives into liabilities.
func netRow(d core.Date, net string) core.NetWorthRow {
	n := dec(net)
	if n.IsNegative() {
		return core.NetWorthRow{Date: d, Assets: decimal.Zero, Liabilities: n.Neg()}
	}
	return core.NetWorthRow{Date: d, Assets: n}
}

func TestNetWorthUsesFileOrderAndTrend(t *testing.T) {
	cases := []struct {
		name  string
		prev  string
		cur   string
		trend Trend
		err   error
	}{
		{"negative", "1000", "900", TrendNegative, nil},
		{"flat", "500", "500", TrendFlat, nil},
		{"zero previous", "0", "100", "", ErrDivisionByZero},
		// net rises from -100 to -50 but the percentage change is -50
		{"negative previous", "-100", "-50", TrendNegative, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// later date first: file order wins over date order
			snap := core.NewSnapshot([]core.NetWorthRow{
				netRow(core.NewDate(2025, 3, 1), tc.prev),
				netRow(core.NewDate(2025, 1, 1), tc.cur),
			}, nil, nil, nil)
			p := newEngine(t, snap).CalculateInsights().NetWorth
			if !errors.Is(p.Err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, p.Err)
			}
			if p.Value.Trend != tc.trend || !p.Value.Current.Equal(dec(tc.cur)) {
				t.Fatalf("unexpected value %+v", p.Value)
			}
		})
	}
}

func TestNetWorthNeedsTwoRows(t *testing.T) {
	snap := core.NewSnapshot([]core.NetWorthRow{{Date: core.NewDate(2025, 1, 1), Assets: dec("10")}}, nil, nil, nil)
	p := newEngine(t, snap).CalculateInsights().NetWorth
	var e *InsufficientDataError
	if !errors.As(p.Err, &e) || !errors.Is(p.Err, ErrInsufficientData) {
		t.Fatalf("expected InsufficientDataError, got %v", p.Err)
	}
	if e.Table != core.SheetNetWorth || e.Need != 2 || e.Have != 1 {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestBudgetWarnings(t *testing.T) {
	snap := core.NewSnapshot(nil, nil, sampleExpenses(), []core.BudgetRow{
		{Category: "Food", Amount: dec("500")},
		{Category: "Rent", Amount: dec("1200")},
	})
	p := newEngine(t, snap).CalculateInsights().BudgetWarnings
	if p.Err != nil {
		t.Fatalf("unexpected error: %v", p.Err)
	}
	want := []BudgetWarning{{Category: "Food", Budget: dec("500"), Actual: dec("650"), Overspend: dec("150")}}
	if len(p.Value) != 1 {
		t.Fatalf("expected one warning, got %+v", p.Value)
	}
	got := p.Value[0]
	if got.Category != want[0].Category || !got.Actual.Equal(want[0].Actual) || !got.Overspend.Equal(want[0].Overspend) {
		t.Fatalf("expected %+v, got %+v", want[0], got)
	}
}

func TestSavingsRate(t *testing.T) {
	cases := []struct {
		name   string
		income string
		want   string
	}{
		{"zero income", "0", "0"},
		{"negative income", "-100", "0"},
		{"positive", "2000", "66"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			income := []core.IncomeRow{{ID: 1, Date: core.NewDate(2025, 3, 1), Source: "Job", Amount: dec(tc.income)}}
			snap := core.NewSnapshot(nil, income, sampleExpenses(), nil)
			p := newEngine(t, snap).CalculateInsights().Monthly
			if p.Err != nil {
				t.Fatalf("unexpected error: %v", p.Err)
			}
			if !p.Value.SavingsRate.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, p.Value.SavingsRate)
			}
			if !p.Value.Expenses.Equal(dec("680")) {
				t.Fatalf("expected current month expenses 680, got %s", p.Value.Expenses)
			}
		})
	}
}

func TestPanelsFailIndependently(t *testing.T) {
	snap := core.NewSnapshot(nil, nil, sampleExpenses(), nil)
	rep := newEngine(t, snap).CalculateInsights()
	for name, err := range map[string]error{
		"net worth": rep.NetWorth.Err,
		"monthly":   rep.Monthly.Err,
		"budget":    rep.BudgetWarnings.Err,
	} {
		if !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("%s: expected insufficient data, got %v", name, err)
		}
	}
	if rep.TopExpenses.Err != nil {
		t.Fatalf("top expenses should succeed: %v", rep.TopExpenses.Err)
	}
}

func TestTopExpenses(t *testing.T) {
	rows := append(sampleExpenses(), core.ExpenseRow{ID: 8, Date: core.NewDate(2025, 3, 1), Category: "Gifts", Amount: dec("860.40")})
	snap := core.NewSnapshot(nil, nil, rows, nil)
	p := newEngine(t, snap).CalculateInsights().TopExpenses
	var got []string
	for _, c := range p.Value {
		got = append(got, c.Category+"="+c.Amount.String())
	}
	// Food and Gifts tie at 860.4; Food was encountered first
	want := []string{"Rent=2400", "Travel=900", "Food=860.4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFilterByRangeIsNested(t *testing.T) {
	rows := sampleExpenses()
	prev := -1
	var prevIDs map[int64]bool
	for _, r := range core.Ranges {
		got := FilterByRange(rows, r, now)
		if len(got) < prev {
			t.Fatalf("%s: range shrank from %d to %d rows", r, prev, len(got))
		}
		ids := make(map[int64]bool, len(got))
		for _, row := range got {
			ids[row.ID] = true
		}
		for id := range prevIDs {
			if !ids[id] {
				t.Fatalf("%s: lost row %d kept by narrower range", r, id)
			}
		}
		prev, prevIDs = len(got), ids
	}
	if n := len(FilterByRange(rows, core.RangeMax, now)); n != len(rows) {
		t.Fatalf("MAX must keep every row, got %d", n)
	}
}

func TestFilterByRangeBoundaryIsInclusive(t *testing.T) {
	rows := []core.ExpenseRow{
		{ID: 1, Date: core.NewDate(2025, 2, 19)},
		{ID: 2, Date: core.NewDate(2025, 2, 20)},
	}
	got := FilterByRange(rows, core.Range1M, now)
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected only the boundary row, got %+v", got)
	}
}

func TestMonthlyAggregateConservesTotals(t *testing.T) {
	rows := sampleExpenses()
	for _, r := range core.Ranges {
		months := MonthlyAggregate(rows, r, now)
		total := decimal.Zero
		for i, m := range months {
			total = total.Add(m.Amount)
			if i > 0 && !months[i-1].Month.Before(m.Month) {
				t.Fatalf("%s: months not ascending", r)
			}
		}
		want := decimal.Zero
		for _, row := range FilterByRange(rows, r, now) {
			want = want.Add(row.Amount)
		}
		if !total.Equal(want) {
			t.Fatalf("%s: expected total %s, got %s", r, want, total)
		}
	}
}

func TestIncomeVsExpensesFillsGaps(t *testing.T) {
	income := []core.IncomeRow{
		{ID: 1, Date: core.NewDate(2025, 1, 25), Amount: dec("3000")},
		{ID: 2, Date: core.NewDate(2025, 3, 25), Amount: dec("3100")},
	}
	snap := core.NewSnapshot(nil, income, sampleExpenses(), nil)
	got, err := newEngine(t, snap).IncomeVsExpenses(core.Range3M)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var months []string
	for _, m := range got.Months {
		months = append(months, m.String())
	}
	if want := []string{"2025-01", "2025-02", "2025-03"}; !reflect.DeepEqual(months, want) {
		t.Fatalf("expected %v, got %v", want, months)
	}
	if !got.Income[1].IsZero() || !got.Expenses[1].Equal(dec("1200")) {
		t.Fatalf("unexpected february values %s / %s", got.Income[1], got.Expenses[1])
	}
}

func TestBudgetVsActualCoversEveryBudgetRow(t *testing.T) {
	budget := []core.BudgetRow{
		{Category: "Food", Amount: dec("500")},
		{Category: "Pets", Amount: dec("50")},
		{Category: "Rent", Amount: dec("1200")},
	}
	e := newEngine(t, core.NewSnapshot(nil, nil, sampleExpenses(), budget))
	march := core.YearMonth{Year: 2025, Month: time.March}

	lines, err := e.BudgetVsActual(nil, march)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != len(budget) {
		t.Fatalf("expected %d lines, got %d", len(budget), len(lines))
	}
	for i, l := range lines {
		if l.Category != budget[i].Category {
			t.Fatalf("line %d: expected %s, got %s", i, budget[i].Category, l.Category)
		}
	}
	if !lines[1].Actual.IsZero() || !lines[0].Actual.Equal(dec("650")) {
		t.Fatalf("unexpected actuals %+v", lines)
	}

	lines, _ = e.BudgetVsActual([]string{"Rent", "Fun"}, march)
	if len(lines) != 1 || lines[0].Category != "Rent" {
		t.Fatalf("expected only Rent, got %+v", lines)
	}

	empty := newEngine(t, core.NewSnapshot(nil, nil, sampleExpenses(), nil))
	if _, err := empty.BudgetVsActual(nil, march); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestCategoryBreakdownAndCategories(t *testing.T) {
	e := newEngine(t, core.NewSnapshot(nil, nil, sampleExpenses(), nil))
	got, err := e.CategoryBreakdown(core.Range1M)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0].Category != "Rent" || got[1].Category != "Food" || !got[1].Amount.Equal(dec("650")) || got[2].Category != "Fun" {
		t.Fatalf("unexpected breakdown %+v", got)
	}
	if cats := e.Categories(); !reflect.DeepEqual(cats, []string{"Travel", "Rent", "Food", "Fun"}) {
		t.Fatalf("unexpected categories %v", cats)
	}
}

func TestNetWorthSeries(t *testing.T) {
	snap := core.NewSnapshot([]core.NetWorthRow{
		{Date: core.NewDate(2024, 1, 1), Assets: dec("10"), Liabilities: dec("4")},
		{Date: core.NewDate(2025, 3, 1), Assets: dec("20"), Liabilities: dec("5")},
	}, nil, nil, nil)
	e := newEngine(t, snap)
	pts, err := e.NetWorthSeries(core.Range1Y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts) != 1 || !pts[0].Net.Equal(dec("15")) {
		t.Fatalf("unexpected series %+v", pts)
	}
	empty := newEngine(t, core.NewSnapshot(nil, nil, nil, nil))
	if _, err := empty.NetWorthSeries(core.RangeMax); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestReportJSON(t *testing.T) {
	snap := core.NewSnapshot(nil, nil, sampleExpenses(), nil)
	b, err := json.Marshal(newEngine(t, snap).CalculateInsights())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"net_worth":{`, `"reason":"insufficient_data"`, `"top_expenses":{"value":[{"x":"Rent","y":"2400"}`} {
		if !strings.Contains(s, want) {
			t.Fatalf("expected %s in %s", want, s)
		}
	}
}
