package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"findash/internal/core"
	"findash/internal/insight"
	"findash/internal/validate"
	"findash/internal/workbook"
)

// loadWorkbook reads and validates the .xlsx file at name.
func loadWorkbook(name string) (*core.Snapshot, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wb, err := workbook.ReadXLSX(f)
	if err != nil {
		return nil, err
	}
	return validate.Validate(wb)
}

type validateCmd struct{}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "check a workbook against the expected sheets and columns" }
func (*validateCmd) Usage() string {
	return `findash-cli validate <file.xlsx>

  Prints the row counts of a valid workbook, or every problem found.
`
}
func (*validateCmd) SetFlags(*flag.FlagSet) {}

func (*validateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one workbook file.")
		return subcommands.ExitUsageError
	}
	snap, err := loadWorkbook(f.Arg(0))
	if err != nil {
		printDiagnostics(os.Stderr, err)
		return subcommands.ExitFailure
	}
	c := snap.Counts()
	fmt.Printf("OK: %d net worth, %d income, %d expense and %d budget rows\n",
		c.NetWorth, c.Income, c.Expenses, c.Budget)
	return subcommands.ExitSuccess
}

func printDiagnostics(w io.Writer, err error) {
	diags := validate.Diagnostics(err)
	if len(diags) == 0 {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, "Invalid workbook:")
	for _, d := range diags {
		fmt.Fprintf(w, "  [%s] %v\n", d.Reason(), d)
	}
}

type insightsCmd struct {
	now      string
	currency string
}

func (*insightsCmd) Name() string     { return "insights" }
func (*insightsCmd) Synopsis() string { return "print the dashboard insights of a workbook" }
func (*insightsCmd) Usage() string {
	return `findash-cli insights [-now YYYY-MM-DD] [-currency EUR] <file.xlsx>

  Computes the net worth change, the monthly savings rate, the top expenses
  and the budget warnings as the dashboard would show them.
`
}

func (c *insightsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.now, "now", "", "Reference date. Defaults to today.")
	f.StringVar(&c.currency, "currency", envOr("CURRENCY", "EUR"), "ISO 4217 code used to format amounts.")
}

func (c *insightsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected exactly one workbook file.")
		return subcommands.ExitUsageError
	}
	now := time.Now()
	if c.now != "" {
		t, err := time.Parse(time.DateOnly, c.now)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -now: %v\n", err)
			return subcommands.ExitUsageError
		}
		now = t
	}

	snap, err := loadWorkbook(f.Arg(0))
	if err != nil {
		printDiagnostics(os.Stderr, err)
		return subcommands.ExitFailure
	}
	eng, err := insight.New(snap, insight.WithClock(func() time.Time { return now }))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	printReport(os.Stdout, eng.CalculateInsights(), strings.ToUpper(c.currency))
	return subcommands.ExitSuccess
}

func printReport(w io.Writer, rep insight.Report, currency string) {
	fmt.Fprintln(w, "Net worth")
	if err := rep.NetWorth.Err; err != nil && !errors.Is(err, insight.ErrDivisionByZero) {
		fmt.Fprintf(w, "  unavailable: %v\n", err)
	} else {
		v := rep.NetWorth.Value
		fmt.Fprintf(w, "  current  %s\n", core.FormatMoney(v.Current, currency))
		fmt.Fprintf(w, "  previous %s\n", core.FormatMoney(v.Previous, currency))
		if err != nil {
			fmt.Fprintf(w, "  change   n/a (%v)\n", err)
		} else {
			fmt.Fprintf(w, "  change   %s%% (%s)\n", v.ChangePct.StringFixed(1), v.Trend)
		}
	}

	fmt.Fprintln(w, "This month")
	if err := rep.Monthly.Err; err != nil {
		fmt.Fprintf(w, "  unavailable: %v\n", err)
	} else {
		v := rep.Monthly.Value
		fmt.Fprintf(w, "  %s income %s, expenses %s, savings rate %s%%\n",
			v.Month, core.FormatMoney(v.Income, currency), core.FormatMoney(v.Expenses, currency), v.SavingsRate.StringFixed(1))
	}

	fmt.Fprintln(w, "Top expenses")
	if err := rep.TopExpenses.Err; err != nil {
		fmt.Fprintf(w, "  unavailable: %v\n", err)
	} else {
		for i, c := range rep.TopExpenses.Value {
			fmt.Fprintf(w, "  %d. %-20s %s\n", i+1, c.Category, core.FormatMoney(c.Amount, currency))
		}
	}

	fmt.Fprintln(w, "Over budget")
	switch {
	case rep.BudgetWarnings.Err != nil:
		fmt.Fprintf(w, "  unavailable: %v\n", rep.BudgetWarnings.Err)
	case len(rep.BudgetWarnings.Value) == 0:
		fmt.Fprintln(w, "  none")
	default:
		for _, b := range rep.BudgetWarnings.Value {
			fmt.Fprintf(w, "  %-20s %s over (%s of %s)\n", b.Category,
				core.FormatMoney(b.Overspend, currency),
				core.FormatMoney(b.Actual, currency),
				core.FormatMoney(b.Budget, currency))
		}
	}
}

type templateCmd struct{}

func (*templateCmd) Name() string     { return "template" }
func (*templateCmd) Synopsis() string { return "write a sample workbook" }
func (*templateCmd) Usage() string {
	return `findash-cli template <out.xlsx>

  Writes a workbook with the four expected sheets and a few example rows.
`
}
func (*templateCmd) SetFlags(*flag.FlagSet) {}

func (*templateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected the output file name.")
		return subcommands.ExitUsageError
	}
	out, err := os.Create(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := workbook.WriteTemplate(out, time.Now()); err != nil {
		out.Close()
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := out.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Wrote %s\n", f.Arg(0))
	return subcommands.ExitSuccess
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
