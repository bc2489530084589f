package http

// Query parameter parsing shared by the chart endpoints.

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"findash/internal/core"
)

// maxCategoryParams bounds how many categories one budget query may select.
const maxCategoryParams = 100

// BudgetParams holds the parsed budget-vs-actual query.
type BudgetParams struct {
	Month core.YearMonth
	// Categories is nil when the caller did not filter.
	Categories []string
}

// ParseRangeParam reads ?range=, defaulting to MAX.
func ParseRangeParam(query url.Values) (core.Range, error) {
	return core.ParseRange(query.Get("range"))
}

// ParseBudgetParams reads ?month=YYYY-MM (default: the month containing now)
// and ?category=, which may repeat or hold a comma-separated list.
func ParseBudgetParams(query url.Values, now time.Time) (BudgetParams, error) {
	params := BudgetParams{Month: core.MonthOf(now)}

	if v := strings.TrimSpace(query.Get("month")); v != "" {
		ym, err := core.ParseYearMonth(v)
		if err != nil {
			return BudgetParams{}, err
		}
		params.Month = ym
	}

	seen := make(map[string]bool)
	for _, raw := range query["category"] {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			params.Categories = append(params.Categories, name)
		}
	}
	if len(params.Categories) > maxCategoryParams {
		return BudgetParams{}, fmt.Errorf("too many categories (max %d)", maxCategoryParams)
	}
	return params, nil
}

// ParseLimitParam reads ?limit=, falling back to def and rejecting values
// outside 1..max.
func ParseLimitParam(query url.Values, def, max int) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("limit must be an integer between 1 and %d", max)
	}
	return n, nil
}
