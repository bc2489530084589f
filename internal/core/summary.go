package core

import (
	"fmt"
	"strings"
	"time"
)

// Range is a relative time window used to filter rows by date.
type Range string

const (
	Range1M  Range = "1M"
	Range3M  Range = "3M"
	Range6M  Range = "6M"
	Range1Y  Range = "1Y"
	RangeMax Range = "MAX"
)

// Ranges lists the supported windows from narrowest to widest.
var Ranges = []Range{Range1M, Range3M, Range6M, Range1Y, RangeMax}

// ParseRange accepts a range name case-insensitively. Empty means MAX.
func ParseRange(s string) (Range, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return RangeMax, nil
	}
	for _, r := range Ranges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown range %q", s)
}

func (r Range) months() int {
	switch r {
	case Range1M:
		return 1
	case Range3M:
		return 3
	case Range6M:
		return 6
	case Range1Y:
		return 12
	}
	return 0
}

// Cutoff returns the earliest date kept by the range relative to now.
// The second result is false for MAX, which keeps every row.
// Month arithmetic clamps to the last day of the target month, so the
// 1M cutoff for March 31 is February 28 (or 29).
func (r Range) Cutoff(now time.Time) (Date, bool) {
	n := r.months()
	if n == 0 {
		return Date{}, false
	}
	y, m, d := now.Date()
	target := time.Date(y, m-time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := target.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return NewDate(target.Year(), target.Month(), d), true
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses the YYYY-MM form.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

// Before reports whether ym is an earlier month than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// Upload outcomes recorded in the journal.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// UploadRecord is the metadata kept about one upload attempt. Financial rows
// are never part of it.
type UploadRecord struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	Source      string      `json:"source"`
	Filename    string      `json:"filename"`
	Fingerprint string      `json:"fingerprint"`
	Outcome     string      `json:"outcome"`
	Reason      string      `json:"reason,omitempty"`
	Message     string      `json:"message,omitempty"`
	Counts      TableCounts `json:"counts"`
	CreatedAt   time.Time   `json:"created_at"`
}
