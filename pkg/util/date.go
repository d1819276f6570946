package util

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date format used on the wire.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// ParseDate parses a calendar date in any of the accepted layouts and
// returns it truncated to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseDateDefault parses a date or returns def if s is empty or invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, err := ParseDate(s); err == nil {
		return t
	}
	return def
}

// FormatDate renders t as YYYY-MM-DD, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// Day truncates t to midnight UTC of the same calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last calendar day of t's month at midnight UTC.
func MonthEnd(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}

// NextMonthEnd returns the month end following t's month.
func NextMonthEnd(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+2, 0, 0, 0, 0, 0, time.UTC)
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
