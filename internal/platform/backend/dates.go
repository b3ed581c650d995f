package backend

import (
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006",
}

// ParseTime reads the date and timestamp spellings the backend emits.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DayOf returns the YYYY-MM-DD part of a backend date or timestamp.
func DayOf(s string) string {
	if t, ok := ParseTime(s); ok {
		return t.Format("2006-01-02")
	}
	if i := strings.IndexByte(s, 'T'); i > 0 {
		return s[:i]
	}
	return s
}

// Newer reports whether a is strictly later than b. Values that do not
// parse sort after every parsed value.
func Newer(a, b string) bool {
	ta, okA := ParseTime(a)
	tb, okB := ParseTime(b)
	switch {
	case okA && okB:
		return ta.After(tb)
	case okA:
		return true
	default:
		return false
	}
}

// Older reports whether a is strictly earlier than b. Values that do not
// parse sort after every parsed value.
func Older(a, b string) bool {
	ta, okA := ParseTime(a)
	tb, okB := ParseTime(b)
	switch {
	case okA && okB:
		return ta.Before(tb)
	case okA:
		return true
	default:
		return false
	}
}
