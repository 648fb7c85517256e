package util

import (
	"strconv"
	"time"
)

var layouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"20060102",
}

// ParseTime tries RFC3339, common date layouts, and unix seconds or
// milliseconds. Layouts without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e11 {
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// PeriodStart truncates t to the start of its day, ISO week (Monday) or
// month, in t's location. Unknown periods truncate to the day.
func PeriodStart(t time.Time, period string) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	switch period {
	case "weekly":
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case "monthly":
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

// AlignFromTo widens [from, to] to whole periods.
func AlignFromTo(from, to time.Time, period string) (time.Time, time.Time) {
	from = PeriodStart(from, period)
	end := PeriodStart(to, period)
	switch period {
	case "weekly":
		end = end.AddDate(0, 0, 7)
	case "monthly":
		end = end.AddDate(0, 1, 0)
	default:
		end = end.AddDate(0, 0, 1)
	}
	return from, end.Add(-time.Nanosecond)
}
