// Package utils provides small shared helpers for time and period handling.
package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Period is a candle period: a positive value and a single-letter unit.
type Period struct {
	Value int
	Unit  byte // 'd', 'h', 'm' or 's'
}

// ParsePeriod parses flexible period notation such as "15 m", "15m",
// "4 hours", "1 day" or "30 secs" into a Period.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Period{}, fmt.Errorf("empty period")
	}

	var valuePart, unitPart string
	if fields := strings.Fields(s); len(fields) == 2 {
		valuePart, unitPart = fields[0], fields[1]
	} else {
		// split at the first non-digit, e.g. "15m"
		i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
		if i <= 0 {
			return Period{}, fmt.Errorf("period %q: expected a value and a time unit", s)
		}
		valuePart, unitPart = s[:i], strings.TrimSpace(s[i:])
	}

	value, err := strconv.Atoi(valuePart)
	if err != nil || value <= 0 {
		return Period{}, fmt.Errorf("period %q: invalid value", s)
	}

	switch unitPart {
	case "d", "day", "days":
		return Period{Value: value, Unit: 'd'}, nil
	case "h", "hr", "hrs", "hour", "hours":
		return Period{Value: value, Unit: 'h'}, nil
	case "m", "min", "mins", "minute", "minutes":
		return Period{Value: value, Unit: 'm'}, nil
	case "s", "sec", "secs", "second", "seconds":
		return Period{Value: value, Unit: 's'}, nil
	}
	return Period{}, fmt.Errorf("period %q: unknown time unit %q", s, unitPart)
}

// Duration returns the period length as a time.Duration.
func (p Period) Duration() time.Duration {
	switch p.Unit {
	case 'd':
		return time.Duration(p.Value) * 24 * time.Hour
	case 'h':
		return time.Duration(p.Value) * time.Hour
	case 'm':
		return time.Duration(p.Value) * time.Minute
	default:
		return time.Duration(p.Value) * time.Second
	}
}

// String renders the compact form used in file names, e.g. "15m".
func (p Period) String() string {
	return fmt.Sprintf("%d%c", p.Value, p.Unit)
}

// UTCMidnight returns midnight UTC of the day containing t.
func UTCMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PeriodStart returns the period boundary bracketing t: the largest
// whole-period offset from UTC midnight that is not after t.
func PeriodStart(t time.Time, step time.Duration) time.Time {
	start := UTCMidnight(t)
	for !start.Add(step).After(t) {
		start = start.Add(step)
	}
	return start
}
