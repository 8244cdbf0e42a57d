// Package timeutil parses the duration and timestamp forms the query
// language and event model rely on: compact durations like "30s", "5m",
// "2h", "1d" (§4.1's `duration` production) and ISO-8601 timestamps to
// millisecond precision (§3).
package timeutil

import (
	"fmt"
	"strconv"
	"time"
)

// ParseDuration parses a compact duration string of the form INTEGER unit,
// where unit is one of ms, s, m, h, d. This is a stricter, smaller grammar
// than time.ParseDuration (which also accepts fractional and compound
// forms); the query language only ever emits the single-unit form.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	// Find where the numeric prefix ends.
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9') {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid duration %q: missing numeric value", s)
	}

	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	unit := s[i:]
	var mul time.Duration
	switch unit {
	case "ms":
		mul = time.Millisecond
	case "s":
		mul = time.Second
	case "m":
		mul = time.Minute
	case "h":
		mul = time.Hour
	case "d":
		mul = 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, unit)
	}

	return time.Duration(n) * mul, nil
}

// ParseTimestamp parses an ISO-8601 timestamp to millisecond precision.
// It tries RFC3339Nano first (the common case) and falls back to a few
// other ISO-8601 variants adapters commonly emit.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z07:00",
		"2006-01-02T15:04:05Z07:00",
	}

	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(time.Millisecond), nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, lastErr)
}

// Distance returns the absolute duration between two timestamps.
func Distance(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

// Earliest returns the earlier of two timestamps.
func Earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// Latest returns the later of two timestamps.
func Latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
