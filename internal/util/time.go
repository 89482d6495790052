package util

import "time"

// Clock abstracts the current time so window boundaries are testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time {
	return c.At
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayWindowStart returns the start of the calendar day daysAgo days before now.
func DayWindowStart(now time.Time, daysAgo int, loc *time.Location) time.Time {
	return StartOfDay(now, loc).AddDate(0, 0, -daysAgo)
}

// TrailingWindowStart returns now minus daysAgo whole days, without truncation.
func TrailingWindowStart(now time.Time, daysAgo int) time.Time {
	return now.AddDate(0, 0, -daysAgo)
}

// LoadLocation falls back to UTC for an empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
