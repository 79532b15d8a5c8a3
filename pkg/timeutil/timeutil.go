// Package timeutil provides calendar-day utilities bound to the course timezone.
// Daily quotas roll over at local midnight of that zone, not at UTC midnight.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host image
)

// DefaultZoneName is the timezone the course runs in.
const DefaultZoneName = "America/Mexico_City"

// DateLayout is the storage layout of a calendar date.
const DateLayout = "2006-01-02"

// fallbackZone is in effect until SetZone is called. Mexico City has had no
// DST since 2022, so UTC-6 is correct year-round.
var fallbackZone = time.FixedZone(DefaultZoneName, -6*60*60)

var (
	zoneMu sync.RWMutex
	zone   = fallbackZone
)

// SetZone sets the course timezone by IANA name.
func SetZone(name string) error {
	if name == "" {
		name = DefaultZoneName
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", name, err)
	}
	zoneMu.Lock()
	zone = loc
	zoneMu.Unlock()
	return nil
}

// Zone returns the course timezone.
func Zone() *time.Location {
	zoneMu.RLock()
	defer zoneMu.RUnlock()
	return zone
}

// Now returns the current time in the course timezone.
func Now() time.Time {
	return time.Now().In(Zone())
}

// Clock abstracts the current time so that day rollover can be tested.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock reading the wall clock in the course timezone.
func SystemClock() Clock { return ClockFunc(Now) }

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// ══════════════════════════════════════════════════════════════════════════════
// DATE
// ══════════════════════════════════════════════════════════════════════════════

// Date is a calendar date without a time component, formatted as YYYY-MM-DD.
type Date string

// DateOf returns the calendar date of t in the course timezone.
func DateOf(t time.Time) Date {
	return Date(t.In(Zone()).Format(DateLayout))
}

// Today returns today's date according to clock.
func Today(clock Clock) Date {
	if clock == nil {
		clock = SystemClock()
	}
	return DateOf(clock.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, value, Zone())
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", value, err)
	}
	return Date(t.Format(DateLayout)), nil
}

// DateFromTime converts a stored DATE column (midnight in any zone) into a
// Date without shifting it across zones.
func DateFromTime(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// String implements fmt.Stringer.
func (d Date) String() string { return string(d) }

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == "" }

// Time returns midnight of the date in UTC, suitable for DATE columns.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	t := d.Time()
	if t.IsZero() {
		return d
	}
	return Date(t.AddDate(0, 0, n).Format(DateLayout))
}

// StartOfDay returns the start of t's day in the course timezone.
func StartOfDay(t time.Time) time.Time {
	local := t.In(Zone())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Zone())
}

// UntilMidnight returns how long remains until the next local midnight.
func UntilMidnight(t time.Time) time.Duration {
	next := StartOfDay(t).AddDate(0, 0, 1)
	return next.Sub(t)
}

