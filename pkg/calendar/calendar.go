// Package calendar maps instants onto local calendar days.
//
// All day math goes through a Calendar bound to an explicit location, so
// results never depend on the machine's local zone.
package calendar

import (
	"fmt"
	"sort"
	"time"
)

// Layout is the wire form of a Day.
const Layout = "2006-01-02"

// Day is a calendar date with no time-of-day or zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// String formats the day as YYYY-MM-DD.
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Before reports whether d is an earlier date than o.
func (d Day) Before(o Day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// AddDays returns the date n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	t := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC)
	return Day{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Calendar projects instants onto days in one location.
type Calendar struct {
	loc *time.Location
}

// New returns a Calendar for loc. A nil loc means UTC.
func New(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Load returns a Calendar for an IANA zone name. Empty means UTC.
func Load(name string) (Calendar, error) {
	if name == "" {
		return New(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("load location %q: %w", name, err)
	}
	return New(loc), nil
}

// Location returns the calendar's zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Zone returns the zone name, used as a cache key.
func (c Calendar) Zone() string {
	return c.Location().String()
}

// Start returns local midnight at the beginning of d.
func (c Calendar) Start(d Day) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, c.Location())
}

// Range returns the half-open interval [start, end) covering d. End is
// midnight of the next calendar day, which is not always 24h later.
func (c Calendar) Range(d Day) (start, end time.Time) {
	start = c.Start(d)
	end = time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, c.Location())
	return start, end
}

// Contains reports whether t falls within d's half-open range.
func (c Calendar) Contains(d Day, t time.Time) bool {
	start, end := c.Range(d)
	return !t.Before(start) && t.Before(end)
}

// DayOf returns the local day containing t.
func (c Calendar) DayOf(t time.Time) Day {
	lt := t.In(c.Location())
	return Day{Year: lt.Year(), Month: lt.Month(), Day: lt.Day()}
}

// Today returns the local day containing now.
func (c Calendar) Today(now time.Time) Day {
	return c.DayOf(now)
}

// DateSet is a set of days.
type DateSet map[Day]struct{}

// Project collects the distinct local days of the given instants.
func (c Calendar) Project(times []time.Time) DateSet {
	set := make(DateSet, len(times))
	for _, t := range times {
		set[c.DayOf(t)] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s DateSet) Has(d Day) bool {
	_, ok := s[d]
	return ok
}

// Sorted returns the days in ascending order.
func (s DateSet) Sorted() []Day {
	days := make([]Day, 0, len(s))
	for d := range s {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Strings returns the sorted days in YYYY-MM-DD form.
func (s DateSet) Strings() []string {
	days := s.Sorted()
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.String()
	}
	return out
}

// SetFromStrings parses YYYY-MM-DD values into a set.
func SetFromStrings(values []string) (DateSet, error) {
	set := make(DateSet, len(values))
	for _, v := range values {
		d, err := ParseDay(v)
		if err != nil {
			return nil, err
		}
		set[d] = struct{}{}
	}
	return set, nil
}
