// Package schedule holds the calendar-date and clock-time primitives shared
// by the conflict checker and the task store. Dates written through this
// package must be read back through it: both paths build the date from its
// year/month/day components in the local location, so a calendar date never
// shifts across the UTC boundary.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ClockTime is a time of day expressed as minutes since local midnight.
type ClockTime int

// ParseDate converts an ISO calendar-date string (YYYY-MM-DD) into a
// time.Time anchored at local midnight. It never routes the string through a
// UTC-epoch parse, which would land on the previous day in timezones behind
// UTC.
func ParseDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("schedule: invalid date %q: want YYYY-MM-DD", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid year in %q", s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid month in %q", s)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid day in %q", s)
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	// time.Date normalizes overflow (Feb 31 becomes Mar 2); reject instead.
	if d.Year() != year || d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, fmt.Errorf("schedule: no such date %q", s)
	}
	return d, nil
}

// FormatDate renders a date in the YYYY-MM-DD wire format.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseClock converts an HH:MM string into minutes since midnight.
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("schedule: invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("schedule: invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("schedule: invalid minute in %q", s)
	}
	return ClockTime(hour*60 + minute), nil
}

// String renders the clock time back to HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON renders the clock time as an HH:MM string.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

// UnmarshalJSON accepts an HH:MM string.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("schedule: clock time must be a string: %w", err)
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd ClockTime) bool {
	return aStart < bEnd && bStart < aEnd
}

// TimeWindow is a candidate or existing interval on a single calendar day.
type TimeWindow struct {
	Date  time.Time
	Start ClockTime
	End   ClockTime
}

// ParseTimeWindow builds a validated window from wire-format strings.
func ParseTimeWindow(date, start, end string) (TimeWindow, error) {
	d, err := ParseDate(date)
	if err != nil {
		return TimeWindow{}, err
	}
	s, err := ParseClock(start)
	if err != nil {
		return TimeWindow{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return TimeWindow{}, err
	}
	w := TimeWindow{Date: d, Start: s, End: e}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Validate enforces the window invariants.
func (w TimeWindow) Validate() error {
	if w.Date.IsZero() {
		return fmt.Errorf("schedule: window date is required")
	}
	if w.Start >= w.End {
		return fmt.Errorf("schedule: window start %s must be before end %s", w.Start, w.End)
	}
	return nil
}

// OverlapsWindow reports whether another interval on the same day intersects
// this window.
func (w TimeWindow) OverlapsWindow(start, end ClockTime) bool {
	return Overlaps(w.Start, w.End, start, end)
}
