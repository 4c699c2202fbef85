package schedule

import (
	"testing"
	"time"
)

func TestParseDateKeepsCalendarDay(t *testing.T) {
	// A UTC-epoch parse of this string in a UTC-negative zone lands on
	// December 31. Component parsing must keep the day at 1.
	restore := time.Local
	loc, err := time.LoadLocation("America/Mexico_City")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	time.Local = loc
	defer func() { time.Local = restore }()

	d, err := ParseDate("2026-01-01")
	if err != nil {
		t.Fatalf("ParseDate returned error: %v", err)
	}
	if d.Day() != 1 || d.Month() != time.January || d.Year() != 2026 {
		t.Fatalf("expected 2026-01-01, got %s", d)
	}
	if d.Hour() != 0 || d.Minute() != 0 {
		t.Fatalf("expected local midnight, got %s", d)
	}
}

func TestParseDateRoundTrip(t *testing.T) {
	for _, s := range []string{"2026-02-28", "2024-02-29", "2026-12-31"} {
		d, err := ParseDate(s)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", s, err)
		}
		if got := FormatDate(d); got != s {
			t.Errorf("round trip mismatch: %q -> %q", s, got)
		}
	}
}

func TestParseDateRejectsInvalid(t *testing.T) {
	for _, s := range []string{"", "2026-1", "2026-02-31", "2026-13-01", "not-a-date", "2026/01/01"} {
		if _, err := ParseDate(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]ClockTime{
		"00:00": 0,
		"09:30": 9*60 + 30,
		"23:59": 23*60 + 59,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseClock(%q) = %d, want %d", in, got, want)
		}
		if got.String() != in {
			t.Errorf("String() = %q, want %q", got.String(), in)
		}
	}
}

func TestParseClockRejectsInvalid(t *testing.T) {
	for _, s := range []string{"", "24:00", "12:60", "9", "12:3a", "-1:00"} {
		if _, err := ParseClock(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd ClockTime
		want                       bool
	}{
		{"identical", 540, 600, 540, 600, true},
		{"partial overlap", 540, 600, 570, 630, true},
		{"contained", 540, 660, 570, 600, true},
		{"touching endpoints", 540, 600, 600, 660, false},
		{"touching endpoints reversed", 600, 660, 540, 600, false},
		{"disjoint", 540, 600, 720, 780, false},
		{"one minute overlap", 540, 601, 600, 660, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Errorf("Overlaps(%d,%d,%d,%d) = %v, want %v", tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.want)
			}
			// Symmetry must hold for every pair.
			if got, mirrored := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd), Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != mirrored {
				t.Errorf("overlap is not symmetric for (%d,%d) vs (%d,%d)", tc.aStart, tc.aEnd, tc.bStart, tc.bEnd)
			}
		})
	}
}

func TestParseTimeWindow(t *testing.T) {
	w, err := ParseTimeWindow("2026-03-15", "09:00", "10:30")
	if err != nil {
		t.Fatalf("ParseTimeWindow: %v", err)
	}
	if w.Start != 540 || w.End != 630 {
		t.Errorf("unexpected window bounds: %d-%d", w.Start, w.End)
	}
	if !w.OverlapsWindow(600, 660) {
		t.Error("expected overlap with 10:00-11:00")
	}
	if w.OverlapsWindow(630, 660) {
		t.Error("touching window must not overlap")
	}
}

func TestParseTimeWindowRejectsInvertedWindow(t *testing.T) {
	if _, err := ParseTimeWindow("2026-03-15", "10:30", "09:00"); err == nil {
		t.Fatal("expected error for inverted window")
	}
	if _, err := ParseTimeWindow("2026-03-15", "09:00", "09:00"); err == nil {
		t.Fatal("expected error for empty window")
	}
}
