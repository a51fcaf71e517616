package template

import (
	"testing"
	"time"
)

func TestNextOccurrenceDaily(t *testing.T) {
	after := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	next, err := NextOccurrence("FREQ=DAILY", after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextOccurrenceDailyInterval(t *testing.T) {
	after := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	next, err := NextOccurrence("FREQ=DAILY;INTERVAL=3", after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextOccurrenceWeeklyByDay(t *testing.T) {
	// 2026-07-29 is a Wednesday.
	after := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	next, err := NextOccurrence("FREQ=WEEKLY;BYDAY=MO,FR", after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Weekday() != time.Friday {
		t.Fatalf("expected next Friday, got %v (%v)", next.Weekday(), next)
	}
}

// RFC 5545 BYMONTHDAY doesn't clamp into shorter months, it skips them: a
// rule anchored on Jan 31 with BYMONTHDAY=31 has no occurrence in February
// (28 days in 2026) and resumes at the next month that has a 31st.
func TestNextOccurrenceMonthlySkipsShortMonths(t *testing.T) {
	after := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	next, err := NextOccurrence("FREQ=MONTHLY;BYMONTHDAY=31", after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextOccurrenceInvalidRule(t *testing.T) {
	if _, err := NextOccurrence("FREQ=BOGUS", time.Now()); err == nil {
		t.Fatal("expected error for unparseable rule")
	}
}

func TestNextOccurrenceInvalidByDay(t *testing.T) {
	if _, err := NextOccurrence("FREQ=WEEKLY;BYDAY=ZZ", time.Now()); err == nil {
		t.Fatal("expected error for invalid BYDAY token")
	}
}
