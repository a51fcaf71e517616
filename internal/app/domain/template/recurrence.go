package template

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// NextOccurrence steps an RFC 5545 RRULE forward from after, returning the
// next occurrence strictly later than after. rule is the bare RRULE value
// (e.g. "FREQ=WEEKLY;BYDAY=MO,FR;INTERVAL=2"); after both anchors the
// recurrence (DTSTART) and is the point occurrences are measured from, since
// templates only ever need "what's the next due date from here" rather than
// a fixed series start.
func NextOccurrence(rule string, after time.Time) (time.Time, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return time.Time{}, fmt.Errorf("template: invalid recurrence rule %q: %w", rule, err)
	}
	r.DTStart(after)

	next := r.After(after, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("template: recurrence rule %q has no occurrence after %s", rule, after)
	}
	return next, nil
}
