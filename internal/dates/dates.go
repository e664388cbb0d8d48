// Package dates is the calendar arithmetic library the scheduling model
// computes with. It is deliberately a black box of pure functions over
// whole days: no calendars, no working time, no state.
package dates

import (
	"fmt"
	"time"
)

// Day is a calendar day expressed as days since the project epoch.
// Day arithmetic is plain integer arithmetic; the conversion helpers exist
// only at the edges (display, persistence).
type Day int

// epoch anchors Day 0 for conversions to wall-clock dates.
var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Add returns the day n days after d. Negative n moves backwards.
func Add(d Day, n int) Day {
	return d + Day(n)
}

// Diff returns the number of days from a to b (b - a).
func Diff(a, b Day) int {
	return int(b - a)
}

// Max returns the later of two days.
func Max(a, b Day) Day {
	if b > a {
		return b
	}
	return a
}

// Min returns the earlier of two days.
func Min(a, b Day) Day {
	if b < a {
		return b
	}
	return a
}

// Time converts a Day to its UTC midnight timestamp.
func (d Day) Time() time.Time {
	return epoch.AddDate(0, 0, int(d))
}

// FromTime converts a timestamp to the Day containing it.
func FromTime(t time.Time) Day {
	return Day(int(t.UTC().Sub(epoch).Hours() / 24))
}

// String renders a Day for traces and error messages.
func (d Day) String() string {
	return fmt.Sprintf("day %d", int(d))
}
