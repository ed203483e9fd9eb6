// Package shiftwindow decides whether a wall-clock time falls inside a
// shift's valid attendance window, including shifts that wrap past midnight.
package shiftwindow

import "time"

const minutesPerDay = 24 * 60

// Window is a shift time window in minutes since midnight. Start > End means
// the shift wraps past midnight. Grace is applied symmetrically before the
// start and after the end.
type Window struct {
	Start        int
	End          int
	GraceMinutes int
}

// normalize wraps any minute value into [0, 1439].
func normalize(m int) int {
	m %= minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return m
}

// Contains reports whether the given minute-of-day is inside the window.
// Total over all inputs: out-of-range minutes are wrapped into a day.
func (w Window) Contains(nowMinutes int) bool {
	now := normalize(nowMinutes)
	lower := normalize(w.Start - w.GraceMinutes)
	upper := normalize(w.End + w.GraceMinutes)

	// Grace can itself push a same-day window across midnight, so decide
	// wrap-ness from the adjusted bounds rather than Start/End alone.
	if lower <= upper {
		return now >= lower && now <= upper
	}
	return now >= lower || now <= upper
}

// ContainsTime is Contains for a wall-clock time.Time in its own location.
func (w Window) ContainsTime(now time.Time) bool {
	return w.Contains(now.Hour()*60 + now.Minute())
}
