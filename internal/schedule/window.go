// Package schedule computes the intervals used to look for booking conflicts.
package schedule

import "time"

// ConflictPadding is added on both sides of a requested ride when searching
// for conflicts.
const ConflictPadding = 30 * time.Minute

// Window is a closed interval [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Requested returns the interval occupied by a ride starting at start.
func Requested(start time.Time, durationMinutes int) Window {
	return Window{
		Start: start,
		End:   start.Add(time.Duration(durationMinutes) * time.Minute),
	}
}

// Pad widens w by d on both ends.
func (w Window) Pad(d time.Duration) Window {
	return Window{Start: w.Start.Add(-d), End: w.End.Add(d)}
}

// SearchWindow is the padded interval queried for conflicts.
func SearchWindow(start time.Time, durationMinutes int) Window {
	return Requested(start, durationMinutes).Pad(ConflictPadding)
}

// Contains reports whether t lies in w, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
