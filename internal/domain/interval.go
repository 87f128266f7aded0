package domain

import "time"

// Interval is the half-open [Start, End) window a booking occupies for one
// technician on one calendar date. It is derived from a booking, never stored.
type Interval struct {
	TechnicianID string
	Date         time.Time
	Start        time.Time
	End          time.Time
}

// NewInterval builds the interval starting at start on date and running for
// duration. Callers are expected to pass a positive duration and a start that
// falls on date; DateOf normalizes both date arguments to midnight UTC.
func NewInterval(technicianID string, date, start time.Time, duration time.Duration) Interval {
	return Interval{
		TechnicianID: technicianID,
		Date:         DateOf(date),
		Start:        start.UTC(),
		End:          start.UTC().Add(duration),
	}
}

// Overlaps reports whether a and b occupy overlapping time for the same
// technician on the same date. Touching endpoints do not overlap: a window
// ending at 10:00 never conflicts with one starting at 10:00.
func (a Interval) Overlaps(b Interval) bool {
	if a.TechnicianID != b.TechnicianID || !a.Date.Equal(b.Date) {
		return false
	}
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
