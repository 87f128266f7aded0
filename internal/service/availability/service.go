// Package availability answers whether a technician is free for a requested
// time slot, based on active bookings in the store. It only ever reads; slot
// enforcement on write lives in the store layer.
package availability

import (
	"context"
	"sort"
	"time"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// slotStep is the granularity used when proposing alternative slots.
const slotStep = 15 * time.Minute

// Result is the availability answer for a single technician. Alternatives is
// only populated by CheckOne, and only when the requested slot conflicts.
type Result struct {
	TechnicianID string
	Available    bool
	Conflicts    []domain.Booking
	Alternatives []Slot
}

// Slot is a free candidate window on the requested date.
type Slot struct {
	Start time.Time
	End   time.Time
}

// BusinessHours bound the window alternative slots are proposed in, as
// offsets from midnight. The zero value falls back to 09:00-19:00.
type BusinessHours struct {
	Open  time.Duration
	Close time.Duration
}

type Service struct {
	repo            store.BookingRepository
	hours           BusinessHours
	maxAlternatives int
}

func NewService(repo store.BookingRepository, hours BusinessHours) *Service {
	if hours.Open == 0 && hours.Close == 0 {
		hours = BusinessHours{Open: 9 * time.Hour, Close: 19 * time.Hour}
	}
	return &Service{repo: repo, hours: hours, maxAlternatives: 3}
}

// CheckOne tests the slot [start, start+duration) for one technician on date.
// A failed store lookup propagates as store.ErrUnavailable; it is never
// reported as an open slot.
func (s *Service) CheckOne(ctx context.Context, technicianID string, date, start time.Time, duration time.Duration) (Result, error) {
	if technicianID == "" {
		return Result{}, validationError("technician_id is required")
	}
	requested, err := requestedInterval(technicianID, date, start, duration)
	if err != nil {
		return Result{}, err
	}

	bookings, err := s.repo.FindActiveBookings(ctx, []string{technicianID}, requested.Date)
	if err != nil {
		return Result{}, err
	}

	res := resolve(technicianID, requested, bookings)
	if !res.Available {
		res.Alternatives = s.alternatives(technicianID, requested, bookings)
	}
	return res, nil
}

// CheckBatch answers the same question for every technician in technicianIDs
// with a single store query. Results preserve input order, one per technician.
// A booking shared between two technicians only counts against the ones whose
// services it actually holds.
func (s *Service) CheckBatch(ctx context.Context, technicianIDs []string, date, start time.Time, duration time.Duration) ([]Result, error) {
	if len(technicianIDs) == 0 {
		return nil, validationError("at least one technician_id is required")
	}
	for _, id := range technicianIDs {
		if id == "" {
			return nil, validationError("technician_id must not be empty")
		}
	}
	requested, err := requestedInterval(technicianIDs[0], date, start, duration)
	if err != nil {
		return nil, err
	}

	bookings, err := s.repo.FindActiveBookings(ctx, technicianIDs, requested.Date)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(technicianIDs))
	for _, id := range technicianIDs {
		requested.TechnicianID = id
		out = append(out, resolve(id, requested, bookings))
	}
	return out, nil
}

func requestedInterval(technicianID string, date, start time.Time, duration time.Duration) (domain.Interval, error) {
	if duration <= 0 {
		return domain.Interval{}, validationError("duration must be positive")
	}
	day := domain.DateOf(date)
	if !domain.DateOf(start).Equal(day) {
		return domain.Interval{}, validationError("start_time must fall on the requested date")
	}
	iv := domain.NewInterval(technicianID, day, start, duration)
	if iv.End.After(day.Add(24 * time.Hour)) {
		return domain.Interval{}, validationError("appointment must end on the same date")
	}
	return iv, nil
}

func resolve(technicianID string, requested domain.Interval, bookings []domain.Booking) Result {
	var conflicts []domain.Booking
	for _, b := range bookings {
		if !b.Active() || !b.Involves(technicianID) {
			continue
		}
		if requested.Overlaps(b.Interval(technicianID)) {
			conflicts = append(conflicts, b)
		}
	}
	return Result{
		TechnicianID: technicianID,
		Available:    len(conflicts) == 0,
		Conflicts:    conflicts,
	}
}

// alternatives proposes up to maxAlternatives free slots of the requested
// length on the same date, nearest to the requested start first.
func (s *Service) alternatives(technicianID string, requested domain.Interval, bookings []domain.Booking) []Slot {
	duration := requested.End.Sub(requested.Start)
	dayOpen := requested.Date.Add(s.hours.Open)
	dayClose := requested.Date.Add(s.hours.Close)

	var candidates []Slot
	for start := dayOpen; !start.Add(duration).After(dayClose); start = start.Add(slotStep) {
		if start.Equal(requested.Start) {
			continue
		}
		cand := domain.Interval{
			TechnicianID: technicianID,
			Date:         requested.Date,
			Start:        start,
			End:          start.Add(duration),
		}
		free := true
		for _, b := range bookings {
			if !b.Active() || !b.Involves(technicianID) {
				continue
			}
			if cand.Overlaps(b.Interval(technicianID)) {
				free = false
				break
			}
		}
		if free {
			candidates = append(candidates, Slot{Start: cand.Start, End: cand.End})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return distance(candidates[i].Start, requested.Start) < distance(candidates[j].Start, requested.Start)
	})
	if len(candidates) > s.maxAlternatives {
		candidates = candidates[:s.maxAlternatives]
	}
	return candidates
}

func distance(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
