// Package bookings owns the booking lifecycle: create, reschedule, cancel,
// and status changes. Slot conflicts abort the mutation; calendar sync never
// does, its outcome is only recorded on the booking.
package bookings

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/service/availability"
	"salonbook/backend/internal/service/calendarsync"
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

// ConflictError reports which technicians are double-booked for the
// requested slot, with the bookings that block them.
type ConflictError struct {
	Results []availability.Result
}

func (e *ConflictError) Error() string {
	var blocked []string
	for _, r := range e.Results {
		if !r.Available {
			blocked = append(blocked, r.TechnicianID)
		}
	}
	return "requested slot conflicts for technicians: " + strings.Join(blocked, ", ")
}

type availabilityChecker interface {
	CheckBatch(ctx context.Context, technicianIDs []string, date, start time.Time, duration time.Duration) ([]availability.Result, error)
}

type bookingSyncer interface {
	SyncBooking(ctx context.Context, b domain.Booking) calendarsync.Outcome
}

type Service struct {
	repo      store.BookingRepository
	checker   availabilityChecker
	syncer    bookingSyncer
	tolerance time.Duration
	log       *slog.Logger
}

// NewService wires the booking lifecycle. tolerance bounds how far the
// booking envelope may drift from the summed service durations; zero falls
// back to 15 minutes.
func NewService(repo store.BookingRepository, checker availabilityChecker, syncer bookingSyncer, tolerance time.Duration, log *slog.Logger) *Service {
	if tolerance <= 0 {
		tolerance = 15 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:      repo,
		checker:   checker,
		syncer:    syncer,
		tolerance: tolerance,
		log:       log.With(slog.String("component", "bookings")),
	}
}

type CreateInput struct {
	CustomerID      string
	Services        []domain.ServiceItem
	AppointmentDate time.Time
	StartTime       time.Time
	// EndTime is optional; when zero the envelope closes at StartTime plus
	// the summed service durations.
	EndTime        time.Time
	PaymentStatus  string
	Notes          string
	CustomerNotes  string
	IdempotencyKey string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Booking, error) {
	if in.CustomerID == "" {
		return domain.Booking{}, validationError("customer_id is required")
	}
	if err := validateServices(in.Services); err != nil {
		return domain.Booking{}, err
	}

	b := domain.Booking{
		CustomerID:         in.CustomerID,
		Services:           in.Services,
		Status:             domain.BookingStatusInitial,
		PaymentStatus:      paymentStatusOrDefault(in.PaymentStatus),
		Notes:              in.Notes,
		CustomerNotes:      in.CustomerNotes,
		CalendarSyncStatus: domain.CalendarSyncPending,
	}
	b.TotalDuration = b.SumDuration()
	b.TotalPrice = b.SumPrice()
	b.TechnicianIDs = b.DistinctTechnicianIDs()

	if err := s.applySchedule(&b, in.AppointmentDate, in.StartTime, in.EndTime); err != nil {
		return domain.Booking{}, err
	}

	if err := s.checkConflicts(ctx, b, uuid.Nil); err != nil {
		return domain.Booking{}, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Booking{}, validationError("idempotency_key too long")
		}
		b.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("salonbook:create_booking:"+in.CustomerID+":"+key))
	}

	created, err := s.repo.Create(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}

	return s.recordSync(ctx, created), nil
}

// Reschedule moves a booking to a new slot. The booking's own interval never
// counts against itself.
func (s *Service) Reschedule(ctx context.Context, bookingID uuid.UUID, date, start, end time.Time) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}

	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	switch b.Status {
	case domain.BookingStatusCancelled, domain.BookingStatusCompleted, domain.BookingStatusNoShow:
		return domain.Booking{}, validationError("booking can no longer be rescheduled")
	}

	if err := s.applySchedule(&b, date, start, end); err != nil {
		return domain.Booking{}, err
	}

	if err := s.checkConflicts(ctx, b, b.ID); err != nil {
		return domain.Booking{}, err
	}

	updated, err := s.repo.UpdateSchedule(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}

	return s.recordSync(ctx, updated), nil
}

// Cancel marks the booking cancelled and removes its external event. Already
// cancelled bookings are returned unchanged.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID, reason string) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}

	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if b.Status == domain.BookingStatusCancelled {
		return b, nil
	}

	b.Status = domain.BookingStatusCancelled
	b.CancellationReason = strings.TrimSpace(reason)

	updated, err := s.repo.Update(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}

	return s.recordSync(ctx, updated), nil
}

var legalTransitions = map[domain.BookingStatus][]domain.BookingStatus{
	domain.BookingStatusInitial:    {domain.BookingStatusConfirmed, domain.BookingStatusNoShow},
	domain.BookingStatusConfirmed:  {domain.BookingStatusInProgress, domain.BookingStatusNoShow},
	domain.BookingStatusInProgress: {domain.BookingStatusCompleted},
}

// UpdateStatus advances the booking through its lifecycle. Cancellation goes
// through Cancel, which also owns the reason field.
func (s *Service) UpdateStatus(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	if status == domain.BookingStatusCancelled {
		return domain.Booking{}, validationError("use cancel to cancel a booking")
	}

	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}

	if !transitionAllowed(b.Status, status) {
		return domain.Booking{}, validationError("cannot move booking from " + string(b.Status) + " to " + string(status))
	}
	b.Status = status

	updated, err := s.repo.Update(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}

	return s.recordSync(ctx, updated), nil
}

func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	return s.repo.Get(ctx, bookingID)
}

func transitionAllowed(from, to domain.BookingStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// applySchedule normalizes and validates the booking envelope against the
// summed service durations.
func (s *Service) applySchedule(b *domain.Booking, date, start, end time.Time) error {
	if date.IsZero() || start.IsZero() {
		return validationError("appointment_date and start_time are required")
	}

	day := domain.DateOf(date)
	startUTC := start.UTC()
	if !domain.DateOf(startUTC).Equal(day) {
		return validationError("start_time must fall on appointment_date")
	}

	endUTC := end.UTC()
	if end.IsZero() {
		endUTC = startUTC.Add(time.Duration(b.TotalDuration) * time.Minute)
	}
	if !endUTC.After(startUTC) {
		return validationError("end_time must be after start_time")
	}
	if endUTC.After(day.Add(24 * time.Hour)) {
		return validationError("booking must end on appointment_date")
	}

	b.AppointmentDate = day
	b.StartTime = startUTC
	b.EndTime = endUTC

	if !b.TotalsConsistent(s.tolerance) {
		return validationError("end_time does not match total service duration")
	}
	return nil
}

// checkConflicts asks the availability checker for every technician in the
// booking and rejects the mutation if any are double-booked. excludeID keeps
// a rescheduled booking from conflicting with itself.
func (s *Service) checkConflicts(ctx context.Context, b domain.Booking, excludeID uuid.UUID) error {
	duration := b.EndTime.Sub(b.StartTime)
	results, err := s.checker.CheckBatch(ctx, b.DistinctTechnicianIDs(), b.AppointmentDate, b.StartTime, duration)
	if err != nil {
		return err
	}

	conflicted := false
	for i := range results {
		if excludeID != uuid.Nil {
			kept := results[i].Conflicts[:0]
			for _, c := range results[i].Conflicts {
				if c.ID != excludeID {
					kept = append(kept, c)
				}
			}
			results[i].Conflicts = kept
			results[i].Available = len(kept) == 0
		}
		if !results[i].Available {
			conflicted = true
		}
	}
	if conflicted {
		return &ConflictError{Results: results}
	}
	return nil
}

// recordSync runs the calendar transition for a just-persisted booking and
// folds the outcome back into the returned aggregate. Sync trouble is
// status, not failure.
func (s *Service) recordSync(ctx context.Context, b domain.Booking) domain.Booking {
	out := s.syncer.SyncBooking(ctx, b)
	if out.Err != nil {
		s.log.Warn("calendar sync unresolved",
			slog.String("booking_id", b.ID.String()),
			slog.String("sync_status", string(out.Status)),
			slog.Any("err", out.Err),
		)
	}
	b.CalendarSyncStatus = out.Status
	b.CalendarEventID = out.EventID
	return b
}

func validateServices(services []domain.ServiceItem) error {
	if len(services) == 0 {
		return validationError("at least one service is required")
	}
	for _, item := range services {
		if item.ServiceID == "" {
			return validationError("service_id is required for every service")
		}
		if item.TechnicianID == "" {
			return validationError("technician_id is required for every service")
		}
		if item.Duration <= 0 {
			return validationError("service duration must be positive")
		}
		if item.Price < 0 {
			return validationError("service price must not be negative")
		}
	}
	return nil
}

func paymentStatusOrDefault(status string) string {
	if strings.TrimSpace(status) == "" {
		return "pending"
	}
	return status
}
