package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
)

// BookingRepository is the booking store contract. Create and UpdateSchedule
// enforce slot conflicts transactionally; Update is a plain save for status
// and sync bookkeeping fields.
type BookingRepository interface {
	Create(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	Update(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	UpdateSchedule(ctx context.Context, booking domain.Booking) (domain.Booking, error)

	// FindActiveBookings returns all bookings on date whose service list
	// touches any of technicianIDs and whose status still occupies the slot.
	FindActiveBookings(ctx context.Context, technicianIDs []string, date time.Time) ([]domain.Booking, error)

	ListBySyncStatus(ctx context.Context, statuses []domain.CalendarSyncStatus, limit int) ([]domain.Booking, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Booking, error)
}

// BookingTx is the slice of repository behavior available inside a locked
// technician transaction.
type BookingTx interface {
	InsertBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	SaveBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	FindActiveBookings(ctx context.Context, technicianIDs []string, date time.Time) ([]domain.Booking, error)
}
