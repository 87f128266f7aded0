package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusInitial    BookingStatus = "initial"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusNoShow     BookingStatus = "no_show"
)

type CalendarSyncStatus string

const (
	CalendarSyncPending  CalendarSyncStatus = "pending"
	CalendarSyncSynced   CalendarSyncStatus = "synced"
	CalendarSyncFailed   CalendarSyncStatus = "failed"
	CalendarSyncDisabled CalendarSyncStatus = "disabled"
)

// ServiceItem is one service/technician pairing within a booking. Duration is
// in minutes.
type ServiceItem struct {
	ServiceID    string  `json:"serviceId"`
	TechnicianID string  `json:"technicianId"`
	Duration     int     `json:"duration"`
	Price        float64 `json:"price"`
	Status       string  `json:"status"`
	Notes        string  `json:"notes,omitempty"`
}

// Booking is the persisted aggregate. The services list is owned by the
// booking; TechnicianIDs is denormalized from it so the store can match a
// booking against a set of technicians with a single array predicate.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID                 uuid.UUID          `bun:"id,pk,type:uuid"`
	CustomerID         string             `bun:"customer_id,notnull"`
	Services           []ServiceItem      `bun:"services,type:jsonb,notnull"`
	TechnicianIDs      []string           `bun:"technician_ids,array,notnull"`
	AppointmentDate    time.Time          `bun:"appointment_date,notnull"`
	StartTime          time.Time          `bun:"start_time,notnull"`
	EndTime            time.Time          `bun:"end_time,notnull"`
	Status             BookingStatus      `bun:"status,notnull"`
	TotalDuration      int                `bun:"total_duration,notnull"`
	TotalPrice         float64            `bun:"total_price,notnull"`
	PaymentStatus      string             `bun:"payment_status,notnull,default:'pending'"`
	Notes              string             `bun:"notes"`
	CustomerNotes      string             `bun:"customer_notes"`
	CancellationReason string             `bun:"cancellation_reason"`
	CalendarEventID    string             `bun:"calendar_event_id"`
	CalendarSyncStatus CalendarSyncStatus `bun:"calendar_sync_status,notnull,default:'pending'"`
	CalendarLastSyncAt *time.Time         `bun:"calendar_last_sync_at"`
	CreatedAt          time.Time          `bun:"created_at,notnull"`
	UpdatedAt          time.Time          `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

// Active reports whether the booking occupies its slot for conflict purposes.
// Cancelled and no-show bookings both release the slot.
func (b *Booking) Active() bool {
	return b.Status != BookingStatusCancelled && b.Status != BookingStatusNoShow
}

// Involves reports whether any service in the booking is assigned to the
// given technician.
func (b *Booking) Involves(technicianID string) bool {
	for _, s := range b.Services {
		if s.TechnicianID == technicianID {
			return true
		}
	}
	return false
}

// Interval returns the booking's overall window for one of its technicians.
// Every service is assumed to occur within the booking envelope, so per-
// technician intervals all share the booking's start and end.
func (b *Booking) Interval(technicianID string) Interval {
	return Interval{
		TechnicianID: technicianID,
		Date:         DateOf(b.AppointmentDate),
		Start:        b.StartTime.UTC(),
		End:          b.EndTime.UTC(),
	}
}

// DistinctTechnicianIDs returns the technicians referenced by the services
// list, deduplicated, in first-appearance order.
func (b *Booking) DistinctTechnicianIDs() []string {
	seen := make(map[string]struct{}, len(b.Services))
	out := make([]string, 0, len(b.Services))
	for _, s := range b.Services {
		if _, ok := seen[s.TechnicianID]; ok {
			continue
		}
		seen[s.TechnicianID] = struct{}{}
		out = append(out, s.TechnicianID)
	}
	return out
}

// SumDuration returns the total of per-service durations in minutes.
func (b *Booking) SumDuration() int {
	total := 0
	for _, s := range b.Services {
		total += s.Duration
	}
	return total
}

// SumPrice returns the total of per-service prices.
func (b *Booking) SumPrice() float64 {
	total := 0.0
	for _, s := range b.Services {
		total += s.Price
	}
	return total
}

// TotalsConsistent reports whether TotalDuration agrees with the wall-clock
// envelope within tolerance. The slack absorbs buffer and cleanup time that
// is not modeled per service.
func (b *Booking) TotalsConsistent(tolerance time.Duration) bool {
	envelope := b.EndTime.Sub(b.StartTime)
	diff := envelope - time.Duration(b.TotalDuration)*time.Minute
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
