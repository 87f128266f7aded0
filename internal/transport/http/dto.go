package http

import (
	"fmt"
	"time"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/service/availability"
	"salonbook/backend/internal/service/bookings"
	"salonbook/backend/internal/service/calendarsync"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// parseDate reads a calendar date like "2026-01-05" as midnight UTC.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// parseClock reads a wall-clock time like "10:30" and places it on date.
func parseClock(s string, date time.Time) (time.Time, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

type serviceItemDTO struct {
	ServiceID       string  `json:"service_id"`
	TechnicianID    string  `json:"technician_id"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	Status          string  `json:"status,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

func toServiceItem(d serviceItemDTO) domain.ServiceItem {
	return domain.ServiceItem{
		ServiceID:    d.ServiceID,
		TechnicianID: d.TechnicianID,
		Duration:     d.DurationMinutes,
		Price:        d.Price,
		Status:       d.Status,
		Notes:        d.Notes,
	}
}

func fromServiceItem(it domain.ServiceItem) serviceItemDTO {
	return serviceItemDTO{
		ServiceID:       it.ServiceID,
		TechnicianID:    it.TechnicianID,
		DurationMinutes: it.Duration,
		Price:           it.Price,
		Status:          it.Status,
		Notes:           it.Notes,
	}
}

type bookingResponse struct {
	ID                 string           `json:"id"`
	CustomerID         string           `json:"customer_id"`
	Services           []serviceItemDTO `json:"services"`
	Date               string           `json:"date"`
	StartTime          time.Time        `json:"start_time"`
	EndTime            time.Time        `json:"end_time"`
	Status             string           `json:"status"`
	TotalDuration      int              `json:"total_duration_minutes"`
	TotalPrice         float64          `json:"total_price"`
	PaymentStatus      string           `json:"payment_status"`
	Notes              string           `json:"notes,omitempty"`
	CustomerNotes      string           `json:"customer_notes,omitempty"`
	CancellationReason string           `json:"cancellation_reason,omitempty"`
	CalendarEventID    string           `json:"calendar_event_id,omitempty"`
	CalendarSyncStatus string           `json:"calendar_sync_status"`
	CalendarLastSyncAt *time.Time       `json:"calendar_last_sync_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	items := make([]serviceItemDTO, 0, len(b.Services))
	for _, it := range b.Services {
		items = append(items, fromServiceItem(it))
	}
	return bookingResponse{
		ID:                 b.ID.String(),
		CustomerID:         b.CustomerID,
		Services:           items,
		Date:               b.AppointmentDate.Format(dateLayout),
		StartTime:          b.StartTime,
		EndTime:            b.EndTime,
		Status:             string(b.Status),
		TotalDuration:      b.TotalDuration,
		TotalPrice:         b.TotalPrice,
		PaymentStatus:      b.PaymentStatus,
		Notes:              b.Notes,
		CustomerNotes:      b.CustomerNotes,
		CancellationReason: b.CancellationReason,
		CalendarEventID:    b.CalendarEventID,
		CalendarSyncStatus: string(b.CalendarSyncStatus),
		CalendarLastSyncAt: b.CalendarLastSyncAt,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

type slotDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type availabilityResultDTO struct {
	TechnicianID string            `json:"technician_id"`
	Available    bool              `json:"available"`
	Conflicts    []bookingResponse `json:"conflicts,omitempty"`
	Alternatives []slotDTO         `json:"alternatives,omitempty"`
}

func toAvailabilityResult(r availability.Result) availabilityResultDTO {
	out := availabilityResultDTO{
		TechnicianID: r.TechnicianID,
		Available:    r.Available,
	}
	for _, b := range r.Conflicts {
		out.Conflicts = append(out.Conflicts, toBookingResponse(b))
	}
	for _, s := range r.Alternatives {
		out.Alternatives = append(out.Alternatives, slotDTO{Start: s.Start, End: s.End})
	}
	return out
}

func conflictResponse(err *bookings.ConflictError) map[string]any {
	results := make([]availabilityResultDTO, 0, len(err.Results))
	for _, r := range err.Results {
		results = append(results, toAvailabilityResult(r))
	}
	return map[string]any{
		"error":   err.Error(),
		"results": results,
	}
}

type syncOutcomeDTO struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	EventID   string `json:"event_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

func toSyncOutcome(o calendarsync.Outcome) syncOutcomeDTO {
	out := syncOutcomeDTO{
		BookingID: o.BookingID.String(),
		Status:    string(o.Status),
		EventID:   o.EventID,
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}
