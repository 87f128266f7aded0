package calendarsync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
)

// AuditReport describes drift between bookings and the external calendar
// over a time window.
type AuditReport struct {
	CheckedBookings int
	CheckedEvents   int

	// MissingEventIDs lists bookings marked synced whose event no longer
	// exists externally.
	MissingEventIDs []uuid.UUID

	// UntrackedEventIDs lists external events no booking claims.
	UntrackedEventIDs []string
}

// AuditWindow compares synced bookings against the external calendar's
// events for [from, to). Audit tooling only; not on the booking hot path.
func (s *Syncer) AuditWindow(ctx context.Context, from, to time.Time) (AuditReport, error) {
	events, err := s.cal.ListEvents(ctx, from, to)
	if err != nil {
		return AuditReport{}, err
	}

	bookings, err := s.repo.ListByDateRange(ctx, from, to)
	if err != nil {
		return AuditReport{}, err
	}

	report := AuditReport{
		CheckedBookings: len(bookings),
		CheckedEvents:   len(events),
	}

	externalIDs := make(map[string]struct{}, len(events))
	for _, ev := range events {
		externalIDs[ev.ID] = struct{}{}
	}

	claimed := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		if b.CalendarEventID == "" {
			continue
		}
		claimed[b.CalendarEventID] = struct{}{}
		if b.CalendarSyncStatus != domain.CalendarSyncSynced {
			continue
		}
		if _, ok := externalIDs[b.CalendarEventID]; !ok {
			report.MissingEventIDs = append(report.MissingEventIDs, b.ID)
		}
	}

	for _, ev := range events {
		if _, ok := claimed[ev.ID]; !ok {
			report.UntrackedEventIDs = append(report.UntrackedEventIDs, ev.ID)
		}
	}

	return report, nil
}
