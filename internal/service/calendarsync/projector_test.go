package calendarsync

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/calendar"
	"salonbook/backend/internal/domain"
)

func projectorBooking() domain.Booking {
	return domain.Booking{
		ID:         uuid.MustParse("00000000-0000-0000-0000-000000000042"),
		CustomerID: "c1",
		Services: []domain.ServiceItem{
			{ServiceID: "s1", TechnicianID: "t1", Duration: 60, Price: 45},
			{ServiceID: "s2", TechnicianID: "t2", Duration: 45, Price: 30},
		},
		AppointmentDate: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		StartTime:       time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC),
		EndTime:         time.Date(2025, 12, 1, 10, 45, 0, 0, time.UTC),
		Status:          domain.BookingStatusConfirmed,
		TotalDuration:   105,
		TotalPrice:      75,
		PaymentStatus:   "pending",
		Notes:           "window seat preferred",
	}
}

func projectorEnrichment() Enrichment {
	return Enrichment{
		CustomerName:     "Dana Fox",
		CustomerEmail:    "dana@example.com",
		ServiceNames:     map[string]string{"s1": "Gel Manicure", "s2": "Pedicure"},
		TechnicianNames:  map[string]string{"t1": "Amara", "t2": "Lee"},
		TechnicianEmails: map[string]string{"t1": "amara@example.com", "t2": "lee@example.com"},
	}
}

func TestProject_SummaryFromServiceNames(t *testing.T) {
	ev := Project(projectorBooking(), projectorEnrichment())
	if ev.Summary != "Gel Manicure + Pedicure" {
		t.Fatalf("summary = %q, want joined service names", ev.Summary)
	}
}

func TestProject_SummaryFallsBackToServiceCount(t *testing.T) {
	ev := Project(projectorBooking(), Enrichment{})
	if ev.Summary != "2 services" {
		t.Fatalf("summary = %q, want %q", ev.Summary, "2 services")
	}

	b := projectorBooking()
	b.Services = b.Services[:1]
	ev = Project(b, Enrichment{})
	if ev.Summary != "1 service" {
		t.Fatalf("summary = %q, want %q", ev.Summary, "1 service")
	}
}

func TestProject_DescriptionContent(t *testing.T) {
	b := projectorBooking()
	ev := Project(b, projectorEnrichment())

	for _, want := range []string{
		"Booking 00000000-0000-0000-0000-000000000042",
		"Customer: Dana Fox (dana@example.com)",
		"- Gel Manicure with Amara (1h, $45.00)",
		"- Pedicure with Lee (45m, $30.00)",
		"Total duration: 1h 45m",
		"Total price: $75.00",
		"Payment: pending",
		"Notes: window seat preferred",
	} {
		if !strings.Contains(ev.Description, want) {
			t.Fatalf("description missing %q:\n%s", want, ev.Description)
		}
	}
	if strings.Contains(ev.Description, "105") {
		t.Fatalf("total duration must be formatted as hours and minutes, not raw minutes:\n%s", ev.Description)
	}
}

func TestProject_DescriptionDegradesToIDs(t *testing.T) {
	ev := Project(projectorBooking(), Enrichment{})
	for _, want := range []string{"Customer: c1", "- s1 with t1"} {
		if !strings.Contains(ev.Description, want) {
			t.Fatalf("description missing %q:\n%s", want, ev.Description)
		}
	}
}

func TestProject_StatusMapping(t *testing.T) {
	cases := []struct {
		status domain.BookingStatus
		want   string
	}{
		{domain.BookingStatusConfirmed, calendar.EventStatusConfirmed},
		{domain.BookingStatusInProgress, calendar.EventStatusConfirmed},
		{domain.BookingStatusCompleted, calendar.EventStatusConfirmed},
		{domain.BookingStatusCancelled, calendar.EventStatusCancelled},
		{domain.BookingStatusNoShow, calendar.EventStatusCancelled},
		{domain.BookingStatusInitial, calendar.EventStatusTentative},
	}
	for _, tc := range cases {
		b := projectorBooking()
		b.Status = tc.status
		if got := Project(b, Enrichment{}).Status; got != tc.want {
			t.Fatalf("status %q maps to %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestProject_AttendeesDeduplicated(t *testing.T) {
	enr := projectorEnrichment()
	enr.TechnicianEmails["t2"] = "amara@example.com" // same mailbox as t1

	ev := Project(projectorBooking(), enr)
	want := []string{"dana@example.com", "amara@example.com"}
	if !reflect.DeepEqual(ev.Attendees, want) {
		t.Fatalf("attendees = %v, want %v", ev.Attendees, want)
	}
}

func TestProject_Deterministic(t *testing.T) {
	b := projectorBooking()
	enr := projectorEnrichment()
	first := Project(b, enr)
	second := Project(b, enr)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("projection not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestFormatMinutes(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{0, "0m"},
		{45, "45m"},
		{60, "1h"},
		{90, "1h 30m"},
		{135, "2h 15m"},
	}
	for _, tc := range cases {
		if got := formatMinutes(tc.minutes); got != tc.want {
			t.Fatalf("formatMinutes(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}
