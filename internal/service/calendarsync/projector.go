package calendarsync

import (
	"fmt"
	"strings"

	"salonbook/backend/internal/calendar"
	"salonbook/backend/internal/domain"
)

// Enrichment carries optional display data for the projection. Lookups are
// keyed by service and technician IDs; anything missing degrades to an ID or
// a count, never to an error. Passing the zero value is always valid.
type Enrichment struct {
	CustomerName     string
	CustomerEmail    string
	ServiceNames     map[string]string
	TechnicianNames  map[string]string
	TechnicianEmails map[string]string
}

// Project maps a booking into its external calendar event. It is a pure
// transform: the same booking and enrichment always produce the same event,
// which is what makes re-sync idempotent.
func Project(b domain.Booking, enr Enrichment) calendar.Event {
	return calendar.Event{
		Summary:     projectSummary(b, enr),
		Description: projectDescription(b, enr),
		Start:       b.StartTime.UTC(),
		End:         b.EndTime.UTC(),
		Status:      eventStatus(b.Status),
		Attendees:   projectAttendees(b, enr),
	}
}

func projectSummary(b domain.Booking, enr Enrichment) string {
	var names []string
	for _, s := range b.Services {
		if name := enr.ServiceNames[s.ServiceID]; name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		if len(b.Services) == 1 {
			return "1 service"
		}
		return fmt.Sprintf("%d services", len(b.Services))
	}
	return strings.Join(names, " + ")
}

func projectDescription(b domain.Booking, enr Enrichment) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Booking %s\n", b.ID)

	customer := enr.CustomerName
	if customer == "" {
		customer = b.CustomerID
	}
	fmt.Fprintf(&sb, "Customer: %s", customer)
	if enr.CustomerEmail != "" {
		fmt.Fprintf(&sb, " (%s)", enr.CustomerEmail)
	}
	sb.WriteString("\n")

	sb.WriteString("Services:\n")
	for _, s := range b.Services {
		name := enr.ServiceNames[s.ServiceID]
		if name == "" {
			name = s.ServiceID
		}
		tech := enr.TechnicianNames[s.TechnicianID]
		if tech == "" {
			tech = s.TechnicianID
		}
		fmt.Fprintf(&sb, "- %s with %s (%s, $%.2f)\n", name, tech, formatMinutes(s.Duration), s.Price)
	}

	fmt.Fprintf(&sb, "Total duration: %s\n", formatMinutes(b.TotalDuration))
	fmt.Fprintf(&sb, "Total price: $%.2f\n", b.TotalPrice)
	fmt.Fprintf(&sb, "Payment: %s", paymentStatus(b))

	if b.Notes != "" {
		fmt.Fprintf(&sb, "\nNotes: %s", b.Notes)
	}
	if b.CustomerNotes != "" {
		fmt.Fprintf(&sb, "\nCustomer notes: %s", b.CustomerNotes)
	}

	return sb.String()
}

func projectAttendees(b domain.Booking, enr Enrichment) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(email string) {
		if email == "" {
			return
		}
		if _, ok := seen[email]; ok {
			return
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}

	add(enr.CustomerEmail)
	for _, id := range b.DistinctTechnicianIDs() {
		add(enr.TechnicianEmails[id])
	}
	return out
}

// eventStatus collapses the six booking statuses onto the calendar's three.
func eventStatus(s domain.BookingStatus) string {
	switch s {
	case domain.BookingStatusConfirmed, domain.BookingStatusInProgress, domain.BookingStatusCompleted:
		return calendar.EventStatusConfirmed
	case domain.BookingStatusCancelled, domain.BookingStatusNoShow:
		return calendar.EventStatusCancelled
	default:
		return calendar.EventStatusTentative
	}
}

func paymentStatus(b domain.Booking) string {
	if b.PaymentStatus == "" {
		return "pending"
	}
	return b.PaymentStatus
}

func formatMinutes(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}
	h := minutes / 60
	m := minutes % 60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
