// Package calendar abstracts the external calendar system bookings are
// mirrored to. The core only ever talks to the Client interface; the
// concrete provider is chosen at wiring time.
package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrUnconfigured is reported by the Disabled client for every call. It is
// not a transport failure: sync treats it as "no calendar to sync to".
var ErrUnconfigured = errors.New("calendar client not configured")

// Event statuses understood by the external calendar.
const (
	EventStatusConfirmed = "confirmed"
	EventStatusTentative = "tentative"
	EventStatusCancelled = "cancelled"
)

// Event is the provider-neutral event representation produced by the
// projector and consumed by Client implementations.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Status      string
	Attendees   []string
}

type Client interface {
	CreateEvent(ctx context.Context, event Event) (string, error)
	UpdateEvent(ctx context.Context, eventID string, event Event) error
	DeleteEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error)
}
