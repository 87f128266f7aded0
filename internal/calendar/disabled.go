package calendar

import (
	"context"
	"time"
)

// Disabled returns a Client whose every call reports ErrUnconfigured. It
// stands in when no calendar credentials are present so call sites never
// need a nil check.
func Disabled() Client {
	return disabled{}
}

type disabled struct{}

func (disabled) CreateEvent(ctx context.Context, event Event) (string, error) {
	return "", ErrUnconfigured
}

func (disabled) UpdateEvent(ctx context.Context, eventID string, event Event) error {
	return ErrUnconfigured
}

func (disabled) DeleteEvent(ctx context.Context, eventID string) error {
	return ErrUnconfigured
}

func (disabled) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	return nil, ErrUnconfigured
}
