package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleConfig configures the Google Calendar client. An empty
// CredentialsFile or CalendarID means the calendar is not set up for this
// deployment and NewGoogleClient falls back to the Disabled client.
type GoogleConfig struct {
	CredentialsFile string
	CalendarID      string
}

type googleClient struct {
	svc        *gcal.Service
	calendarID string
}

func NewGoogleClient(ctx context.Context, cfg GoogleConfig) (Client, error) {
	if cfg.CredentialsFile == "" || cfg.CalendarID == "" {
		return Disabled(), nil
	}

	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	return &googleClient{svc: svc, calendarID: cfg.CalendarID}, nil
}

func (c *googleClient) CreateEvent(ctx context.Context, event Event) (string, error) {
	created, err := c.svc.Events.Insert(c.calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

func (c *googleClient) UpdateEvent(ctx context.Context, eventID string, event Event) error {
	_, err := c.svc.Events.Update(c.calendarID, eventID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update event %s: %w", eventID, err)
	}
	return nil
}

func (c *googleClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		// An event deleted out-of-band is already in the state we want.
		if gone(err) {
			return nil
		}
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

func (c *googleClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	var out []Event
	pageToken := ""
	for {
		call := c.svc.Events.List(c.calendarID).
			TimeMin(timeMin.UTC().Format(time.RFC3339)).
			TimeMax(timeMax.UTC().Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		for _, item := range page.Items {
			out = append(out, fromGoogleEvent(item))
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func gone(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
}

func toGoogleEvent(event Event) *gcal.Event {
	out := &gcal.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Status:      event.Status,
		Start: &gcal.EventDateTime{
			DateTime: event.Start.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &gcal.EventDateTime{
			DateTime: event.End.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
	}
	for _, email := range event.Attendees {
		out.Attendees = append(out.Attendees, &gcal.EventAttendee{Email: email})
	}
	return out
}

func fromGoogleEvent(in *gcal.Event) Event {
	out := Event{
		ID:          in.Id,
		Summary:     in.Summary,
		Description: in.Description,
		Status:      in.Status,
	}
	if in.Start != nil && in.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, in.Start.DateTime); err == nil {
			out.Start = t.UTC()
		}
	}
	if in.End != nil && in.End.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, in.End.DateTime); err == nil {
			out.End = t.UTC()
		}
	}
	for _, a := range in.Attendees {
		if a != nil && a.Email != "" {
			out.Attendees = append(out.Attendees, a.Email)
		}
	}
	return out
}
