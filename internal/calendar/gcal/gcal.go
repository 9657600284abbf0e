// Package gcal implements calendar.Service with the Google Calendar v3 API.
package gcal

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2/google"
	gcalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"mbtalerts/internal/calendar"
	appLog "mbtalerts/internal/log"
	"mbtalerts/internal/secret"
)

// Environment variables read by NewFromEnv.
const (
	EnvServiceAccountKey = "GOOGLE_SERVICE_ACCOUNT_KEY"
	EnvCalendarID        = "GOOGLE_CALENDAR_ID"
)

// ownedFilter restricts listing to events carrying the source marker.
var ownedFilter = calendar.SourceKey + "=" + calendar.SourceValue

// Client talks to a single Google calendar.
type Client struct {
	svc        *gcalendar.Service
	calendarID string
}

var _ calendar.Service = (*Client)(nil)

// New returns a Client for calendarID. opts are passed to the API client
// and must provide credentials.
func New(ctx context.Context, calendarID string, opts ...option.ClientOption) (*Client, error) {
	if calendarID == "" {
		return nil, errors.New("calendar id is empty")
	}
	svc, err := gcalendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Client{svc: svc, calendarID: calendarID}, nil
}

// NewFromEnv authenticates with the service account key in
// GOOGLE_SERVICE_ACCOUNT_KEY (or the file named by
// GOOGLE_SERVICE_ACCOUNT_KEY_FILE), falling back to application default
// credentials. GOOGLE_CALENDAR_ID overrides calendarID when set.
func NewFromEnv(ctx context.Context, calendarID string) (*Client, error) {
	if id, err := secret.Optional(EnvCalendarID); err != nil {
		return nil, err
	} else if id != "" {
		calendarID = id
	}
	if calendarID == "" {
		return nil, fmt.Errorf("no calendar id: set %s or calendar.calendar_id", EnvCalendarID)
	}

	key, err := secret.Optional(EnvServiceAccountKey)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if key != "" {
		creds, err := google.CredentialsFromJSON(ctx, []byte(key), gcalendar.CalendarScope)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvServiceAccountKey, err)
		}
		opts = append(opts, option.WithCredentials(creds))
		appLog.Debug("google calendar auth", "method", "service_account")
	} else {
		opts = append(opts, option.WithScopes(gcalendar.CalendarScope))
		appLog.Debug("google calendar auth", "method", "application_default")
	}
	return New(ctx, calendarID, opts...)
}

// List returns every owned event, following pagination.
func (c *Client) List(ctx context.Context) ([]calendar.Event, error) {
	var out []calendar.Event
	call := c.svc.Events.List(c.calendarID).PrivateExtendedProperty(ownedFilter)
	err := call.Pages(ctx, func(page *gcalendar.Events) error {
		for _, item := range page.Items {
			ev := calendar.Event{ID: item.Id}
			if item.ExtendedProperties != nil {
				ev.Private = item.ExtendedProperties.Private
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	appLog.Debug("google calendar listed", "calendar", c.calendarID, "events", len(out))
	return out, nil
}

// Create inserts a new event.
func (c *Client) Create(ctx context.Context, p calendar.Payload) (string, error) {
	ev, err := c.svc.Events.Insert(c.calendarID, toEvent(p)).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return ev.Id, nil
}

// Update replaces the whole event (PUT), not a patch.
func (c *Client) Update(ctx context.Context, eventID string, p calendar.Payload) error {
	_, err := c.svc.Events.Update(c.calendarID, eventID, toEvent(p)).Context(ctx).Do()
	return err
}

// Delete removes the event.
func (c *Client) Delete(ctx context.Context, eventID string) error {
	return c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

func toEvent(p calendar.Payload) *gcalendar.Event {
	return &gcalendar.Event{
		Summary:     p.Summary,
		Description: p.Description,
		Start:       toDateTime(p.Start),
		End:         toDateTime(p.End),
		ExtendedProperties: &gcalendar.EventExtendedProperties{
			Private: p.Private,
		},
	}
}

func toDateTime(t calendar.EventTime) *gcalendar.EventDateTime {
	return &gcalendar.EventDateTime{DateTime: t.DateTime, Date: t.Date}
}
