// Package calendar defines the calendar collaborator the reconciler drives
// and the ownership tag that marks events created by this tool.
package calendar

import "context"

// Private extended property keys identifying owned events.
const (
	SourceKey   = "mbta_alert_source"
	SourceValue = "true"
	AlertIDKey  = "mbta_alert_id"
)

// Event is the part of a remote calendar event the reconciler needs.
type Event struct {
	ID      string
	Private map[string]string
}

// AlertID returns the alert id recorded on an owned event. Events without
// the source marker or without an id are foreign and report ok == false.
func (e Event) AlertID() (id string, ok bool) {
	if e.Private[SourceKey] != SourceValue {
		return "", false
	}
	id = e.Private[AlertIDKey]
	return id, id != ""
}

// EventTime is either a timed instant (DateTime, RFC 3339) or an all-day
// date (Date, YYYY-MM-DD). Exactly one of them is set.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// AllDay reports whether t is a date rather than an instant.
func (t EventTime) AllDay() bool {
	return t.DateTime == "" && t.Date != ""
}

// Payload is the full content written on create and update.
type Payload struct {
	Summary     string            `json:"summary"`
	Description string            `json:"description,omitempty"`
	Start       EventTime         `json:"start"`
	End         EventTime         `json:"end"`
	Private     map[string]string `json:"private"`
}

// Tag returns the private properties marking an event as produced by the
// alert with the given id.
func Tag(alertID string) map[string]string {
	return map[string]string{
		SourceKey:  SourceValue,
		AlertIDKey: alertID,
	}
}

// Service is a calendar the reconciler can mirror alerts into.
//
// List must return only events carrying the SourceKey marker, across all
// pages. Errors from any call are returned unchanged to the caller.
type Service interface {
	List(ctx context.Context) ([]Event, error)
	Create(ctx context.Context, p Payload) (eventID string, err error)
	Update(ctx context.Context, eventID string, p Payload) error
	Delete(ctx context.Context, eventID string) error
}
