package icsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mbtalerts/internal/calendar"
)

const foreignCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//someone else//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:dentist@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240603T140000Z\r\n" +
	"DTEND:20240603T150000Z\r\n" +
	"SUMMARY:Dentist\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "alerts.ics"))
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("event-%d", n)
	}
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func payload(alertID, summary string, start, end calendar.EventTime) calendar.Payload {
	return calendar.Payload{
		Summary:     summary,
		Description: "Signal problem at Broadway",
		Start:       start,
		End:         end,
		Private:     calendar.Tag(alertID),
	}
}

func TestStore_EmptyFile(t *testing.T) {
	s := newTestStore(t)
	events, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("List() = %v, want none", events)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	timed := payload("614321", "[Red Line] Delay",
		calendar.EventTime{DateTime: "2024-06-01T09:00:00-04:00"},
		calendar.EventTime{DateTime: "2024-06-01T17:00:00-04:00"})
	allDay := payload("600001", "[MBTA] Detour",
		calendar.EventTime{Date: "2024-06-30"},
		calendar.EventTime{Date: "2024-07-01"})

	id1, err := s.Create(ctx, timed)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.Create(ctx, allDay)
	if err != nil {
		t.Fatal(err)
	}

	events, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []calendar.Event{
		{ID: id1, Private: calendar.Tag("614321")},
		{ID: id2, Private: calendar.Tag("600001")},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	got, err := s.Get(ctx, id1)
	if err != nil {
		t.Fatal(err)
	}
	timed.Start.DateTime = "2024-06-01T13:00:00Z"
	timed.End.DateTime = "2024-06-01T21:00:00Z"
	if diff := cmp.Diff(timed, got); diff != "" {
		t.Errorf("Get(timed) mismatch (-want +got):\n%s", diff)
	}

	got, err = s.Get(ctx, id2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(allDay, got); diff != "" {
		t.Errorf("Get(all-day) mismatch (-want +got):\n%s", diff)
	}

	updated := payload("614321", "[Red Line] Suspension",
		calendar.EventTime{Date: "2024-06-02"},
		calendar.EventTime{Date: "2024-06-03"})
	if err := s.Update(ctx, id1, updated); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, id1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(updated, got); diff != "" {
		t.Errorf("Get(updated) mismatch (-want +got):\n%s", diff)
	}

	if err := s.Delete(ctx, id2); err != nil {
		t.Fatal(err)
	}
	events, err = s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ID != id1 {
		t.Errorf("after delete List() = %v", events)
	}
}

func TestStore_PreservesForeignEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := os.WriteFile(s.Path, []byte(foreignCalendar), 0o644); err != nil {
		t.Fatal(err)
	}

	events, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("foreign events listed: %v", events)
	}

	if err := s.Delete(ctx, "dentist@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(foreign) err = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, "dentist@example.com", calendar.Payload{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(foreign) err = %v, want ErrNotFound", err)
	}

	id, err := s.Create(ctx, payload("1", "[Orange Line] Delay",
		calendar.EventTime{Date: "2024-06-01"}, calendar.EventTime{Date: "2024-06-02"}))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "UID:dentist@example.com") {
		t.Errorf("foreign event lost:\n%s", data)
	}
	if strings.Contains(string(data), "X-MBTA-ALERT-ID") {
		t.Errorf("owned event not removed:\n%s", data)
	}
}

func TestStore_UnparseableTimesKeptVerbatim(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := payload("9", "[MBTA] Delay",
		calendar.EventTime{Date: "soon"},
		calendar.EventTime{Date: "soon"})
	id, err := s.Create(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestStore(t)
	if _, err := s.List(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("List err = %v", err)
	}
	if _, err := s.Create(ctx, calendar.Payload{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Create err = %v", err)
	}
}

func TestPropName(t *testing.T) {
	if got := propName(calendar.AlertIDKey); got != "X-MBTA-ALERT-ID" {
		t.Errorf("propName = %q", got)
	}
	if got := propName(calendar.SourceKey); got != "X-MBTA-ALERT-SOURCE" {
		t.Errorf("propName = %q", got)
	}
}
