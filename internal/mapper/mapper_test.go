package mapper

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mbtalerts/internal/calendar"
	"mbtalerts/internal/model"
)

func makeAlert(route, effect, start, end string) model.Alert {
	return model.Alert{
		ID:               "alert-42",
		Effect:           effect,
		Header:           "Test header",
		Description:      "Test description",
		ActivePeriods:    []model.ActivePeriod{{Start: start, End: end}},
		InformedEntities: []model.InformedEntity{{Route: route}},
	}
}

func fixedMapper(now string) Mapper {
	ts, err := time.Parse(time.RFC3339, now)
	if err != nil {
		panic(err)
	}
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return Mapper{Location: ny, Now: func() time.Time { return ts }}
}

func TestNextDate(t *testing.T) {
	tests := map[string]string{
		"2024-03-15": "2024-03-16",
		"2024-01-31": "2024-02-01",
		"2024-12-31": "2025-01-01",
		"2024-02-29": "2024-03-01",
		"2023-02-28": "2023-03-01",
		"2024-02-28": "2024-02-29",
		"not-a-date": "not-a-date",
		"2024-13-01": "2024-13-01",
		"":           "",
	}
	for in, want := range tests {
		if got := NextDate(in); got != want {
			t.Errorf("NextDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToEvent_BothTimesPresent(t *testing.T) {
	a := makeAlert("Red", "DELAY", "2024-06-01T09:00:00-04:00", "2024-06-01T23:00:00-04:00")

	got := Mapper{}.ToEvent(a)
	want := calendar.Payload{
		Summary:     "[Red Line] Test header",
		Description: "Test description",
		Start:       calendar.EventTime{DateTime: "2024-06-01T09:00:00-04:00"},
		End:         calendar.EventTime{DateTime: "2024-06-01T23:00:00-04:00"},
		Private:     map[string]string{"mbta_alert_source": "true", "mbta_alert_id": "alert-42"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestToEvent_StartOnlyIsAllDay(t *testing.T) {
	tests := []struct {
		start, wantStart, wantEnd string
	}{
		{"2024-01-15T10:00:00-05:00", "2024-01-15", "2024-01-16"},
		{"2024-03-31T08:00:00-04:00", "2024-03-31", "2024-04-01"},
		{"2024-12-31T08:00:00-05:00", "2024-12-31", "2025-01-01"},
		{"2024-02-29T08:00:00-05:00", "2024-02-29", "2024-03-01"},
	}
	for _, tt := range tests {
		got := Mapper{}.ToEvent(makeAlert("Green-B", "SUSPENSION", tt.start, ""))
		if got.Start != (calendar.EventTime{Date: tt.wantStart}) || got.End != (calendar.EventTime{Date: tt.wantEnd}) {
			t.Errorf("start %s: got %+v - %+v, want %s - %s", tt.start, got.Start, got.End, tt.wantStart, tt.wantEnd)
		}
	}
}

func TestToEvent_NoPeriodIsTodayInLocation(t *testing.T) {
	// 02:30 UTC on June 1st is still May 31st in Boston.
	m := fixedMapper("2024-06-01T02:30:00Z")

	a := makeAlert("Orange", "SUSPENSION", "", "")
	a.ActivePeriods = nil

	got := m.ToEvent(a)
	if got.Start != (calendar.EventTime{Date: "2024-05-31"}) || got.End != (calendar.EventTime{Date: "2024-06-01"}) {
		t.Errorf("got %+v - %+v", got.Start, got.End)
	}
}

func TestToEvent_EndOnlyIsTreatedAsOpen(t *testing.T) {
	m := fixedMapper("2024-12-31T15:00:00Z")
	got := m.ToEvent(makeAlert("Red", "DELAY", "", "2025-01-05T00:00:00-05:00"))
	if got.Start != (calendar.EventTime{Date: "2024-12-31"}) || got.End != (calendar.EventTime{Date: "2025-01-01"}) {
		t.Errorf("got %+v - %+v", got.Start, got.End)
	}
}

func TestToEvent_OnlyFirstPeriodIsUsed(t *testing.T) {
	a := makeAlert("Red", "DELAY", "2024-06-01T09:00:00-04:00", "2024-06-01T23:00:00-04:00")
	a.ActivePeriods = append(a.ActivePeriods, model.ActivePeriod{Start: "2024-06-08T09:00:00-04:00"})

	got := Mapper{}.ToEvent(a)
	if got.Start.DateTime != "2024-06-01T09:00:00-04:00" {
		t.Errorf("Start = %+v", got.Start)
	}
}

func TestToEvent_ShortStartPassesThrough(t *testing.T) {
	got := Mapper{}.ToEvent(makeAlert("Red", "DELAY", "soon", ""))
	if got.Start.Date != "soon" || got.End.Date != "soon" {
		t.Errorf("got %+v - %+v", got.Start, got.End)
	}
}

func TestToEvent_Description(t *testing.T) {
	tests := []struct {
		name        string
		description string
		url         string
		want        string
	}{
		{"description", "Details.", "", "Details."},
		{"falls back to header", "", "", "Test header"},
		{"url appended", "Details.", "https://mbta.com/alerts", "Details.\n\nhttps://mbta.com/alerts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := makeAlert("Red", "DELAY", "", "")
			a.Description = tt.description
			a.URL = tt.url
			if got := (Mapper{}).ToEvent(a).Description; got != tt.want {
				t.Errorf("Description = %q, want %q", got, tt.want)
			}
		})
	}
}
