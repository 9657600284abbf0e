package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLineName(t *testing.T) {
	tests := []struct {
		name     string
		entities []InformedEntity
		want     string
	}{
		{"red", []InformedEntity{{Route: "Red"}}, "Red Line"},
		{"orange", []InformedEntity{{Route: "Orange"}}, "Orange Line"},
		{"green", []InformedEntity{{Route: "Green"}}, "Green Line"},
		{"green b", []InformedEntity{{Route: "Green-B"}}, "Green Line"},
		{"green e", []InformedEntity{{Route: "Green-E"}}, "Green Line"},
		{"blue", []InformedEntity{{Route: "Blue"}}, "MBTA"},
		{"no entities", nil, "MBTA"},
		{"entity without route", []InformedEntity{{}}, "MBTA"},
		{"first routed entity wins", []InformedEntity{{}, {Route: "Orange"}, {Route: "Red"}}, "Orange Line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Alert{ID: "test-id", InformedEntities: tt.entities}
			if got := LineName(a); got != tt.want {
				t.Errorf("LineName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFirstPeriod(t *testing.T) {
	if got := (Alert{}).FirstPeriod(); got != (ActivePeriod{}) {
		t.Errorf("FirstPeriod of empty alert = %+v", got)
	}
	a := Alert{ActivePeriods: []ActivePeriod{{Start: "s1"}, {Start: "s2"}}}
	if got := a.FirstPeriod(); got.Start != "s1" {
		t.Errorf("FirstPeriod = %+v", got)
	}
}

func TestNormalizeEffect(t *testing.T) {
	for in, want := range map[string]string{
		"STATION_ISSUE":      "STATION_ISSUE",
		"station-issue":      "STATION_ISSUE",
		" Elevator_Closure ": "ELEVATOR_CLOSURE",
		"delay":              "DELAY",
		"":                   "",
	} {
		if got := NormalizeEffect(in); got != want {
			t.Errorf("NormalizeEffect(%q) = %q, want %q", in, got, want)
		}
	}
}

const exampleAlerts = `{
  "data": [
    {
      "id": "614321",
      "type": "alert",
      "attributes": {
        "header": "Red Line: Shuttle buses will replace service between Broadway and Ashmont this weekend.",
        "description": null,
        "url": "https://www.mbta.com/RedLineWork",
        "effect": "SHUTTLE",
        "active_period": [
          {"start": "2024-06-01T04:30:00-04:00", "end": "2024-06-03T02:30:00-04:00"},
          {"start": "2024-06-08T04:30:00-04:00", "end": null}
        ],
        "informed_entity": [
          {"route": "Red", "route_type": 1, "stop": "place-brdwy"},
          {"route": null, "stop": "place-asmnl"}
        ]
      }
    },
    {
      "id": "600001",
      "type": "alert",
      "attributes": {
        "header": "The elevator at Park Street is out of service.",
        "effect": "ELEVATOR_CLOSURE",
        "active_period": [],
        "informed_entity": []
      }
    }
  ]
}`

func TestDecodeJSONAPI(t *testing.T) {
	var got Alerts
	if err := json.Unmarshal([]byte(exampleAlerts), &got); err != nil {
		t.Fatal(err)
	}

	want := Alerts{Data: []Alert{
		{
			ID:     "614321",
			Effect: "SHUTTLE",
			Header: "Red Line: Shuttle buses will replace service between Broadway and Ashmont this weekend.",
			URL:    "https://www.mbta.com/RedLineWork",
			ActivePeriods: []ActivePeriod{
				{Start: "2024-06-01T04:30:00-04:00", End: "2024-06-03T02:30:00-04:00"},
				{Start: "2024-06-08T04:30:00-04:00"},
			},
			InformedEntities: []InformedEntity{{Route: "Red"}, {}},
		},
		{
			ID:     "600001",
			Effect: "ELEVATOR_CLOSURE",
			Header: "The elevator at Park Street is out of service.",
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded alerts mismatch (-want +got):\n%s", diff)
	}
}
