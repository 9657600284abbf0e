package main

import (
	"bytes"
	"strings"
	"testing"

	"mbtalerts/internal/model"
)

func TestFormatDT(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-01-15T10:30:00-05:00", "1/15/2024 10:30am"},
		{"2024-01-15T14:45:00-05:00", "1/15/2024 2:45pm"},
		{"2024-01-15T00:00:00-05:00", "1/15/2024 12:00am"},
		{"2024-01-15T12:00:00-05:00", "1/15/2024 12:00pm"},
		{"not-a-date", "not-a-date"},
	}
	for _, tt := range tests {
		if got := formatDT(tt.in); got != tt.want {
			t.Errorf("formatDT(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func testAlert(route, effect, start, end string) model.Alert {
	a := model.Alert{
		ID:               "test-id",
		Effect:           effect,
		Header:           "Service disruption in effect",
		InformedEntities: []model.InformedEntity{{Route: route}},
	}
	if start != "" || end != "" {
		a.ActivePeriods = []model.ActivePeriod{{Start: start, End: end}}
	}
	return a
}

func TestFormatAlert(t *testing.T) {
	got := formatAlert(testAlert("Red", "DELAY", "2024-06-01T09:00:00-04:00", "2024-06-01T23:00:00-04:00"))
	want := "\x1b[1m[Red Line]\x1b[22m Service disruption in effect - (6/1/2024 9:00am - 6/1/2024 11:00pm)\n" +
		"DELAY Service disruption in effect"
	if got != want {
		t.Errorf("formatAlert() =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatAlert_StartOnly(t *testing.T) {
	got := formatAlert(testAlert("Green-D", "DETOUR", "2024-06-01T08:00:00-04:00", ""))
	if !strings.Contains(got, "[Green Line]") || !strings.Contains(got, " - (6/1/2024 8:00am)\n") {
		t.Errorf("formatAlert() = %q", got)
	}
}

func TestFormatAlert_NoPeriod(t *testing.T) {
	got := formatAlert(testAlert("Orange", "SUSPENSION", "", ""))
	if !strings.Contains(got, "SUSPENSION") || !strings.Contains(got, "Orange Line") {
		t.Errorf("formatAlert() = %q", got)
	}
	if strings.Contains(got, "(") {
		t.Errorf("no active period but dates shown: %q", got)
	}
}

func TestPrintAlerts(t *testing.T) {
	var buf bytes.Buffer
	printAlerts(&buf, nil)
	if buf.String() != "No active alerts.\n" {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	printAlerts(&buf, []model.Alert{testAlert("Red", "DELAY", "", ""), testAlert("Orange", "DELAY", "", "")})
	if n := strings.Count(buf.String(), separator+"\n"); n != 2 {
		t.Errorf("separators = %d, want 2", n)
	}
}
