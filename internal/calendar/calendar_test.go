package calendar

import "testing"

func TestEventAlertID(t *testing.T) {
	tests := []struct {
		name    string
		private map[string]string
		wantID  string
		wantOK  bool
	}{
		{"tagged", Tag("alert-123"), "alert-123", true},
		{"no private properties", nil, "", false},
		{"missing id", map[string]string{SourceKey: SourceValue}, "", false},
		{"empty id", map[string]string{SourceKey: SourceValue, AlertIDKey: ""}, "", false},
		{"id without marker", map[string]string{AlertIDKey: "alert-123"}, "", false},
		{"marker not true", map[string]string{SourceKey: "false", AlertIDKey: "alert-123"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := Event{ID: "event-1", Private: tt.private}.AlertID()
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("AlertID() = %q, %v; want %q, %v", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestEventTimeAllDay(t *testing.T) {
	if !(EventTime{Date: "2024-06-01"}).AllDay() {
		t.Error("date-only time should be all-day")
	}
	if (EventTime{DateTime: "2024-06-01T09:00:00-04:00"}).AllDay() {
		t.Error("timed instant should not be all-day")
	}
}
