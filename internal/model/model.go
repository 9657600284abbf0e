package model

import (
	"encoding/json"
	"strings"
)

// Alert is one service alert as fetched from the feed. Alerts are rebuilt on
// every fetch; nothing about them is stored between runs.
type Alert struct {
	ID     string
	Effect string // effect code, e.g. "DELAY", "SHUTTLE"

	Header      string
	Description string
	URL         string

	// ActivePeriods are kept in feed order. Only the first one is mirrored
	// into the calendar.
	ActivePeriods    []ActivePeriod
	InformedEntities []InformedEntity
}

// ActivePeriod is a window during which an alert is in force. Start and End
// are RFC 3339 timestamps; an empty string means the side is open.
type ActivePeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// InformedEntity is the part of the network an alert concerns.
type InformedEntity struct {
	Route string `json:"route"`
}

// FirstPeriod returns the first active period, or the zero value when the
// alert has none.
func (a Alert) FirstPeriod() ActivePeriod {
	if len(a.ActivePeriods) == 0 {
		return ActivePeriod{}
	}
	return a.ActivePeriods[0]
}

// NormalizeEffect maps spellings like "station-issue" or " Station_Issue"
// to the feed's canonical "STATION_ISSUE".
func NormalizeEffect(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", "_"))
}

const FallbackLineName = "MBTA"

// LineName classifies the alert by the route of its first routed entity.
func LineName(a Alert) string {
	for _, e := range a.InformedEntities {
		if e.Route == "" {
			continue
		}
		switch {
		case e.Route == "Red":
			return "Red Line"
		case e.Route == "Orange":
			return "Orange Line"
		case strings.HasPrefix(e.Route, "Green"):
			return "Green Line"
		default:
			return FallbackLineName
		}
	}
	return FallbackLineName
}

// jsonAPIAlert mirrors one element of the MBTA v3 /alerts "data" array.
type jsonAPIAlert struct {
	ID         string `json:"id"`
	Attributes struct {
		Header         *string         `json:"header"`
		Description    *string         `json:"description"`
		URL            *string         `json:"url"`
		Effect         *string         `json:"effect"`
		ActivePeriod   []jsonAPIPeriod `json:"active_period"`
		InformedEntity []jsonAPIEntity `json:"informed_entity"`
	} `json:"attributes"`
}

type jsonAPIPeriod struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

type jsonAPIEntity struct {
	Route *string `json:"route"`
}

// UnmarshalJSON accepts the JSON:API resource shape and maps null strings
// to "".
func (a *Alert) UnmarshalJSON(data []byte) error {
	var raw jsonAPIAlert
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	attr := raw.Attributes
	*a = Alert{
		ID:          raw.ID,
		Effect:      deref(attr.Effect),
		Header:      deref(attr.Header),
		Description: deref(attr.Description),
		URL:         deref(attr.URL),
	}
	for _, p := range attr.ActivePeriod {
		a.ActivePeriods = append(a.ActivePeriods, ActivePeriod{Start: deref(p.Start), End: deref(p.End)})
	}
	for _, e := range attr.InformedEntity {
		a.InformedEntities = append(a.InformedEntities, InformedEntity{Route: deref(e.Route)})
	}
	return nil
}

// Alerts is the top-level /alerts response document.
type Alerts struct {
	Data []Alert `json:"data"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
