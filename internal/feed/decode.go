package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"mbtalerts/internal/model"
)

// DecodeJSONAPI parses an MBTA v3 /alerts response.
func DecodeJSONAPI(body []byte) ([]model.Alert, error) {
	var doc model.Alerts
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode alerts JSON: %w", err)
	}
	return doc.Data, nil
}

// gtfsEffects renames GTFS-Realtime effects that have a direct MBTA
// counterpart, so labels and the skip list work the same for both feeds.
var gtfsEffects = map[string]string{
	"SIGNIFICANT_DELAYS":  "DELAY",
	"NO_SERVICE":          "SUSPENSION",
	"MODIFIED_SERVICE":    "SERVICE_CHANGE",
	"ACCESSIBILITY_ISSUE": "ACCESS_ISSUE",
}

// DecodeGTFSRT parses a GTFS-Realtime FeedMessage and returns its alerts.
// Time ranges are rendered as RFC 3339 in loc (UTC when nil).
func DecodeGTFSRT(body []byte, loc *time.Location) ([]model.Alert, error) {
	if loc == nil {
		loc = time.UTC
	}

	msg := new(gtfs.FeedMessage)
	if err := proto.Unmarshal(body, msg); err != nil {
		return nil, fmt.Errorf("decode GTFS-Realtime: %w", err)
	}

	alerts := make([]model.Alert, 0, len(msg.GetEntity()))
	for _, e := range msg.GetEntity() {
		ga := e.GetAlert()
		if ga == nil || e.GetIsDeleted() {
			continue
		}

		effect := ga.GetEffect().String()
		if renamed, ok := gtfsEffects[effect]; ok {
			effect = renamed
		}

		a := model.Alert{
			ID:          e.GetId(),
			Effect:      effect,
			Header:      translation(ga.GetHeaderText()),
			Description: translation(ga.GetDescriptionText()),
			URL:         translation(ga.GetUrl()),
		}
		for _, tr := range ga.GetActivePeriod() {
			a.ActivePeriods = append(a.ActivePeriods, model.ActivePeriod{
				Start: epoch(tr.GetStart(), loc),
				End:   epoch(tr.GetEnd(), loc),
			})
		}
		for _, sel := range ga.GetInformedEntity() {
			a.InformedEntities = append(a.InformedEntities, model.InformedEntity{Route: sel.GetRouteId()})
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// translation picks the English text, falling back to the first one.
func translation(ts *gtfs.TranslatedString) string {
	tt := ts.GetTranslation()
	for _, t := range tt {
		lang := strings.ToLower(t.GetLanguage())
		if lang == "en" || strings.HasPrefix(lang, "en-") {
			return t.GetText()
		}
	}
	if len(tt) > 0 {
		return tt[0].GetText()
	}
	return ""
}

func epoch(sec uint64, loc *time.Location) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(int64(sec), 0).In(loc).Format(time.RFC3339)
}
