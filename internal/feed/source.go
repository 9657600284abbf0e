package feed

import (
	"context"
	"fmt"
	"time"

	appLog "mbtalerts/internal/log"
	"mbtalerts/internal/model"
)

// Wire formats HTTPSource can decode.
const (
	FormatJSONAPI = "jsonapi"
	FormatGTFSRT  = "gtfs-rt"
)

// HTTPSource fetches and decodes the alerts feed at URL.
type HTTPSource struct {
	Fetcher  *Fetcher
	URL      string
	Format   string
	Location *time.Location
}

// Alerts implements reconcile.AlertSource.
func (s *HTTPSource) Alerts(ctx context.Context) ([]model.Alert, error) {
	res, err := s.Fetcher.Fetch(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	if appLog.Enabled(appLog.LevelTrace) {
		appLog.Trace("feed body", "body", string(res.Body))
	}

	var alerts []model.Alert
	switch s.Format {
	case FormatJSONAPI, "":
		alerts, err = DecodeJSONAPI(res.Body)
	case FormatGTFSRT:
		alerts, err = DecodeGTFSRT(res.Body, s.Location)
	default:
		return nil, fmt.Errorf("unknown feed format %q", s.Format)
	}
	if err != nil {
		return nil, err
	}

	appLog.Info("fetched alerts", "alerts", len(alerts), "from_cache", res.FromCache)
	return alerts, nil
}
