// Package icsstore implements calendar.Service on top of a local .ics file.
//
// Owned events carry their private properties as X- properties
// (mbta_alert_id becomes X-MBTA-ALERT-ID). VEVENTs without the source marker
// are preserved across writes but never listed, updated or deleted.
package icsstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"mbtalerts/internal/calendar"
	appLog "mbtalerts/internal/log"
)

// ErrNotFound is returned by Update and Delete for unknown or foreign ids.
var ErrNotFound = errors.New("event not found")

const (
	productID  = "-//mbtalerts//alerts calendar//EN"
	xPrefix    = "X-"
	dateLayout = "20060102"
	utcLayout  = "20060102T150405Z"
)

// Store is a calendar backed by a single iCalendar file. The file is read
// on every call and rewritten atomically after each mutation.
type Store struct {
	Path string

	mu    sync.Mutex
	newID func() string
	now   func() time.Time
}

// New returns a Store for path. The file is created on the first write.
func New(path string) *Store {
	return &Store{
		Path:  path,
		newID: func() string { return uuid.NewString() + "@mbtalerts" },
		now:   time.Now,
	}
}

var _ calendar.Service = (*Store)(nil)

// List returns the owned events in file order.
func (s *Store) List(ctx context.Context) ([]calendar.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return nil, err
	}

	var out []calendar.Event
	for _, ve := range cal.Events() {
		priv := privateProps(ve)
		if _, owned := priv[calendar.SourceKey]; !owned {
			continue
		}
		out = append(out, calendar.Event{ID: ve.Id(), Private: priv})
	}
	return out, nil
}

// Create appends a new VEVENT and returns its UID.
func (s *Store) Create(ctx context.Context, p calendar.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return "", err
	}
	id := s.newID()
	s.fill(cal.AddEvent(id), p)
	if err := s.save(cal); err != nil {
		return "", err
	}
	appLog.Debug("ics event created", "id", id, "path", s.Path)
	return id, nil
}

// Update replaces the content of an owned event.
func (s *Store) Update(ctx context.Context, eventID string, p calendar.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return err
	}
	i := ownedIndex(cal, eventID)
	if i < 0 {
		return fmt.Errorf("update %s: %w", eventID, ErrNotFound)
	}
	ve := ical.NewEvent(eventID)
	s.fill(ve, p)
	cal.Components[i] = ve
	return s.save(cal)
}

// Delete removes an owned event.
func (s *Store) Delete(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return err
	}
	i := ownedIndex(cal, eventID)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", eventID, ErrNotFound)
	}
	cal.Components = append(cal.Components[:i], cal.Components[i+1:]...)
	return s.save(cal)
}

// Get reads an owned event back as a Payload. Timed values are returned in
// UTC.
func (s *Store) Get(ctx context.Context, eventID string) (calendar.Payload, error) {
	if err := ctx.Err(); err != nil {
		return calendar.Payload{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return calendar.Payload{}, err
	}
	i := ownedIndex(cal, eventID)
	if i < 0 {
		return calendar.Payload{}, fmt.Errorf("get %s: %w", eventID, ErrNotFound)
	}
	ve := cal.Components[i].(*ical.VEvent)

	var p calendar.Payload
	if prop := ve.GetProperty(ical.ComponentPropertySummary); prop != nil {
		p.Summary = prop.Value
	}
	if prop := ve.GetProperty(ical.ComponentPropertyDescription); prop != nil {
		p.Description = prop.Value
	}
	p.Start = readTime(ve.GetProperty(ical.ComponentPropertyDtStart))
	p.End = readTime(ve.GetProperty(ical.ComponentPropertyDtEnd))
	p.Private = privateProps(ve)
	return p, nil
}

func (s *Store) load() (*ical.Calendar, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(bytes.TrimSpace(data)) == 0) {
		cal := ical.NewCalendar()
		cal.SetProductId(productID)
		return cal, nil
	}
	if err != nil {
		return nil, err
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		appLog.Error("ics parse failed", err, "path", s.Path)
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return cal, nil
}

func (s *Store) save(cal *ical.Calendar) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".mbtalerts-*.ics.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(cal.Serialize()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, s.Path)
}

func (s *Store) fill(ve *ical.VEvent, p calendar.Payload) {
	ve.SetDtStampTime(s.now())
	ve.SetSummary(p.Summary)
	if p.Description != "" {
		ve.SetDescription(p.Description)
	}
	writeTime(ve, ical.ComponentPropertyDtStart, p.Start)
	writeTime(ve, ical.ComponentPropertyDtEnd, p.End)
	for _, k := range slices.Sorted(maps.Keys(p.Private)) {
		ve.SetProperty(ical.ComponentProperty(propName(k)), p.Private[k])
	}
}

// ownedIndex returns the position of the owned VEVENT with the given UID in
// cal.Components, or -1.
func ownedIndex(cal *ical.Calendar, id string) int {
	for i, c := range cal.Components {
		ve, ok := c.(*ical.VEvent)
		if !ok || ve.Id() != id {
			continue
		}
		if _, owned := privateProps(ve)[calendar.SourceKey]; owned {
			return i
		}
	}
	return -1
}

// propName maps a private key such as mbta_alert_id to X-MBTA-ALERT-ID.
func propName(key string) string {
	return xPrefix + strings.ToUpper(strings.ReplaceAll(key, "_", "-"))
}

func privateProps(ve *ical.VEvent) map[string]string {
	out := map[string]string{}
	for _, p := range ve.Properties {
		name := strings.ToUpper(p.IANAToken)
		if !strings.HasPrefix(name, xPrefix+"MBTA-") {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, xPrefix), "-", "_"))
		out[key] = p.Value
	}
	return out
}

// writeTime stores t as a DATE or UTC DATE-TIME. Values that do not parse
// are written verbatim so nothing the mapper produced is lost.
func writeTime(ve *ical.VEvent, prop ical.ComponentProperty, t calendar.EventTime) {
	if t.AllDay() {
		if d, err := time.Parse("2006-01-02", t.Date); err == nil {
			ve.SetProperty(prop, d.Format(dateLayout), ical.WithValue(string(ical.ValueDataTypeDate)))
			return
		}
		ve.SetProperty(prop, t.Date)
		return
	}
	if ts, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
		ve.SetProperty(prop, ts.UTC().Format(utcLayout))
		return
	}
	ve.SetProperty(prop, t.DateTime)
}

// readTime is the inverse of writeTime. A value without a time part, or
// with VALUE=DATE, is an all-day date.
func readTime(p *ical.IANAProperty) calendar.EventTime {
	if p == nil {
		return calendar.EventTime{}
	}
	val := strings.TrimSpace(p.Value)

	allDay := !strings.Contains(val, "T")
	if vs, ok := p.ICalParameters[string(ical.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}

	if allDay {
		if d, err := time.Parse(dateLayout, val); err == nil {
			return calendar.EventTime{Date: d.Format("2006-01-02")}
		}
		return calendar.EventTime{Date: val}
	}
	if ts, err := time.Parse(utcLayout, val); err == nil {
		return calendar.EventTime{DateTime: ts.Format(time.RFC3339)}
	}
	return calendar.EventTime{DateTime: val}
}
