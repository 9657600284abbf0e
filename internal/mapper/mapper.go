package mapper

import (
	"time"

	"mbtalerts/internal/calendar"
	"mbtalerts/internal/model"
	"mbtalerts/internal/summary"
)

const dateLayout = "2006-01-02"

// Mapper builds calendar payloads from alerts. The zero value is usable:
// "today" is then taken from the wall clock in UTC.
type Mapper struct {
	// Location decides which calendar day "today" is.
	Location *time.Location
	// Now replaces time.Now in tests.
	Now func() time.Time
}

// ToEvent returns the payload mirroring a. Only the first active period is
// used; later ones are ignored.
func (m Mapper) ToEvent(a model.Alert) calendar.Payload {
	p := a.FirstPeriod()
	start, end := m.eventTimes(p.Start, p.End)

	return calendar.Payload{
		Summary:     summary.Summarize(a),
		Description: description(a),
		Start:       start,
		End:         end,
		Private:     calendar.Tag(a.ID),
	}
}

func (m Mapper) eventTimes(start, end string) (calendar.EventTime, calendar.EventTime) {
	switch {
	case start != "" && end != "":
		return calendar.EventTime{DateTime: start}, calendar.EventTime{DateTime: end}

	case start != "":
		// Open-ended alert: all-day event on the start date. Calendar end
		// dates are exclusive, so the event ends on the next day.
		date := start
		if len(date) > len(dateLayout) {
			date = date[:len(dateLayout)]
		}
		return calendar.EventTime{Date: date}, calendar.EventTime{Date: NextDate(date)}

	default:
		today := m.today().Format(dateLayout)
		return calendar.EventTime{Date: today}, calendar.EventTime{Date: NextDate(today)}
	}
}

func (m Mapper) today() time.Time {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	loc := m.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// NextDate returns the day after a YYYY-MM-DD date. Strings that do not
// parse are returned unchanged.
func NextDate(date string) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, 1).Format(dateLayout)
}

// description falls back to the full header, since the summary is only an
// excerpt of it. A link to the alert page is appended when known.
func description(a model.Alert) string {
	d := a.Description
	if d == "" {
		d = a.Header
	}
	if a.URL != "" {
		if d != "" {
			d += "\n\n"
		}
		d += a.URL
	}
	return d
}
