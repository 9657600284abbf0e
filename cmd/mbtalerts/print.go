package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"mbtalerts/internal/model"
	"mbtalerts/internal/summary"
)

const separator = "----------------------------------------"

const (
	boldOn  = "\x1b[1m"
	boldOff = "\x1b[22m"
)

// formatDT renders an RFC 3339 timestamp as "1/15/2024 10:30am" in its own
// offset. Anything else is returned unchanged.
func formatDT(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format("1/2/2006 3:04pm")
}

// formatAlert returns the two-line terminal rendering of a: the summary
// with its "[Line]" part in bold followed by the active window, then the
// effect code and the full header.
func formatAlert(a model.Alert) string {
	title := summary.Summarize(a)
	if i := strings.IndexByte(title, ']'); i >= 0 {
		title = boldOn + title[:i+1] + boldOff + title[i+1:]
	}

	var window string
	p := a.FirstPeriod()
	switch {
	case p.Start != "" && p.End != "":
		window = fmt.Sprintf(" - (%s - %s)", formatDT(p.Start), formatDT(p.End))
	case p.Start != "":
		window = fmt.Sprintf(" - (%s)", formatDT(p.Start))
	}

	return fmt.Sprintf("%s%s\n%s %s", title, window, a.Effect, a.Header)
}

func printAlerts(w io.Writer, alerts []model.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "No active alerts.")
		return
	}
	for _, a := range alerts {
		fmt.Fprintln(w, separator)
		fmt.Fprintln(w, formatAlert(a))
	}
}
