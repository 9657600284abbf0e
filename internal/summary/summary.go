// Package summary turns a verbose alert header into a short calendar title.
//
// The title is built by a chain of small heuristics, each exported so it can
// be tested on its own:
//
//	StripLinePrefix -> LocationPhrase -> (EffectLabel | BriefContent)
//
// None of them understands language; they look for fixed markers that the
// MBTA uses consistently in its headers.
package summary

import (
	"strings"
	"unicode/utf8"

	"mbtalerts/internal/model"
)

// maxLinePrefixLen is the longest "Red Line"-style label, in characters,
// that StripLinePrefix drops. Longer prefixes are usually real sentences that happen to contain
// a colon.
const maxLinePrefixLen = 35

// briefCommaMin is the character offset from which a ", " may end the brief
// content. Earlier commas tend to split the subject from its verb.
const briefCommaMin = 30

var stopMarkers = []string{
	", ",
	" will ",
	" this ",
	" that ",
	" from ",
	" to allow",
	" in order",
	" starting",
	" during",
}

var briefMarkers = []string{
	" to allow",
	" in order to",
}

var effectLabels = map[string]string{
	"DELAY":           "Delay",
	"SHUTTLE":         "Shuttle",
	"SUSPENSION":      "Suspension",
	"SERVICE_CHANGE":  "Service change",
	"SCHEDULE_CHANGE": "Schedule change",
	"DETOUR":          "Detour",
}

// Summarize returns the calendar title for a. It never fails: an alert with
// an empty header still gets "[<line>] <effect>".
func Summarize(a model.Alert) string {
	line := "[" + model.LineName(a) + "]"
	content := StripLinePrefix(a.Header)

	if phrase, ok := LocationPhrase(content); ok {
		return join(line, EffectLabel(a.Effect), phrase)
	}

	brief := BriefContent(content)
	if brief == "" {
		return join(line, EffectLabel(a.Effect))
	}
	return join(line, brief)
}

// StripLinePrefix drops a leading "<something> Line:" label. The prefix
// before the first colon must contain "Line" and be at most 35 characters;
// otherwise the header is only trimmed of leading whitespace.
func StripLinePrefix(header string) string {
	prefix, rest, found := strings.Cut(header, ":")
	if found && utf8.RuneCountInString(prefix) <= maxLinePrefixLen && strings.Contains(prefix, "Line") {
		return strings.TrimLeft(rest, " \t\r\n")
	}
	return strings.TrimLeft(header, " \t\r\n")
}

// LocationPhrase extracts a "between A and B" or "from A through B" clause.
// A "from" clause without "through" (e.g. "from A to B") is not a closed
// range and is rejected.
func LocationPhrase(content string) (string, bool) {
	if i := strings.Index(content, " between "); i >= 0 {
		if phrase := cutAtStopMarker(content[i+1:]); phrase != "" {
			return phrase, true
		}
	}

	if i := strings.Index(content, " from "); i >= 0 {
		phrase := cutAtStopMarker(content[i+1:])
		if phrase != "" && strings.Contains(phrase, " through ") {
			return phrase, true
		}
	}
	return "", false
}

// EffectLabel maps an effect code to a capitalized label. Codes are matched
// ignoring case and treating '-' like '_'; unknown codes are returned as is.
func EffectLabel(code string) string {
	if label, ok := effectLabels[model.NormalizeEffect(code)]; ok {
		return label
	}
	return code
}

// BriefContent shortens content to its operational part: everything before
// " to allow", " in order to", or the first ", " at or after character 30,
// whichever comes first.
func BriefContent(content string) string {
	end := len(content)
	for _, m := range briefMarkers {
		if i := strings.Index(content, m); i >= 0 && i < end {
			end = i
		}
	}
	if from, ok := runeOffset(content, briefCommaMin); ok {
		if i := strings.Index(content[from:], ", "); i >= 0 && from+i < end {
			end = from + i
		}
	}
	return trimTrailing(content[:end])
}

// runeOffset returns the byte index of the n-th character of s, counting
// from zero. ok is false when s is not longer than n characters.
func runeOffset(s string, n int) (int, bool) {
	for i := range s {
		if n == 0 {
			return i, true
		}
		n--
	}
	return 0, false
}

// cutAtStopMarker truncates s at the earliest stop marker and trims the
// trailing punctuation.
func cutAtStopMarker(s string) string {
	end := len(s)
	for _, m := range stopMarkers {
		if i := strings.Index(s, m); i >= 0 && i < end {
			end = i
		}
	}
	return trimTrailing(s[:end])
}

func trimTrailing(s string) string {
	return strings.TrimRight(s, ". ,")
}

func join(parts ...string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
