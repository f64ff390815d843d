// Package teams extracts Microsoft Teams meeting identifiers from the
// formats users paste: classic meetup-join invite URLs, the newer short
// /meet/ URLs, and plain numeric meeting IDs.
package teams

import (
	"net/url"
	"regexp"
	"strings"
)

// ParsedMeeting is the result of parsing one user-supplied Teams reference.
// Unrecognised input leaves ThreadID and MeetingID empty but still carries
// the raw value in RawURL.
type ParsedMeeting struct {
	ThreadID  string
	MeetingID string
	RawURL    string
}

// Empty reports whether the parse produced no identifiers at all.
func (p ParsedMeeting) Empty() bool {
	return p.ThreadID == "" && p.MeetingID == "" && p.RawURL == ""
}

var (
	oldURLPattern  = regexp.MustCompile(`meetup-join/([^/]+)/\d+`)
	newURLPattern  = regexp.MustCompile(`/meet/([^?]+)`)
	numericPattern = regexp.MustCompile(`^\d[\d\s]+\d$`)
)

// Parse extracts Teams identifiers from an invite URL or meeting ID string.
func Parse(input string) ParsedMeeting {
	value := strings.TrimSpace(input)
	if value == "" {
		return ParsedMeeting{}
	}

	// Numeric meeting ID, e.g. "385 562 023 120 47".
	if numericPattern.MatchString(value) {
		return ParsedMeeting{MeetingID: strings.ReplaceAll(value, " ", "")}
	}

	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		if m := oldURLPattern.FindStringSubmatch(value); m != nil {
			threadID, err := url.PathUnescape(m[1])
			if err != nil {
				threadID = m[1]
			}
			return ParsedMeeting{ThreadID: threadID, RawURL: value}
		}
		if m := newURLPattern.FindStringSubmatch(value); m != nil {
			return ParsedMeeting{MeetingID: m[1], RawURL: value}
		}
	}

	return ParsedMeeting{RawURL: value}
}
