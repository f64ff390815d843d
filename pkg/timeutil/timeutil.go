// Package timeutil provides UTC-centric time helpers and the deterministic
// meeting id derivation used across the engagement pipeline.
package timeutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrMissingContext is returned when a meeting id is requested without a
// Teams id or a room id to anchor it.
var ErrMissingContext = errors.New("meeting id requires a teams id or a room id")

// EnsureUTC returns t converted to UTC.
func EnsureUTC(t time.Time) time.Time {
	return t.UTC()
}

// FormatUTC renders t as ISO 8601 in UTC with a trailing Z, at second
// precision.
func FormatUTC(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z07:00")
}

// ParseUTC parses an ISO 8601 / RFC 3339 timestamp and returns it in UTC.
func ParseUTC(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Bucketize truncates t to its minute boundary in UTC. All engagement
// samples and rollups are keyed by these minute buckets.
func Bucketize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// GenerateBuckets returns the minute-aligned bucket timestamps from start to
// end inclusive, stepping by step minutes. start and end must already be
// bucketized.
func GenerateBuckets(start, end time.Time, stepMinutes int) []time.Time {
	if stepMinutes <= 0 {
		stepMinutes = 1
	}
	step := time.Duration(stepMinutes) * time.Minute
	var buckets []time.Time
	for cur := start; !cur.After(end); cur = cur.Add(step) {
		buckets = append(buckets, cur)
	}
	return buckets
}

// SnapToHalfHour snaps t to the nearest half-hour slot boundary in t's own
// location: minutes 0-15 round down to :00, 16-44 to :30, and 45-59 up to
// the next hour. Seconds and sub-seconds are cleared. Callers snap in the
// visitor's local zone first and convert to UTC afterwards.
func SnapToHalfHour(t time.Time) time.Time {
	switch m := t.Minute(); {
	case m <= 15:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case m <= 44:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 30, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location()).Add(time.Hour)
	}
}

// DeterministicMeetingID derives the stable 36-char hex meeting id from the
// UTC start timestamp and the meeting context. A Teams meeting id takes
// precedence over a room id so the same Teams link always maps to one
// meeting regardless of where it is watched from.
func DeterministicMeetingID(startUTC time.Time, teamsMeetingID, roomID string) (string, error) {
	var context string
	switch {
	case teamsMeetingID != "":
		context = "teams:" + teamsMeetingID
	case roomID != "":
		context = "room:" + roomID
	default:
		return "", ErrMissingContext
	}

	sum := sha256.Sum256([]byte(FormatUTC(startUTC) + "|" + context))
	return hex.EncodeToString(sum[:])[:36], nil
}
