// Package models holds the domain entities and the request/response shapes
// shared by the HTTP and WebSocket surfaces.
package models

import (
	"time"

	"github.com/meetpulse/meetpulse/pkg/timeutil"
)

// Engagement status values a participant can report.
const (
	StatusSpeaking   = "speaking"
	StatusEngaged    = "engaged"
	StatusDisengaged = "disengaged"
)

// ValidStatus reports whether s is one of the recognised engagement states.
func ValidStatus(s string) bool {
	return s == StatusSpeaking || s == StatusEngaged || s == StatusDisengaged
}

// City is a location grouping for meeting rooms. Created on demand, never
// mutated.
type City struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MeetingRoom is a physical room inside a city. Unique per (name, city).
type MeetingRoom struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CityID    string    `json:"city_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MSTeamsMeeting identifies a Teams meeting by at least one of thread id,
// meeting id, or invite URL.
type MSTeamsMeeting struct {
	ID        string    `json:"id"`
	ThreadID  *string   `json:"thread_id"`
	MeetingID *string   `json:"meeting_id"`
	InviteURL *string   `json:"invite_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Meeting is a half-hour-aligned time slot bound to a Teams meeting and/or a
// physical room. Its id is deterministic in (start, context) so repeated
// visits resolve to the same row.
type Meeting struct {
	ID               string          `json:"id"`
	StartTS          time.Time       `json:"start_ts"`
	EndTS            time.Time       `json:"end_ts"`
	CityID           *string         `json:"city_id"`
	CityName         *string         `json:"city_name,omitempty"`
	MeetingRoomID    *string         `json:"meeting_room_id"`
	MeetingRoomName  *string         `json:"meeting_room_name,omitempty"`
	MSTeamsMeetingID *string         `json:"ms_teams_meeting_id"`
	MSTeams          *MSTeamsMeeting `json:"ms_teams,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// HasStarted reports whether the meeting has started at now.
func (m *Meeting) HasStarted(now time.Time) bool {
	return !now.Before(timeutil.EnsureUTC(m.StartTS))
}

// HasEnded reports whether the meeting has ended at now.
func (m *Meeting) HasEnded(now time.Time) bool {
	return !now.Before(timeutil.EnsureUTC(m.EndTS))
}

// IsActive reports whether start <= now < end.
func (m *Meeting) IsActive(now time.Time) bool {
	return m.HasStarted(now) && !m.HasEnded(now)
}

// DurationMinutes returns the scheduled length of the meeting in minutes.
func (m *Meeting) DurationMinutes() int {
	return int(m.EndTS.Sub(m.StartTS) / time.Minute)
}

// Participant is a device-scoped attendee of one meeting. The same
// fingerprint inside one meeting always resolves to the same row.
type Participant struct {
	ID                string     `json:"id"`
	MeetingID         string     `json:"meeting_id"`
	DeviceFingerprint string     `json:"device_fingerprint"`
	LastStatus        *string    `json:"last_status"`
	LastSeenAt        *time.Time `json:"last_seen_at"`
	CreatedAt         time.Time  `json:"created_at"`
}

// EngagementSample is one participant's status inside a single minute
// bucket. Unique per (participant, bucket); the last write wins.
type EngagementSample struct {
	ID                int64     `json:"id"`
	MeetingID         string    `json:"meeting_id"`
	ParticipantID     string    `json:"participant_id"`
	Bucket            time.Time `json:"bucket"`
	Status            string    `json:"status"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// MeetingSummary is the size-normalised end-of-meeting engagement record.
// Written once by the first end-watcher to fire.
type MeetingSummary struct {
	MeetingID            string    `json:"meeting_id"`
	MaxParticipants      int       `json:"max_participants"`
	NormalizedEngagement float64   `json:"normalized_engagement"`
	EngagementLevel      string    `json:"engagement_level"`
	ComputedAt           time.Time `json:"computed_at"`
}

// MeetingWithParticipants is the detail view returned by GET /meetings/:id.
type MeetingWithParticipants struct {
	Meeting
	Participants []*Participant `json:"participants"`
}

// MeetingListResponse contains one page of meetings ordered newest first.
type MeetingListResponse struct {
	Meetings   []*Meeting `json:"meetings"`
	TotalCount int        `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}
