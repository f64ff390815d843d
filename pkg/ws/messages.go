// Package ws implements the real-time meeting protocol: connection
// lifecycle, inbound message routing, and the periodic engagement
// broadcaster.
package ws

import (
	"encoding/json"
	"fmt"

	"github.com/meetpulse/meetpulse/pkg/engagement"
	"github.com/meetpulse/meetpulse/pkg/models"
)

// Inbound request types.
const (
	TypeJoin   = "join"
	TypeStatus = "status"
	TypePing   = "ping"
)

// JoinRequest attaches a participant, identified by device fingerprint, to
// the connection.
type JoinRequest struct {
	Type        string `json:"type"`
	Fingerprint string `json:"fingerprint"`
}

// StatusRequest reports the participant's current engagement state.
type StatusRequest struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// PingRequest is a keepalive; client_time is echoed for clock-skew
// diagnostics only.
type PingRequest struct {
	Type       string `json:"type"`
	ClientTime string `json:"client_time,omitempty"`
}

// ErrorMessage reports a rejected request or internal failure.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newError(format string, args ...any) *ErrorMessage {
	return &ErrorMessage{Type: "error", Message: fmt.Sprintf(format, args...)}
}

// JoinedMessage confirms a join. The full snapshot travels only to the
// joining client; everyone else learns about the join through a delta.
type JoinedMessage struct {
	Type          string              `json:"type"`
	ParticipantID string              `json:"participant_id"`
	MeetingID     string              `json:"meeting_id"`
	Snapshot      *engagement.Summary `json:"snapshot,omitempty"`
}

// PongMessage answers a ping with the server's clock.
type PongMessage struct {
	Type       string `json:"type"`
	ServerTime string `json:"server_time"`
}

// CountdownMessage is sent to clients that connect before the meeting
// starts.
type CountdownMessage struct {
	Type            string  `json:"type"`
	MeetingID       string  `json:"meeting_id"`
	StartTime       string  `json:"start_time"`
	ServerTime      string  `json:"server_time"`
	CityName        *string `json:"city_name,omitempty"`
	MeetingRoomName *string `json:"meeting_room_name,omitempty"`
}

// StartedMessage wakes clients waiting in countdown mode.
type StartedMessage struct {
	Type      string `json:"type"`
	MeetingID string `json:"meeting_id"`
	Message   string `json:"message,omitempty"`
}

// NotStartedMessage rejects a request that needs an active meeting before
// its start.
type NotStartedMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	StartTime string `json:"start_time"`
}

// SummaryData is the meeting summary embedded in the terminal
// meeting_ended message.
type SummaryData struct {
	Meeting              *models.Meeting `json:"meeting"`
	DurationMinutes      int             `json:"duration_minutes"`
	MaxParticipants      int             `json:"max_participants"`
	NormalizedEngagement float64         `json:"normalized_engagement"`
	EngagementLevel      string          `json:"engagement_level"`
}

// EndedMessage is the terminal message of a meeting's channel.
type EndedMessage struct {
	Type    string       `json:"type"`
	Message string       `json:"message,omitempty"`
	EndTime string       `json:"end_time"`
	Summary *SummaryData `json:"summary,omitempty"`
}

// DeltaData is the payload of a live engagement update.
type DeltaData struct {
	MeetingID     string             `json:"meeting_id"`
	ParticipantID string             `json:"participant_id,omitempty"`
	Bucket        string             `json:"bucket"`
	Status        string             `json:"status,omitempty"`
	Overall       float64            `json:"overall"`
	Participants  map[string]float64 `json:"participants"`
}

// DeltaMessage broadcasts one bucket's engagement rollup to a meeting's
// subscribers.
type DeltaMessage struct {
	Type string    `json:"type"`
	Data DeltaData `json:"data"`
}

func marshalMessage(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// All message types marshal cleanly; reaching this is a programming error.
		panic(fmt.Sprintf("ws: failed to marshal %T: %v", v, err))
	}
	return data
}
