package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/meetpulse/meetpulse/pkg/engagement"
	"github.com/meetpulse/meetpulse/pkg/events"
	"github.com/meetpulse/meetpulse/pkg/services"
	"github.com/meetpulse/meetpulse/pkg/timeutil"
)

// Router parses inbound frames, runs the per-request validation hooks, and
// dispatches to the matching service. Responses returned to the caller go
// only to the requesting client; broadcasts go through the backend.
type Router struct {
	engagements *services.EngagementService
	snapshot    *engagement.SnapshotBuilder
	backend     events.Backend
	now         func() time.Time
}

func NewRouter(engagements *services.EngagementService, snapshot *engagement.SnapshotBuilder, backend events.Backend) *Router {
	return &Router{
		engagements: engagements,
		snapshot:    snapshot,
		backend:     backend,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Route handles one inbound frame and returns the direct response for the
// sending client, or nil when the request produces only broadcasts.
func (r *Router) Route(ctx context.Context, conn *Conn, data []byte) any {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return newError("Invalid JSON")
	}

	// Meeting state gate: ping passes always, everything else needs an
	// active meeting.
	if envelope.Type != TypePing {
		now := r.now()
		if !conn.meeting.HasStarted(now) {
			start := timeutil.FormatUTC(conn.meeting.StartTS)
			return &NotStartedMessage{
				Type:      "meeting_not_started",
				Message:   "The meeting has not started yet. It begins at " + start + ".",
				StartTime: start,
			}
		}
		if conn.meeting.HasEnded(now) {
			end := timeutil.FormatUTC(conn.meeting.EndTS)
			return &EndedMessage{
				Type:    "meeting_ended",
				Message: "The meeting has already ended at " + end + ".",
				EndTime: end,
			}
		}
	}

	switch envelope.Type {
	case TypeJoin:
		var req JoinRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return newError("Invalid request: %v", err)
		}
		return r.handleJoin(ctx, conn, req)
	case TypeStatus:
		var req StatusRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return newError("Invalid request: %v", err)
		}
		return r.handleStatus(ctx, conn, req)
	case TypePing:
		var req PingRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return newError("Invalid request: %v", err)
		}
		return r.handlePing(ctx, conn)
	default:
		return newError("Unknown message type: %s", envelope.Type)
	}
}

func (r *Router) handleJoin(ctx context.Context, conn *Conn, req JoinRequest) any {
	if conn.participant != nil {
		return newError("Already joined")
	}
	if req.Fingerprint == "" {
		return newError("Invalid request: fingerprint cannot be empty")
	}

	participant, err := conn.participants.GetOrCreateForJoin(ctx, conn.meeting.ID, req.Fingerprint, r.now())
	if err != nil {
		slog.Error("Join failed", "meeting_id", conn.meeting.ID, "error", err)
		return newError("Join failed: %v", err)
	}
	conn.participant = participant

	slog.Info("Participant joined",
		"meeting_id", conn.meeting.ID,
		"participant_id", participant.ID,
		"fingerprint", req.Fingerprint)

	// Other participants learn about the joiner through a delta; the full
	// snapshot goes only to the joining client.
	r.publishRollup(ctx, conn, participant.ID, "")

	summary, err := r.snapshot.Build(ctx, conn.meeting)
	if err != nil {
		slog.Error("Snapshot build failed", "meeting_id", conn.meeting.ID, "error", err)
		return newError("Join failed: %v", err)
	}

	return &JoinedMessage{
		Type:          "joined",
		ParticipantID: participant.ID,
		MeetingID:     conn.meeting.ID,
		Snapshot:      summary,
	}
}

func (r *Router) handleStatus(ctx context.Context, conn *Conn, req StatusRequest) any {
	if conn.participant == nil {
		return newError("Not joined")
	}

	bucket, err := r.engagements.RecordStatus(ctx, conn.meeting, conn.participant, req.Status, r.now())
	if err != nil {
		if errors.Is(err, services.ErrOutOfBounds) || services.IsValidationError(err) {
			return newError("%v", err)
		}
		slog.Error("Status record failed", "meeting_id", conn.meeting.ID, "error", err)
		return newError("Internal error")
	}

	r.publishRollupAt(ctx, conn, bucket, conn.participant.ID, req.Status)
	// No direct response, the delta reaches the sender via the channel.
	return nil
}

func (r *Router) handlePing(ctx context.Context, conn *Conn) any {
	now := r.now()
	if conn.participant != nil {
		if err := conn.participants.Touch(ctx, conn.participant.ID, now); err != nil {
			slog.Warn("Failed to update last_seen_at", "participant_id", conn.participant.ID, "error", err)
		}
	}
	return &PongMessage{Type: "pong", ServerTime: timeutil.FormatUTC(now)}
}

// publishRollup broadcasts the rollup of the current bucket.
func (r *Router) publishRollup(ctx context.Context, conn *Conn, participantID, status string) {
	r.publishRollupAt(ctx, conn, timeutil.Bucketize(r.now()), participantID, status)
}

func (r *Router) publishRollupAt(ctx context.Context, conn *Conn, bucket time.Time, participantID, status string) {
	rollup, err := r.snapshot.BucketRollup(ctx, conn.meeting, bucket)
	if err != nil {
		slog.Error("Rollup failed", "meeting_id", conn.meeting.ID, "error", err)
		return
	}

	delta := DeltaMessage{
		Type: "delta",
		Data: DeltaData{
			MeetingID:     conn.meeting.ID,
			ParticipantID: participantID,
			Bucket:        timeutil.FormatUTC(rollup.Bucket),
			Status:        status,
			Overall:       rollup.Overall,
			Participants:  rollup.Participants,
		},
	}
	if err := r.backend.Publish(ctx, events.MeetingChannel(conn.meeting.ID), marshalMessage(delta)); err != nil {
		slog.Error("Delta publish failed", "meeting_id", conn.meeting.ID, "error", err)
	}
}
