package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meetpulse/meetpulse/pkg/models"
	"github.com/meetpulse/meetpulse/pkg/store"
	"github.com/meetpulse/meetpulse/pkg/teams"
	"github.com/meetpulse/meetpulse/pkg/timeutil"
)

// DefaultPageSize is the page size of the meeting list.
const DefaultPageSize = 20

// MeetingService resolves visits to deterministic meeting slots and serves
// meeting queries.
type MeetingService struct {
	stores *store.Stores
}

// NewMeetingService creates a new MeetingService
func NewMeetingService(stores *store.Stores) *MeetingService {
	return &MeetingService{stores: stores}
}

// EnsureMeeting resolves a visit at now to its half-hour meeting slot,
// creating the meeting and its Teams context record as needed. Repeated
// visits in the same slot with the same context yield the same meeting. The
// caller passes now in its local zone so snapping lands on the local half
// hour; storage is UTC throughout.
func (s *MeetingService) EnsureMeeting(ctx context.Context, now time.Time, req models.VisitRequest) (*models.Meeting, error) {
	duration := req.DurationMinutes
	if duration == 0 {
		duration = 60
	}
	if duration != 30 && duration != 60 {
		return nil, NewValidationError("duration_minutes", "must be 30 or 60")
	}
	// A Teams input that parses to nothing (blank or whitespace only) is no
	// context at all; it must not mint an identifier-less Teams record.
	parsed := teams.Parse(req.MSTeamsInput)
	if parsed.Empty() && req.MeetingRoomID == "" {
		return nil, ErrMissingContext
	}

	start := timeutil.EnsureUTC(timeutil.SnapToHalfHour(now))
	end := start.Add(time.Duration(duration) * time.Minute)

	meeting := &models.Meeting{StartTS: start, EndTS: end}

	var teamsContextID string
	if !parsed.Empty() {
		record, err := s.stores.Teams.GetOrCreate(ctx, parsed.ThreadID, parsed.MeetingID, parsed.RawURL)
		if err != nil {
			return nil, err
		}
		meeting.MSTeamsMeetingID = &record.ID
		teamsContextID = record.ID
	}

	var roomContextID string
	if req.MeetingRoomID != "" {
		room, err := s.stores.Rooms.GetByID(ctx, req.MeetingRoomID)
		if err == store.ErrNotFound {
			return nil, NewValidationError("meeting_room_id", "unknown meeting room")
		}
		if err != nil {
			return nil, err
		}
		meeting.MeetingRoomID = &room.ID
		meeting.CityID = &room.CityID
		roomContextID = room.ID
	}
	if req.CityID != "" {
		city, err := s.stores.Cities.GetByID(ctx, req.CityID)
		if err == store.ErrNotFound {
			return nil, NewValidationError("city_id", "unknown city")
		}
		if err != nil {
			return nil, err
		}
		meeting.CityID = &city.ID
	}

	// Teams context wins the identity when both are present; the room then
	// only enriches the meeting's metadata.
	id, err := timeutil.DeterministicMeetingID(start, teamsContextID, roomContextID)
	if err != nil {
		return nil, ErrMissingContext
	}
	meeting.ID = id

	persisted, created, err := s.stores.Meetings.GetOrCreate(ctx, meeting)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Info("Meeting created", "meeting_id", persisted.ID, "start_ts", persisted.StartTS)
	}
	return persisted, nil
}

// GetMeeting loads a meeting with its participants.
func (s *MeetingService) GetMeeting(ctx context.Context, id string) (*models.MeetingWithParticipants, error) {
	meeting, err := s.stores.Meetings.GetByID(ctx, id)
	if err == store.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	participants, err := s.stores.Participants.ListForMeeting(ctx, id)
	if err != nil {
		return nil, err
	}

	return &models.MeetingWithParticipants{Meeting: *meeting, Participants: participants}, nil
}

// ListMeetings returns one page of meetings, newest first.
func (s *MeetingService) ListMeetings(ctx context.Context, page int) (*models.MeetingListResponse, error) {
	if page < 1 {
		page = 1
	}
	meetings, total, err := s.stores.Meetings.List(ctx, page, DefaultPageSize)
	if err != nil {
		return nil, err
	}
	return &models.MeetingListResponse{
		Meetings:   meetings,
		TotalCount: total,
		Page:       page,
		PageSize:   DefaultPageSize,
	}, nil
}

// ActiveMeetings returns the meetings currently in progress.
func (s *MeetingService) ActiveMeetings(ctx context.Context, now time.Time) ([]*models.Meeting, error) {
	meetings, err := s.stores.Meetings.GetActive(ctx, timeutil.EnsureUTC(now))
	if err != nil {
		return nil, fmt.Errorf("failed to load active meetings: %w", err)
	}
	return meetings, nil
}
