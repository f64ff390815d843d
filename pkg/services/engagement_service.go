package services

import (
	"context"
	"time"

	"github.com/meetpulse/meetpulse/pkg/models"
	"github.com/meetpulse/meetpulse/pkg/store"
	"github.com/meetpulse/meetpulse/pkg/timeutil"
)

// EngagementService records status reports against minute buckets.
type EngagementService struct {
	stores *store.Stores
}

// NewEngagementService creates a new EngagementService
func NewEngagementService(stores *store.Stores) *EngagementService {
	return &EngagementService{stores: stores}
}

// RecordStatus writes one status sample for the participant at now's minute
// bucket and refreshes the participant's last known status. Reports outside
// the meeting's bucketed window are rejected.
func (s *EngagementService) RecordStatus(ctx context.Context, meeting *models.Meeting, participant *models.Participant, status string, now time.Time) (time.Time, error) {
	if !models.ValidStatus(status) {
		return time.Time{}, NewValidationError("status", "must be speaking, engaged or disengaged")
	}

	bucket := timeutil.Bucketize(now)
	if bucket.Before(timeutil.Bucketize(meeting.StartTS)) || bucket.After(timeutil.Bucketize(meeting.EndTS)) {
		return time.Time{}, ErrOutOfBounds
	}

	if err := s.stores.Engagement.UpsertSample(ctx, meeting.ID, participant.ID, bucket, status); err != nil {
		return time.Time{}, err
	}
	if err := s.stores.Participants.UpdateLastStatus(ctx, participant.ID, status, timeutil.EnsureUTC(now)); err != nil {
		return time.Time{}, err
	}
	return bucket, nil
}

// ResolveParticipant loads a participant and verifies it belongs to the
// meeting.
func (s *EngagementService) ResolveParticipant(ctx context.Context, meetingID, participantID string) (*models.Participant, error) {
	participant, err := s.stores.Participants.GetByID(ctx, participantID)
	if err == store.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if participant.MeetingID != meetingID {
		return nil, ErrNotFound
	}
	return participant, nil
}
