package services

import (
	"context"
	"time"

	"github.com/meetpulse/meetpulse/pkg/models"
	"github.com/meetpulse/meetpulse/pkg/store"
	"github.com/meetpulse/meetpulse/pkg/timeutil"
)

// ParticipantService manages the device-scoped participant rows of a
// meeting.
type ParticipantService struct {
	stores *store.Stores
}

// NewParticipantService creates a new ParticipantService
func NewParticipantService(stores *store.Stores) *ParticipantService {
	return &ParticipantService{stores: stores}
}

// GetOrCreateForJoin resolves a fingerprint to the meeting's participant
// row, creating it on first join, and marks the participant seen at now.
func (s *ParticipantService) GetOrCreateForJoin(ctx context.Context, meetingID, fingerprint string, now time.Time) (*models.Participant, error) {
	if fingerprint == "" {
		return nil, NewValidationError("fingerprint", "required")
	}

	participant, _, err := s.stores.Participants.GetOrCreate(ctx, meetingID, fingerprint)
	if err != nil {
		return nil, err
	}

	seenAt := timeutil.EnsureUTC(now)
	if err := s.stores.Participants.Touch(ctx, participant.ID, seenAt); err != nil {
		return nil, err
	}
	participant.LastSeenAt = &seenAt
	return participant, nil
}

// Touch marks the participant seen at now.
func (s *ParticipantService) Touch(ctx context.Context, participantID string, now time.Time) error {
	return s.stores.Participants.Touch(ctx, participantID, timeutil.EnsureUTC(now))
}
