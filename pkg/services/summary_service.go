package services

import (
	"context"
	"log/slog"

	"github.com/meetpulse/meetpulse/pkg/engagement"
	"github.com/meetpulse/meetpulse/pkg/models"
	"github.com/meetpulse/meetpulse/pkg/store"
)

// SummaryService computes and persists the end-of-meeting engagement
// summary.
type SummaryService struct {
	stores   *store.Stores
	snapshot *engagement.SnapshotBuilder
}

// NewSummaryService creates a new SummaryService
func NewSummaryService(stores *store.Stores, snapshot *engagement.SnapshotBuilder) *SummaryService {
	return &SummaryService{stores: stores, snapshot: snapshot}
}

// EnsureSummary returns the meeting's summary, computing and persisting it
// on first call. Subsequent calls, including concurrent ones from racing
// end-watchers, all converge on the first persisted row.
func (s *SummaryService) EnsureSummary(ctx context.Context, meeting *models.Meeting) (*models.MeetingSummary, error) {
	existing, err := s.stores.Summaries.Get(ctx, meeting.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	maxParticipants, err := s.stores.Participants.MaxCount(ctx, meeting.ID)
	if err != nil {
		return nil, err
	}

	summary, err := s.snapshot.Build(ctx, meeting)
	if err != nil {
		return nil, err
	}
	raw := engagement.RawFromSummary(summary)
	normalized := engagement.Normalize(raw, maxParticipants)
	level := engagement.Classify(normalized)

	persisted, err := s.stores.Summaries.Create(ctx, &models.MeetingSummary{
		MeetingID:            meeting.ID,
		MaxParticipants:      maxParticipants,
		NormalizedEngagement: normalized,
		EngagementLevel:      level,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Meeting summary computed",
		"meeting_id", meeting.ID,
		"max_participants", persisted.MaxParticipants,
		"normalized_engagement", persisted.NormalizedEngagement,
		"engagement_level", persisted.EngagementLevel)
	return persisted, nil
}
