package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/meetpulse/meetpulse/pkg/models"
)

// SummaryStore persists the end-of-meeting engagement summaries.
type SummaryStore struct {
	db *sql.DB
}

// Get returns the persisted summary, or nil without error when the meeting
// has none yet.
func (s *SummaryStore) Get(ctx context.Context, meetingID string) (*models.MeetingSummary, error) {
	var sum models.MeetingSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT meeting_id, max_participants, normalized_engagement, engagement_level, computed_at
		FROM meeting_summaries WHERE meeting_id = $1`, meetingID).
		Scan(&sum.MeetingID, &sum.MaxParticipants, &sum.NormalizedEngagement, &sum.EngagementLevel, &sum.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting summary: %w", err)
	}
	return &sum, nil
}

// Create persists a summary. When two end-watchers race, the first insert
// wins and both callers get the winning row back.
func (s *SummaryStore) Create(ctx context.Context, sum *models.MeetingSummary) (*models.MeetingSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO meeting_summaries (meeting_id, max_participants, normalized_engagement, engagement_level, computed_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (meeting_id) DO UPDATE SET meeting_id = EXCLUDED.meeting_id
		RETURNING meeting_id, max_participants, normalized_engagement, engagement_level, computed_at`,
		sum.MeetingID, sum.MaxParticipants, sum.NormalizedEngagement, sum.EngagementLevel,
	)

	var out models.MeetingSummary
	err := row.Scan(&out.MeetingID, &out.MaxParticipants, &out.NormalizedEngagement, &out.EngagementLevel, &out.ComputedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create meeting summary: %w", err)
	}
	return &out, nil
}
