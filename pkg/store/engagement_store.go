package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meetpulse/meetpulse/pkg/models"
)

// EngagementStore persists per-minute engagement samples.
type EngagementStore struct {
	db *sql.DB
}

// UpsertSample writes one sample for (participant, bucket). A repeated write
// to the same bucket replaces the previous status, so the last reporter of a
// minute wins.
func (s *EngagementStore) UpsertSample(ctx context.Context, meetingID, participantID string, bucket time.Time, status string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engagement_samples (meeting_id, participant_id, bucket, status, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (participant_id, bucket) DO UPDATE SET status = EXCLUDED.status, created_at = now()`,
		meetingID, participantID, bucket, status)
	if err != nil {
		return fmt.Errorf("failed to upsert engagement sample: %w", err)
	}
	return nil
}

// SamplesForMeeting returns a meeting's samples ordered by bucket ascending.
// A zero start or end leaves that bound open.
func (s *EngagementStore) SamplesForMeeting(ctx context.Context, meetingID string, start, end time.Time) ([]*models.EngagementSample, error) {
	query := `SELECT id, meeting_id, participant_id, bucket, status, created_at
		FROM engagement_samples WHERE meeting_id = $1`
	args := []any{meetingID}
	if !start.IsZero() {
		args = append(args, start)
		query += fmt.Sprintf(" AND bucket >= $%d", len(args))
	}
	if !end.IsZero() {
		args = append(args, end)
		query += fmt.Sprintf(" AND bucket <= $%d", len(args))
	}
	query += " ORDER BY bucket ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagement samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []*models.EngagementSample
	for rows.Next() {
		var sample models.EngagementSample
		if err := rows.Scan(&sample.ID, &sample.MeetingID, &sample.ParticipantID,
			&sample.Bucket, &sample.Status, &sample.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan engagement sample: %w", err)
		}
		samples = append(samples, &sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate engagement samples: %w", err)
	}
	return samples, nil
}
