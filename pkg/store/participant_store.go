package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meetpulse/meetpulse/pkg/models"
)

// ParticipantStore persists meeting participants, one row per device
// fingerprint per meeting.
type ParticipantStore struct {
	db *sql.DB
}

const participantColumns = `id, meeting_id, device_fingerprint, last_status, last_seen_at, created_at`

func scanParticipant(row interface{ Scan(...any) error }) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.MeetingID, &p.DeviceFingerprint, &p.LastStatus, &p.LastSeenAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID loads one participant.
func (s *ParticipantStore) GetByID(ctx context.Context, id string) (*models.Participant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// FindByFingerprint returns the participant for (meeting, fingerprint), or
// nil without error when none exists.
func (s *ParticipantStore) FindByFingerprint(ctx context.Context, meetingID, fingerprint string) (*models.Participant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE meeting_id = $1 AND device_fingerprint = $2`,
		meetingID, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

// GetOrCreate resolves (meeting, fingerprint) to a participant, creating the
// row if needed. The unique constraint makes concurrent joins converge on a
// single row.
func (s *ParticipantStore) GetOrCreate(ctx context.Context, meetingID, fingerprint string) (*models.Participant, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO participants (id, meeting_id, device_fingerprint, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (meeting_id, device_fingerprint) DO UPDATE SET device_fingerprint = EXCLUDED.device_fingerprint
		RETURNING `+participantColumns+`, (xmax = 0)`,
		uuid.NewString(), meetingID, fingerprint,
	)

	var p models.Participant
	var created bool
	err := row.Scan(&p.ID, &p.MeetingID, &p.DeviceFingerprint, &p.LastStatus, &p.LastSeenAt, &p.CreatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert participant: %w", err)
	}
	return &p, created, nil
}

// ListForMeeting returns all participants of a meeting in join order.
func (s *ParticipantStore) ListForMeeting(ctx context.Context, meetingID string) ([]*models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE meeting_id = $1 ORDER BY created_at`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var participants []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

// UpdateLastStatus records the participant's most recent status and seen
// time.
func (s *ParticipantStore) UpdateLastStatus(ctx context.Context, participantID, status string, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE participants SET last_status = $2, last_seen_at = $3 WHERE id = $1`,
		participantID, status, seenAt)
	if err != nil {
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	return nil
}

// Touch refreshes the participant's last seen time without changing status.
func (s *ParticipantStore) Touch(ctx context.Context, participantID string, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE participants SET last_seen_at = $2 WHERE id = $1`, participantID, seenAt)
	if err != nil {
		return fmt.Errorf("failed to touch participant: %w", err)
	}
	return nil
}

// MaxCount returns the number of distinct participants the meeting has seen.
func (s *ParticipantStore) MaxCount(ctx context.Context, meetingID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM participants WHERE meeting_id = $1`, meetingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}
