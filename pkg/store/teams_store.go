package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meetpulse/meetpulse/pkg/models"
)

// TeamsStore persists Microsoft Teams meeting records.
type TeamsStore struct {
	db *sql.DB
}

const teamsColumns = `id, thread_id, meeting_id, invite_url, created_at`

func scanTeamsMeeting(row interface{ Scan(...any) error }) (*models.MSTeamsMeeting, error) {
	var t models.MSTeamsMeeting
	err := row.Scan(&t.ID, &t.ThreadID, &t.MeetingID, &t.InviteURL, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetOrCreate deduplicates Teams records by thread id first, meeting id
// second, and invite URL last, since the same meeting can be referenced by
// any of them. Unrecognised URLs carry only the invite URL, so without the
// third key every repeat visit would mint a fresh record. Only when no
// identifier matches an existing row is a new one created.
func (s *TeamsStore) GetOrCreate(ctx context.Context, threadID, meetingID, inviteURL string) (*models.MSTeamsMeeting, error) {
	if threadID != "" {
		t, err := s.findByColumn(ctx, "thread_id", threadID)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	if meetingID != "" {
		t, err := s.findByColumn(ctx, "meeting_id", meetingID)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	if threadID == "" && meetingID == "" && inviteURL != "" {
		t, err := s.findByColumn(ctx, "invite_url", inviteURL)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	t, err := scanTeamsMeeting(s.db.QueryRowContext(ctx, `
		INSERT INTO ms_teams_meetings (id, thread_id, meeting_id, invite_url, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), now())
		RETURNING `+teamsColumns,
		uuid.NewString(), threadID, meetingID, inviteURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create teams meeting: %w", err)
	}
	return t, nil
}

// GetByID loads one Teams record.
func (s *TeamsStore) GetByID(ctx context.Context, id string) (*models.MSTeamsMeeting, error) {
	t, err := scanTeamsMeeting(s.db.QueryRowContext(ctx,
		`SELECT `+teamsColumns+` FROM ms_teams_meetings WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get teams meeting: %w", err)
	}
	return t, nil
}

func (s *TeamsStore) findByColumn(ctx context.Context, column, value string) (*models.MSTeamsMeeting, error) {
	t, err := scanTeamsMeeting(s.db.QueryRowContext(ctx,
		`SELECT `+teamsColumns+` FROM ms_teams_meetings WHERE `+column+` = $1 ORDER BY created_at LIMIT 1`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find teams meeting by %s: %w", column, err)
	}
	return t, nil
}
