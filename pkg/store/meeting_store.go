package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meetpulse/meetpulse/pkg/models"
)

// MeetingStore persists meetings keyed by their deterministic id.
type MeetingStore struct {
	db *sql.DB
}

// GetOrCreate inserts the meeting row or, when the deterministic id already
// exists, fills any null context columns from the new row without
// overwriting non-null values. The whole operation is a single atomic
// upsert, so concurrent visits to the same slot cannot race. The returned
// bool reports whether the row was newly inserted.
func (s *MeetingStore) GetOrCreate(ctx context.Context, m *models.Meeting) (*models.Meeting, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO meetings (id, start_ts, end_ts, city_id, meeting_room_id, ms_teams_meeting_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			city_id = COALESCE(meetings.city_id, EXCLUDED.city_id),
			meeting_room_id = COALESCE(meetings.meeting_room_id, EXCLUDED.meeting_room_id),
			ms_teams_meeting_id = COALESCE(meetings.ms_teams_meeting_id, EXCLUDED.ms_teams_meeting_id)
		RETURNING id, start_ts, end_ts, city_id, meeting_room_id, ms_teams_meeting_id, created_at, (xmax = 0)`,
		m.ID, m.StartTS, m.EndTS, m.CityID, m.MeetingRoomID, m.MSTeamsMeetingID,
	)

	var out models.Meeting
	var created bool
	err := row.Scan(&out.ID, &out.StartTS, &out.EndTS, &out.CityID, &out.MeetingRoomID,
		&out.MSTeamsMeetingID, &out.CreatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert meeting: %w", err)
	}
	return &out, created, nil
}

const meetingSelect = `
	SELECT m.id, m.start_ts, m.end_ts, m.city_id, c.name, m.meeting_room_id, r.name,
	       m.ms_teams_meeting_id, m.created_at
	FROM meetings m
	LEFT JOIN cities c ON c.id = m.city_id
	LEFT JOIN meeting_rooms r ON r.id = m.meeting_room_id`

func scanMeeting(row interface{ Scan(...any) error }) (*models.Meeting, error) {
	var m models.Meeting
	err := row.Scan(&m.ID, &m.StartTS, &m.EndTS, &m.CityID, &m.CityName,
		&m.MeetingRoomID, &m.MeetingRoomName, &m.MSTeamsMeetingID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID loads one meeting with its city and room names resolved.
func (s *MeetingStore) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	m, err := scanMeeting(s.db.QueryRowContext(ctx, meetingSelect+` WHERE m.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// List returns one page of meetings ordered by start time descending, plus
// the total count.
func (s *MeetingStore) List(ctx context.Context, page, pageSize int) ([]*models.Meeting, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM meetings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count meetings: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := s.db.QueryContext(ctx,
		meetingSelect+` ORDER BY m.start_ts DESC LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meetings := make([]*models.Meeting, 0, pageSize)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate meetings: %w", err)
	}
	return meetings, total, nil
}

// GetActive returns all meetings where start_ts <= now < end_ts.
func (s *MeetingStore) GetActive(ctx context.Context, now time.Time) ([]*models.Meeting, error) {
	rows, err := s.db.QueryContext(ctx,
		meetingSelect+` WHERE m.start_ts <= $1 AND m.end_ts > $1 ORDER BY m.start_ts`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query active meetings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var meetings []*models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active meetings: %w", err)
	}
	return meetings, nil
}
