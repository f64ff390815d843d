package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meetpulse/meetpulse/pkg/models"
)

// CityStore persists cities. Names are unique; creation is idempotent.
type CityStore struct {
	db *sql.DB
}

// GetOrCreate resolves a city by name, creating it if needed.
func (s *CityStore) GetOrCreate(ctx context.Context, name string) (*models.City, error) {
	var c models.City
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cities (id, name, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at`,
		uuid.NewString(), name).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert city: %w", err)
	}
	return &c, nil
}

// GetByID loads one city.
func (s *CityStore) GetByID(ctx context.Context, id string) (*models.City, error) {
	var c models.City
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM cities WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get city: %w", err)
	}
	return &c, nil
}

// List returns all cities ordered by name.
func (s *CityStore) List(ctx context.Context) ([]*models.City, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM cities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cities []*models.City
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cities: %w", err)
	}
	return cities, nil
}

// RoomStore persists meeting rooms, unique per (name, city).
type RoomStore struct {
	db *sql.DB
}

// GetOrCreate resolves a room by name within a city, creating it if needed.
func (s *RoomStore) GetOrCreate(ctx context.Context, name, cityID string) (*models.MeetingRoom, error) {
	var r models.MeetingRoom
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO meeting_rooms (id, name, city_id, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name, city_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, city_id, created_at`,
		uuid.NewString(), name, cityID).Scan(&r.ID, &r.Name, &r.CityID, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert meeting room: %w", err)
	}
	return &r, nil
}

// GetByID loads one room.
func (s *RoomStore) GetByID(ctx context.Context, id string) (*models.MeetingRoom, error) {
	var r models.MeetingRoom
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, city_id, created_at FROM meeting_rooms WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.CityID, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting room: %w", err)
	}
	return &r, nil
}

// ListForCity returns a city's rooms ordered by name.
func (s *RoomStore) ListForCity(ctx context.Context, cityID string) ([]*models.MeetingRoom, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, city_id, created_at FROM meeting_rooms WHERE city_id = $1 ORDER BY name`, cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meeting rooms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rooms []*models.MeetingRoom
	for rows.Next() {
		var r models.MeetingRoom
		if err := rows.Scan(&r.ID, &r.Name, &r.CityID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meeting room: %w", err)
		}
		rooms = append(rooms, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meeting rooms: %w", err)
	}
	return rooms, nil
}
