package services

import (
	"context"

	"github.com/meetpulse/meetpulse/pkg/models"
	"github.com/meetpulse/meetpulse/pkg/store"
)

// LocationService manages cities and their meeting rooms.
type LocationService struct {
	stores *store.Stores
}

// NewLocationService creates a new LocationService
func NewLocationService(stores *store.Stores) *LocationService {
	return &LocationService{stores: stores}
}

// CreateCity creates a city by name, idempotently.
func (s *LocationService) CreateCity(ctx context.Context, req models.CreateCityRequest) (*models.City, error) {
	if req.Name == "" {
		return nil, NewValidationError("name", "required")
	}
	return s.stores.Cities.GetOrCreate(ctx, req.Name)
}

// ListCities returns all cities.
func (s *LocationService) ListCities(ctx context.Context) ([]*models.City, error) {
	return s.stores.Cities.List(ctx)
}

// CreateRoom creates a room inside a city, creating the city on demand.
func (s *LocationService) CreateRoom(ctx context.Context, req models.CreateRoomRequest) (*models.MeetingRoom, error) {
	if req.Name == "" {
		return nil, NewValidationError("name", "required")
	}
	if req.CityName == "" {
		return nil, NewValidationError("city_name", "required")
	}
	city, err := s.stores.Cities.GetOrCreate(ctx, req.CityName)
	if err != nil {
		return nil, err
	}
	return s.stores.Rooms.GetOrCreate(ctx, req.Name, city.ID)
}

// ListRooms returns the rooms of the named city.
func (s *LocationService) ListRooms(ctx context.Context, cityName string) ([]*models.MeetingRoom, error) {
	if cityName == "" {
		return nil, NewValidationError("city_name", "required")
	}
	city, err := s.stores.Cities.GetOrCreate(ctx, cityName)
	if err != nil {
		return nil, err
	}
	return s.stores.Rooms.ListForCity(ctx, city.ID)
}
