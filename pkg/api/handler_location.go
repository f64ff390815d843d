package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/meetpulse/meetpulse/pkg/models"
)

// createCityHandler handles POST /api/v1/cities.
func (s *Server) createCityHandler(c *echo.Context) error {
	var req models.CreateCityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	city, err := s.locations.CreateCity(c.Request().Context(), req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, city)
}

// listCitiesHandler handles GET /api/v1/cities.
func (s *Server) listCitiesHandler(c *echo.Context) error {
	cities, err := s.locations.ListCities(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, cities)
}

// createRoomHandler handles POST /api/v1/rooms.
func (s *Server) createRoomHandler(c *echo.Context) error {
	var req models.CreateRoomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	room, err := s.locations.CreateRoom(c.Request().Context(), req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, room)
}

// listRoomsHandler handles GET /api/v1/rooms?city=<name>.
func (s *Server) listRoomsHandler(c *echo.Context) error {
	cityName := c.QueryParam("city")
	if cityName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "city query parameter is required")
	}

	rooms, err := s.locations.ListRooms(c.Request().Context(), cityName)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, rooms)
}
