package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// listMeetingsHandler handles GET /api/v1/meetings.
func (s *Server) listMeetingsHandler(c *echo.Context) error {
	page := 1
	if v := c.QueryParam("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}

	resp, err := s.meetings.ListMeetings(c.Request().Context(), page)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, resp)
}

// getMeetingHandler handles GET /api/v1/meetings/:id.
func (s *Server) getMeetingHandler(c *echo.Context) error {
	meetingID := c.Param("id")
	if meetingID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "meeting id is required")
	}

	detail, err := s.meetings.GetMeeting(c.Request().Context(), meetingID)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, detail)
}
