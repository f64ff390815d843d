package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/meetpulse/meetpulse/pkg/models"
)

// visitHandler handles POST /api/v1/visit.
// Resolves (or creates) the deterministic meeting for "right now" in the
// server's local timezone and returns its identity and time window. No
// participant is created here; joining happens over the WebSocket.
func (s *Server) visitHandler(c *echo.Context) error {
	var req models.VisitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	meeting, err := s.meetings.EnsureMeeting(c.Request().Context(), time.Now(), req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &models.VisitResponse{
		MeetingID:    meeting.ID,
		MeetingStart: meeting.StartTS,
		MeetingEnd:   meeting.EndTS,
	})
}
