package api

import (
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsMeetingHandler upgrades GET /ws/meetings/:id to a WebSocket and delegates
// to the connection handler. Meeting existence is checked after the upgrade so
// that a missing meeting is reported with a WebSocket close code rather than
// an HTTP error the client script cannot read.
func (s *Server) wsMeetingHandler(c *echo.Context) error {
	meetingID := c.Param("id")
	if meetingID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "meeting id is required")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Clients run on arbitrary origins (meeting room kiosks, laptops).
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	// HandleConnection blocks until the WebSocket closes.
	s.wsHandler.HandleConnection(c.Request().Context(), conn, meetingID)
	return nil
}
