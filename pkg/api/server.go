package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/meetpulse/meetpulse/pkg/database"
	"github.com/meetpulse/meetpulse/pkg/services"
	"github.com/meetpulse/meetpulse/pkg/ws"
)

// Server wires the HTTP API: REST endpoints for visits, meetings and
// locations, plus the WebSocket upgrade endpoint for live meetings.
type Server struct {
	echo     *echo.Echo
	server   *http.Server
	dbClient *database.Client

	meetings  *services.MeetingService
	locations *services.LocationService
	wsHandler *ws.Handler
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(
	dbClient *database.Client,
	meetings *services.MeetingService,
	locations *services.LocationService,
	wsHandler *ws.Handler,
) *Server {
	e := echo.New()

	s := &Server{
		echo:      e,
		dbClient:  dbClient,
		meetings:  meetings,
		locations: locations,
		wsHandler: wsHandler,
	}

	e.Use(securityHeaders())

	// Health (unauthenticated, used by orchestrators)
	e.GET("/health", s.healthHandler)

	// REST API
	api := e.Group("/api/v1")
	api.POST("/visit", s.visitHandler)
	api.GET("/meetings", s.listMeetingsHandler)
	api.GET("/meetings/:id", s.getMeetingHandler)
	api.POST("/cities", s.createCityHandler)
	api.GET("/cities", s.listCitiesHandler)
	api.POST("/rooms", s.createRoomHandler)
	api.GET("/rooms", s.listRoomsHandler)

	// WebSocket endpoint (one connection per meeting participant)
	e.GET("/ws/meetings/:id", s.wsMeetingHandler)

	return s
}

// Start begins listening on the given address. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
