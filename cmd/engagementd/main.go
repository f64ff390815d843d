// Engagement tracker server. Provides the HTTP/WebSocket API, the periodic
// rollup broadcaster, and the meeting-scoped event fan-out.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/meetpulse/meetpulse/pkg/api"
	"github.com/meetpulse/meetpulse/pkg/database"
	"github.com/meetpulse/meetpulse/pkg/engagement"
	"github.com/meetpulse/meetpulse/pkg/events"
	"github.com/meetpulse/meetpulse/pkg/services"
	"github.com/meetpulse/meetpulse/pkg/store"
	"github.com/meetpulse/meetpulse/pkg/ws"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseLogLevel maps a LOG_LEVEL value to a slog.Level, defaulting to info
// for unknown values.
func parseLogLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	slog.SetLogLoggerLevel(parseLogLevel(getEnv("LOG_LEVEL", "info")))

	httpPort := getEnv("HTTP_PORT", "8080")

	slog.Info("Starting meetpulse", "http_port", httpPort)

	ctx := context.Background()

	// 1. Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	stores := store.New(dbClient.DB())

	// 2. Engagement pipeline
	strategy, err := engagement.NewStrategy(getEnv("SMOOTHING_STRATEGY", "kalman"))
	if err != nil {
		slog.Error("Invalid smoothing strategy", "error", err)
		os.Exit(1)
	}
	snapshot := engagement.NewSnapshotBuilder(stores.Participants, stores.Engagement, strategy)

	// 3. Event backend. The in-process hub serves single-replica deployments;
	// the Postgres backend fans events out across replicas via LISTEN/NOTIFY.
	var backend events.Backend
	switch name := getEnv("EVENT_BACKEND", "memory"); name {
	case "memory":
		backend = events.NewHub()
	case "postgres":
		pgBackend := events.NewPostgresBackend(dbClient.DB(), dbClient.DSN())
		if err := pgBackend.Start(ctx); err != nil {
			slog.Error("Failed to start Postgres event backend", "error", err)
			os.Exit(1)
		}
		defer pgBackend.Stop(ctx)
		backend = pgBackend
	default:
		slog.Error("Unknown event backend", "backend", name)
		os.Exit(1)
	}
	slog.Info("Event backend initialized", "backend", getEnv("EVENT_BACKEND", "memory"))

	// 4. Domain services
	meetingService := services.NewMeetingService(stores)
	locationService := services.NewLocationService(stores)
	participantService := services.NewParticipantService(stores)
	engagementService := services.NewEngagementService(stores)
	summaryService := services.NewSummaryService(stores, snapshot)

	// 5. WebSocket plumbing
	router := ws.NewRouter(engagementService, snapshot, backend)
	wsHandler := ws.NewHandler(stores.Meetings, participantService, summaryService, router, backend)

	// 6. Periodic rollup broadcaster
	interval := ws.DefaultBroadcastInterval
	if v := getEnv("BROADCAST_INTERVAL_SECONDS", ""); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			slog.Error("Invalid BROADCAST_INTERVAL_SECONDS", "value", v)
			os.Exit(1)
		}
		interval = time.Duration(secs) * time.Second
	}
	broadcaster := ws.NewBroadcaster(meetingService, snapshot, backend, interval)
	broadcaster.Start(ctx)
	defer broadcaster.Stop()
	slog.Info("Broadcaster started", "interval", interval)

	// 7. HTTP server
	httpServer := api.NewServer(dbClient, meetingService, locationService, wsHandler)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
