package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/meetpulse/meetpulse/pkg/events"
	"github.com/meetpulse/meetpulse/pkg/models"
	"github.com/meetpulse/meetpulse/pkg/services"
	"github.com/meetpulse/meetpulse/pkg/store"
	"github.com/meetpulse/meetpulse/pkg/timeutil"
)

// StatusMeetingNotFound is the close code for connections to unknown
// meetings.
const StatusMeetingNotFound websocket.StatusCode = 4404

// defaultWriteTimeout bounds each socket write so one stuck client cannot
// stall its connection goroutines forever.
const defaultWriteTimeout = 10 * time.Second

// Conn is the per-connection context shared by the read loop and the router.
// participant is attached by a successful join and is only touched from the
// read-loop goroutine.
type Conn struct {
	sock         *websocket.Conn
	meeting      *models.Meeting
	participant  *models.Participant
	participants *services.ParticipantService

	writeTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// setClosed signals both child goroutines to stop. Idempotent.
func (c *Conn) setClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// write sends one text frame with the write timeout applied.
func (c *Conn) write(ctx context.Context, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return c.sock.Write(writeCtx, websocket.MessageText, data)
}

// Handler owns every live WebSocket connection of the process.
type Handler struct {
	meetings     *store.MeetingStore
	participants *services.ParticipantService
	summaries    *services.SummaryService
	router       *Router
	backend      events.Backend
	writeTimeout time.Duration
	now          func() time.Time
}

func NewHandler(
	meetings *store.MeetingStore,
	participants *services.ParticipantService,
	summaries *services.SummaryService,
	router *Router,
	backend events.Backend,
) *Handler {
	return &Handler{
		meetings:     meetings,
		participants: participants,
		summaries:    summaries,
		router:       router,
		backend:      backend,
		writeTimeout: defaultWriteTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// HandleConnection manages the lifecycle of one WebSocket connection to a
// meeting. Blocks until the connection closes.
func (h *Handler) HandleConnection(ctx context.Context, sock *websocket.Conn, meetingID string) {
	conn := &Conn{
		sock:         sock,
		participants: h.participants,
		writeTimeout: h.writeTimeout,
		closed:       make(chan struct{}),
	}

	meeting, err := h.meetings.GetByID(ctx, meetingID)
	if errors.Is(err, store.ErrNotFound) {
		_ = conn.write(ctx, marshalMessage(newError("Meeting not found")))
		_ = sock.Close(StatusMeetingNotFound, "Meeting not found")
		return
	}
	if err != nil {
		slog.Error("Failed to load meeting for WS", "meeting_id", meetingID, "error", err)
		_ = sock.Close(websocket.StatusInternalError, "Internal error")
		return
	}
	conn.meeting = meeting

	now := h.now()
	if meeting.HasEnded(now) {
		_ = conn.write(ctx, marshalMessage(&EndedMessage{
			Type:    "meeting_ended",
			Message: "The meeting has already ended.",
			EndTime: timeutil.FormatUTC(meeting.EndTS),
		}))
		_ = sock.Close(websocket.StatusNormalClosure, "Meeting ended")
		return
	}
	if !meeting.HasStarted(now) {
		// Keep the connection open; the periodic broadcaster publishes
		// meeting_started when the slot begins.
		_ = conn.write(ctx, marshalMessage(&CountdownMessage{
			Type:            "meeting_countdown",
			MeetingID:       meeting.ID,
			StartTime:       timeutil.FormatUTC(meeting.StartTS),
			ServerTime:      timeutil.FormatUTC(now),
			CityName:        meeting.CityName,
			MeetingRoomName: meeting.MeetingRoomName,
		}))
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := h.backend.Subscribe(connCtx, events.MeetingChannel(meeting.ID))
	if err != nil {
		slog.Error("Channel subscribe failed", "meeting_id", meeting.ID, "error", err)
		_ = sock.Close(websocket.StatusInternalError, "Internal error")
		return
	}
	defer sub.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.subscriberLoop(connCtx, conn, sub)
	}()
	go func() {
		defer wg.Done()
		h.watchMeetingEnd(connCtx, conn)
	}()

	h.readLoop(connCtx, conn)

	// Cleanup: leave if joined, then stop both child goroutines.
	h.handleLeave(conn)
	conn.setClosed()
	cancel()
	wg.Wait()
}

// readLoop processes inbound frames until the client disconnects or the
// connection is marked closed.
func (h *Handler) readLoop(ctx context.Context, conn *Conn) {
	for {
		_, data, err := conn.sock.Read(ctx)
		if err != nil {
			if !conn.isClosed() && websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				slog.Warn("WS read error", "meeting_id", conn.meeting.ID, "error", err)
			}
			return
		}

		response := h.router.Route(ctx, conn, data)
		if response == nil {
			continue
		}
		if err := conn.write(ctx, marshalMessage(response)); err != nil {
			slog.Warn("WS write error", "meeting_id", conn.meeting.ID, "error", err)
			return
		}
	}
}

// subscriberLoop forwards channel messages to the socket in publish order.
func (h *Handler) subscriberLoop(ctx context.Context, conn *Conn, sub *events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.closed:
			return
		case payload, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.write(ctx, payload); err != nil {
				if ctx.Err() == nil && !conn.isClosed() {
					slog.Warn("Failed to forward channel message",
						"meeting_id", conn.meeting.ID, "error", err)
				}
				return
			}
		}
	}
}

// watchMeetingEnd sleeps until end_ts, then publishes the terminal
// meeting_ended message and closes the socket. The first watcher across all
// connections computes the summary; later ones reuse the persisted row.
func (h *Handler) watchMeetingEnd(ctx context.Context, conn *Conn) {
	remaining := conn.meeting.EndTS.Sub(h.now())
	if remaining < 0 {
		remaining = 0
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-conn.closed:
		return
	case <-timer.C:
	}

	if conn.isClosed() {
		return
	}

	slog.Info("Meeting ended, generating summary", "meeting_id", conn.meeting.ID)
	if err := h.sendMeetingEnded(ctx, conn); err != nil {
		slog.Error("Failed to send meeting_ended", "meeting_id", conn.meeting.ID, "error", err)
	}

	conn.setClosed()
	_ = conn.sock.Close(websocket.StatusNormalClosure, "Meeting ended")
}

// sendMeetingEnded writes the terminal summary frame to this connection.
// Every live connection runs its own end watcher, so writing directly
// (instead of publishing to the channel) guarantees the frame lands before
// the close handshake; the summary row itself is computed once and shared.
func (h *Handler) sendMeetingEnded(ctx context.Context, conn *Conn) error {
	meeting := conn.meeting
	summary, err := h.summaries.EnsureSummary(ctx, meeting)
	if err != nil {
		return err
	}

	ended := &EndedMessage{
		Type:    "meeting_ended",
		EndTime: timeutil.FormatUTC(meeting.EndTS),
		Summary: &SummaryData{
			Meeting:              meeting,
			DurationMinutes:      meeting.DurationMinutes(),
			MaxParticipants:      summary.MaxParticipants,
			NormalizedEngagement: summary.NormalizedEngagement,
			EngagementLevel:      summary.EngagementLevel,
		},
	}
	return conn.write(ctx, marshalMessage(ended))
}

// handleLeave marks the participant seen one last time and tells the room.
func (h *Handler) handleLeave(conn *Conn) {
	if conn.participant == nil {
		return
	}

	// The connection context is already tearing down; use a short
	// independent context for the final writes.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := h.now()
	if err := h.participants.Touch(ctx, conn.participant.ID, now); err != nil {
		slog.Warn("Leave: failed to update last_seen_at",
			"participant_id", conn.participant.ID, "error", err)
	}

	h.router.publishRollup(ctx, conn, conn.participant.ID, "")
	slog.Info("Participant left",
		"meeting_id", conn.meeting.ID, "participant_id", conn.participant.ID)
}
