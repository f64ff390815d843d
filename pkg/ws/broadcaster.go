package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/meetpulse/meetpulse/pkg/engagement"
	"github.com/meetpulse/meetpulse/pkg/events"
	"github.com/meetpulse/meetpulse/pkg/models"
	"github.com/meetpulse/meetpulse/pkg/services"
	"github.com/meetpulse/meetpulse/pkg/timeutil"
)

// DefaultBroadcastInterval is the tick period of the periodic broadcaster.
const DefaultBroadcastInterval = 10 * time.Second

// Broadcaster periodically publishes engagement rollups for every active
// meeting, and wakes countdown clients when their meeting starts. One
// instance runs per process.
type Broadcaster struct {
	meetings *services.MeetingService
	snapshot *engagement.SnapshotBuilder
	backend  events.Backend
	interval time.Duration
	now      func() time.Time

	mu              sync.Mutex
	notifiedStarted map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBroadcaster creates a new Broadcaster.
func NewBroadcaster(meetings *services.MeetingService, snapshot *engagement.SnapshotBuilder, backend events.Backend, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	return &Broadcaster{
		meetings:        meetings,
		snapshot:        snapshot,
		backend:         backend,
		interval:        interval,
		now:             func() time.Time { return time.Now().UTC() },
		notifiedStarted: make(map[string]bool),
	}
}

// Start launches the background broadcast loop.
func (b *Broadcaster) Start(ctx context.Context) {
	if b.cancel != nil {
		return
	}
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go b.run(ctx)

	slog.Info("Periodic broadcaster started", "interval", b.interval)
}

// Stop signals the broadcast loop to exit and waits for it to finish.
func (b *Broadcaster) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
	slog.Info("Periodic broadcaster stopped")
}

func (b *Broadcaster) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.broadcastActiveMeetings(ctx)
		}
	}
}

// broadcastActiveMeetings publishes one rollup per active meeting. Errors
// are per-meeting; one bad meeting never stops the loop.
func (b *Broadcaster) broadcastActiveMeetings(ctx context.Context) {
	now := b.now()
	active, err := b.meetings.ActiveMeetings(ctx, now)
	if err != nil {
		slog.Error("Broadcaster: failed to load active meetings", "error", err)
		return
	}

	for _, meeting := range active {
		if b.markStarted(meeting.ID) {
			b.notifyStarted(ctx, meeting)
		}
		if err := b.broadcastRollup(ctx, meeting, now); err != nil {
			slog.Error("Broadcaster: rollup failed", "meeting_id", meeting.ID, "error", err)
		}
	}
}

// markStarted reports whether this is the first tick that sees the meeting
// active.
func (b *Broadcaster) markStarted(meetingID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.notifiedStarted[meetingID] {
		return false
	}
	b.notifiedStarted[meetingID] = true
	return true
}

// notifyStarted wakes clients waiting in countdown mode.
func (b *Broadcaster) notifyStarted(ctx context.Context, meeting *models.Meeting) {
	slog.Info("Meeting started, notifying countdown clients", "meeting_id", meeting.ID)
	msg := &StartedMessage{
		Type:      "meeting_started",
		MeetingID: meeting.ID,
		Message:   "The meeting has started.",
	}
	if err := b.backend.Publish(ctx, events.MeetingChannel(meeting.ID), marshalMessage(msg)); err != nil {
		slog.Error("Broadcaster: meeting_started publish failed", "meeting_id", meeting.ID, "error", err)
	}
}

func (b *Broadcaster) broadcastRollup(ctx context.Context, meeting *models.Meeting, now time.Time) error {
	bucket := timeutil.Bucketize(now)
	rollup, err := b.snapshot.BucketRollup(ctx, meeting, bucket)
	if err != nil {
		return err
	}

	delta := DeltaMessage{
		Type: "delta",
		Data: DeltaData{
			MeetingID:    meeting.ID,
			Bucket:       timeutil.FormatUTC(rollup.Bucket),
			Overall:      rollup.Overall,
			Participants: rollup.Participants,
		},
	}
	return b.backend.Publish(ctx, events.MeetingChannel(meeting.ID), marshalMessage(delta))
}
