package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetpulse/meetpulse/pkg/engagement"
	"github.com/meetpulse/meetpulse/pkg/events"
	"github.com/meetpulse/meetpulse/pkg/models"
	"github.com/meetpulse/meetpulse/pkg/services"
	"github.com/meetpulse/meetpulse/pkg/store"
	testdb "github.com/meetpulse/meetpulse/test/database"
)

type routerFixture struct {
	stores  *store.Stores
	hub     *events.Hub
	router  *Router
	meeting *models.Meeting
}

// newRouterFixture builds a router over a real database with an in-process
// hub and a clock frozen five minutes into the test meeting.
func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	ctx := context.Background()

	client := testdb.NewTestClient(t)
	stores := store.New(client.DB())

	locations := services.NewLocationService(stores)
	room, err := locations.CreateRoom(ctx, models.CreateRoomRequest{Name: "Aquarium", CityName: "Berlin"})
	require.NoError(t, err)

	meetings := services.NewMeetingService(stores)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	meeting, err := meetings.EnsureMeeting(ctx, start, models.VisitRequest{MeetingRoomID: room.ID})
	require.NoError(t, err)

	hub := events.NewHub()
	snapshot := engagement.NewSnapshotBuilder(stores.Participants, stores.Engagement, engagement.NoSmoothing{})
	router := NewRouter(services.NewEngagementService(stores), snapshot, hub)
	router.now = func() time.Time { return start.Add(5 * time.Minute) }

	return &routerFixture{stores: stores, hub: hub, router: router, meeting: meeting}
}

func (f *routerFixture) newConn() *Conn {
	return &Conn{
		meeting:      f.meeting,
		participants: services.NewParticipantService(f.stores),
	}
}

func (f *routerFixture) route(t *testing.T, conn *Conn, frame string) any {
	t.Helper()
	return f.router.Route(context.Background(), conn, []byte(frame))
}

func TestRouterInvalidFrames(t *testing.T) {
	f := newRouterFixture(t)
	conn := f.newConn()

	t.Run("invalid json", func(t *testing.T) {
		resp := f.route(t, conn, "{not json")
		errMsg, ok := resp.(*ErrorMessage)
		require.True(t, ok)
		assert.Equal(t, "Invalid JSON", errMsg.Message)
	})

	t.Run("unknown type", func(t *testing.T) {
		resp := f.route(t, conn, `{"type":"shout"}`)
		errMsg, ok := resp.(*ErrorMessage)
		require.True(t, ok)
		assert.Contains(t, errMsg.Message, "Unknown message type")
	})
}

func TestRouterMeetingGate(t *testing.T) {
	f := newRouterFixture(t)
	conn := f.newConn()

	t.Run("before the start", func(t *testing.T) {
		f.router.now = func() time.Time { return f.meeting.StartTS.Add(-10 * time.Minute) }
		resp := f.route(t, conn, `{"type":"join","fingerprint":"fp-1"}`)
		msg, ok := resp.(*NotStartedMessage)
		require.True(t, ok)
		assert.Equal(t, "meeting_not_started", msg.Type)
		assert.NotEmpty(t, msg.StartTime)
	})

	t.Run("after the end", func(t *testing.T) {
		f.router.now = func() time.Time { return f.meeting.EndTS.Add(time.Minute) }
		resp := f.route(t, conn, `{"type":"status","status":"engaged"}`)
		msg, ok := resp.(*EndedMessage)
		require.True(t, ok)
		assert.Equal(t, "meeting_ended", msg.Type)
	})

	t.Run("ping always passes", func(t *testing.T) {
		f.router.now = func() time.Time { return f.meeting.EndTS.Add(time.Minute) }
		resp := f.route(t, conn, `{"type":"ping"}`)
		pong, ok := resp.(*PongMessage)
		require.True(t, ok)
		assert.NotEmpty(t, pong.ServerTime)
	})
}

func TestRouterJoin(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	t.Run("join returns the snapshot and broadcasts a delta", func(t *testing.T) {
		sub, err := f.hub.Subscribe(ctx, events.MeetingChannel(f.meeting.ID))
		require.NoError(t, err)
		defer sub.Close()

		conn := f.newConn()
		resp := f.route(t, conn, `{"type":"join","fingerprint":"fp-1"}`)
		joined, ok := resp.(*JoinedMessage)
		require.True(t, ok)
		assert.Equal(t, f.meeting.ID, joined.MeetingID)
		assert.NotEmpty(t, joined.ParticipantID)
		require.NotNil(t, joined.Snapshot)
		assert.Len(t, joined.Snapshot.Participants, 1)

		var delta DeltaMessage
		require.NoError(t, json.Unmarshal(<-sub.C, &delta))
		assert.Equal(t, "delta", delta.Type)
		assert.Equal(t, joined.ParticipantID, delta.Data.ParticipantID)
		assert.Contains(t, delta.Data.Participants, joined.ParticipantID)
	})

	t.Run("double join is rejected", func(t *testing.T) {
		conn := f.newConn()
		_ = f.route(t, conn, `{"type":"join","fingerprint":"fp-2"}`)

		resp := f.route(t, conn, `{"type":"join","fingerprint":"fp-2"}`)
		errMsg, ok := resp.(*ErrorMessage)
		require.True(t, ok)
		assert.Equal(t, "Already joined", errMsg.Message)
	})

	t.Run("empty fingerprint is rejected", func(t *testing.T) {
		conn := f.newConn()
		resp := f.route(t, conn, `{"type":"join","fingerprint":""}`)
		errMsg, ok := resp.(*ErrorMessage)
		require.True(t, ok)
		assert.Contains(t, errMsg.Message, "fingerprint")
	})
}

func TestRouterStatus(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	t.Run("requires a join first", func(t *testing.T) {
		conn := f.newConn()
		resp := f.route(t, conn, `{"type":"status","status":"engaged"}`)
		errMsg, ok := resp.(*ErrorMessage)
		require.True(t, ok)
		assert.Equal(t, "Not joined", errMsg.Message)
	})

	t.Run("records and broadcasts without a direct response", func(t *testing.T) {
		conn := f.newConn()
		joined := f.route(t, conn, `{"type":"join","fingerprint":"fp-1"}`).(*JoinedMessage)

		sub, err := f.hub.Subscribe(ctx, events.MeetingChannel(f.meeting.ID))
		require.NoError(t, err)
		defer sub.Close()

		resp := f.route(t, conn, `{"type":"status","status":"speaking"}`)
		assert.Nil(t, resp)

		var delta DeltaMessage
		require.NoError(t, json.Unmarshal(<-sub.C, &delta))
		assert.Equal(t, "speaking", delta.Data.Status)
		assert.InDelta(t, 100.0, delta.Data.Participants[joined.ParticipantID], 1e-9)
		assert.InDelta(t, 100.0, delta.Data.Overall, 1e-9)

		samples, err := f.stores.Engagement.SamplesForMeeting(ctx, f.meeting.ID, time.Time{}, time.Time{})
		require.NoError(t, err)
		require.Len(t, samples, 1)
		assert.Equal(t, "speaking", samples[0].Status)
	})

	t.Run("invalid status is reported to the sender", func(t *testing.T) {
		conn := f.newConn()
		_ = f.route(t, conn, `{"type":"join","fingerprint":"fp-3"}`)

		resp := f.route(t, conn, `{"type":"status","status":"daydreaming"}`)
		errMsg, ok := resp.(*ErrorMessage)
		require.True(t, ok)
		assert.Contains(t, errMsg.Message, "status")
	})
}

func TestRouterPingTouchesParticipant(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	conn := f.newConn()
	joined := f.route(t, conn, `{"type":"join","fingerprint":"fp-1"}`).(*JoinedMessage)

	pingAt := f.meeting.StartTS.Add(9 * time.Minute)
	f.router.now = func() time.Time { return pingAt }

	resp := f.route(t, conn, `{"type":"ping","client_time":"2026-03-02T10:09:00Z"}`)
	_, ok := resp.(*PongMessage)
	require.True(t, ok)

	p, err := f.stores.Participants.GetByID(ctx, joined.ParticipantID)
	require.NoError(t, err)
	require.NotNil(t, p.LastSeenAt)
	assert.True(t, p.LastSeenAt.Equal(pingAt))
}
