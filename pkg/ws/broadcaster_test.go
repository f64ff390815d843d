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

func TestBroadcasterActiveMeetings(t *testing.T) {
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

	participant, _, err := stores.Participants.GetOrCreate(ctx, meeting.ID, "fp-1")
	require.NoError(t, err)
	engagements := services.NewEngagementService(stores)
	_, err = engagements.RecordStatus(ctx, meeting, participant, models.StatusEngaged, start.Add(2*time.Minute))
	require.NoError(t, err)

	hub := events.NewHub()
	snapshot := engagement.NewSnapshotBuilder(stores.Participants, stores.Engagement, engagement.NoSmoothing{})
	b := NewBroadcaster(meetings, snapshot, hub, DefaultBroadcastInterval)
	b.now = func() time.Time { return start.Add(5 * time.Minute) }

	sub, err := hub.Subscribe(ctx, events.MeetingChannel(meeting.ID))
	require.NoError(t, err)
	defer sub.Close()

	t.Run("first tick announces the start and a rollup", func(t *testing.T) {
		b.broadcastActiveMeetings(ctx)

		var started StartedMessage
		require.NoError(t, json.Unmarshal(<-sub.C, &started))
		assert.Equal(t, "meeting_started", started.Type)
		assert.Equal(t, meeting.ID, started.MeetingID)

		var delta DeltaMessage
		require.NoError(t, json.Unmarshal(<-sub.C, &delta))
		assert.Equal(t, "delta", delta.Type)
		assert.Equal(t, meeting.ID, delta.Data.MeetingID)
		assert.Empty(t, delta.Data.ParticipantID)
		assert.InDelta(t, 100.0, delta.Data.Overall, 1e-9)
	})

	t.Run("later ticks skip the start announcement", func(t *testing.T) {
		b.broadcastActiveMeetings(ctx)

		var delta DeltaMessage
		require.NoError(t, json.Unmarshal(<-sub.C, &delta))
		assert.Equal(t, "delta", delta.Type)
	})

	t.Run("inactive meetings are ignored", func(t *testing.T) {
		b.now = func() time.Time { return meeting.EndTS.Add(time.Minute) }
		b.broadcastActiveMeetings(ctx)

		select {
		case payload := <-sub.C:
			t.Fatalf("unexpected broadcast after the meeting ended: %s", payload)
		case <-time.After(50 * time.Millisecond):
		}
	})
}
