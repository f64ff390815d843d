package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetpulse/meetpulse/pkg/engagement"
	"github.com/meetpulse/meetpulse/pkg/events"
	"github.com/meetpulse/meetpulse/pkg/models"
	"github.com/meetpulse/meetpulse/pkg/services"
	"github.com/meetpulse/meetpulse/pkg/store"
	"github.com/meetpulse/meetpulse/pkg/timeutil"
	testdb "github.com/meetpulse/meetpulse/test/database"
)

type lifecycleFixture struct {
	stores *store.Stores
	room   *models.MeetingRoom
	url    string
}

// newLifecycleFixture serves a real Handler over httptest so tests can dial
// it with a client socket and walk the full connection lifecycle.
func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	ctx := context.Background()

	client := testdb.NewTestClient(t)
	stores := store.New(client.DB())

	locations := services.NewLocationService(stores)
	room, err := locations.CreateRoom(ctx, models.CreateRoomRequest{Name: "Aquarium", CityName: "Berlin"})
	require.NoError(t, err)

	hub := events.NewHub()
	snapshot := engagement.NewSnapshotBuilder(stores.Participants, stores.Engagement, engagement.NoSmoothing{})
	router := NewRouter(services.NewEngagementService(stores), snapshot, hub)
	handler := NewHandler(
		stores.Meetings,
		services.NewParticipantService(stores),
		services.NewSummaryService(stores, snapshot),
		router,
		hub,
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		handler.HandleConnection(r.Context(), sock, strings.TrimPrefix(r.URL.Path, "/ws/meetings/"))
	}))
	t.Cleanup(srv.Close)

	return &lifecycleFixture{
		stores: stores,
		room:   room,
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/meetings/",
	}
}

func (f *lifecycleFixture) createMeeting(t *testing.T, start, end time.Time) *models.Meeting {
	t.Helper()
	id, err := timeutil.DeterministicMeetingID(start, "", f.room.ID)
	require.NoError(t, err)
	meeting, _, err := f.stores.Meetings.GetOrCreate(context.Background(), &models.Meeting{
		ID:            id,
		StartTS:       start,
		EndTS:         end,
		MeetingRoomID: &f.room.ID,
		CityID:        &f.room.CityID,
	})
	require.NoError(t, err)
	return meeting
}

func (f *lifecycleFixture) dial(t *testing.T, meetingID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sock, _, err := websocket.Dial(ctx, f.url+meetingID, nil)
	require.NoError(t, err)
	return sock
}

func writeFrame(t *testing.T, sock *websocket.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sock.Write(ctx, websocket.MessageText, []byte(frame)))
}

func readFrame(t *testing.T, sock *websocket.Conn) (string, []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := sock.Read(ctx)
	require.NoError(t, err)
	var envelope struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(data, &envelope))
	return envelope.Type, data
}

// readUntil skips frames (deltas arrive interleaved with direct responses)
// until one of the wanted type shows up.
func readUntil(t *testing.T, sock *websocket.Conn, wantType string) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		typ, data := readFrame(t, sock)
		if typ == wantType {
			return data
		}
	}
	t.Fatalf("no %s frame before deadline", wantType)
	return nil
}

func expectClose(t *testing.T, sock *websocket.Conn, code websocket.StatusCode) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := sock.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, code, websocket.CloseStatus(err))
}

func TestHandleConnectionUnknownMeeting(t *testing.T) {
	f := newLifecycleFixture(t)

	sock := f.dial(t, "000000000000000000000000000000000000")

	typ, data := readFrame(t, sock)
	assert.Equal(t, "error", typ)
	var msg ErrorMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "Meeting not found", msg.Message)

	expectClose(t, sock, StatusMeetingNotFound)
}

func TestHandleConnectionEndedMeeting(t *testing.T) {
	f := newLifecycleFixture(t)
	now := time.Now().UTC()
	meeting := f.createMeeting(t, now.Add(-2*time.Hour), now.Add(-time.Hour))

	sock := f.dial(t, meeting.ID)

	typ, data := readFrame(t, sock)
	assert.Equal(t, "meeting_ended", typ)
	var ended EndedMessage
	require.NoError(t, json.Unmarshal(data, &ended))
	assert.Equal(t, timeutil.FormatUTC(meeting.EndTS), ended.EndTime)

	expectClose(t, sock, websocket.StatusNormalClosure)
}

func TestHandleConnectionCountdown(t *testing.T) {
	f := newLifecycleFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	meeting := f.createMeeting(t, now.Add(time.Hour), now.Add(2*time.Hour))

	sock := f.dial(t, meeting.ID)
	defer sock.Close(websocket.StatusNormalClosure, "")

	typ, data := readFrame(t, sock)
	assert.Equal(t, "meeting_countdown", typ)
	var countdown CountdownMessage
	require.NoError(t, json.Unmarshal(data, &countdown))
	assert.Equal(t, meeting.ID, countdown.MeetingID)
	assert.Equal(t, timeutil.FormatUTC(meeting.StartTS), countdown.StartTime)
	require.NotNil(t, countdown.CityName)
	assert.Equal(t, "Berlin", *countdown.CityName)
	require.NotNil(t, countdown.MeetingRoomName)
	assert.Equal(t, "Aquarium", *countdown.MeetingRoomName)

	// The connection stays open while waiting for the start; pings still
	// get answered.
	writeFrame(t, sock, `{"type":"ping"}`)
	typ, _ = readFrame(t, sock)
	assert.Equal(t, "pong", typ)
}

func TestHandleConnectionEndWatcher(t *testing.T) {
	f := newLifecycleFixture(t)
	now := time.Now().UTC()
	meeting := f.createMeeting(t, now.Add(-10*time.Minute), now.Add(750*time.Millisecond))

	sock := f.dial(t, meeting.ID)

	writeFrame(t, sock, `{"type":"join","fingerprint":"fp-lifecycle"}`)
	data := readUntil(t, sock, "joined")
	var joined JoinedMessage
	require.NoError(t, json.Unmarshal(data, &joined))
	assert.NotEmpty(t, joined.ParticipantID)
	assert.Equal(t, meeting.ID, joined.MeetingID)

	writeFrame(t, sock, `{"type":"status","status":"engaged"}`)

	data = readUntil(t, sock, "meeting_ended")
	var ended EndedMessage
	require.NoError(t, json.Unmarshal(data, &ended))
	assert.Equal(t, timeutil.FormatUTC(meeting.EndTS), ended.EndTime)
	require.NotNil(t, ended.Summary)
	assert.Equal(t, 1, ended.Summary.MaxParticipants)
	assert.InDelta(t, 1.0, ended.Summary.NormalizedEngagement, 1e-9)
	assert.Equal(t, engagement.LevelHigh, ended.Summary.EngagementLevel)

	expectClose(t, sock, websocket.StatusNormalClosure)

	// A reconnect to the ended meeting gets the terminal frame again and a
	// normal close.
	sock2 := f.dial(t, meeting.ID)
	typ, _ := readFrame(t, sock2)
	assert.Equal(t, "meeting_ended", typ)
	expectClose(t, sock2, websocket.StatusNormalClosure)
}
