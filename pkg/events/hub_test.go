package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	sub, err := hub.Subscribe(ctx, "meeting:abc")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, hub.Publish(ctx, "meeting:abc", []byte("one")))
	require.NoError(t, hub.Publish(ctx, "meeting:abc", []byte("two")))

	assert.Equal(t, "one", string(<-sub.C))
	assert.Equal(t, "two", string(<-sub.C))
}

func TestHubChannelIsolation(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	subA, err := hub.Subscribe(ctx, "meeting:a")
	require.NoError(t, err)
	defer subA.Close()
	subB, err := hub.Subscribe(ctx, "meeting:b")
	require.NoError(t, err)
	defer subB.Close()

	require.NoError(t, hub.Publish(ctx, "meeting:a", []byte("for-a")))

	assert.Equal(t, "for-a", string(<-subA.C))
	select {
	case payload := <-subB.C:
		t.Fatalf("unexpected message on other channel: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubFanOut(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	subs := make([]*Subscription, 3)
	for i := range subs {
		sub, err := hub.Subscribe(ctx, "meeting:abc")
		require.NoError(t, err)
		defer sub.Close()
		subs[i] = sub
	}
	assert.Equal(t, 3, hub.SubscriberCount("meeting:abc"))

	require.NoError(t, hub.Publish(ctx, "meeting:abc", []byte("hello")))
	for i, sub := range subs {
		assert.Equal(t, "hello", string(<-sub.C), "subscriber %d", i)
	}
}

func TestHubDropsOldestWhenQueueFull(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	sub, err := hub.Subscribe(ctx, "meeting:abc")
	require.NoError(t, err)
	defer sub.Close()

	// Overfill the queue without draining it.
	total := subscriberQueueSize + 10
	for i := 0; i < total; i++ {
		require.NoError(t, hub.Publish(ctx, "meeting:abc", []byte(fmt.Sprintf("msg-%d", i))))
	}

	// The queue holds the newest subscriberQueueSize messages.
	first := <-sub.C
	assert.Equal(t, fmt.Sprintf("msg-%d", total-subscriberQueueSize), string(first))

	var last []byte
	for i := 1; i < subscriberQueueSize; i++ {
		last = <-sub.C
	}
	assert.Equal(t, fmt.Sprintf("msg-%d", total-1), string(last))
}

func TestSubscriptionClose(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	sub, err := hub.Subscribe(ctx, "meeting:abc")
	require.NoError(t, err)

	sub.Close()
	assert.Zero(t, hub.SubscriberCount("meeting:abc"))

	// Channel is closed after unsubscribe.
	_, ok := <-sub.C
	assert.False(t, ok)

	// Close is idempotent and publishing afterwards does not panic.
	sub.Close()
	assert.NoError(t, hub.Publish(ctx, "meeting:abc", []byte("late")))
}

func TestMeetingChannel(t *testing.T) {
	assert.Equal(t, "meeting:abc123", MeetingChannel("abc123"))
}
