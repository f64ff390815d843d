// Package events is the pub/sub layer that fans meeting updates out to
// WebSocket connections. The default backend is an in-process hub; a
// PostgreSQL NOTIFY/LISTEN backend is available for multi-process
// deployments.
package events

import (
	"context"
	"fmt"
)

// MeetingChannel returns the channel name for a meeting's updates.
func MeetingChannel(meetingID string) string {
	return fmt.Sprintf("meeting:%s", meetingID)
}

// Subscription is one subscriber's view of a channel. Messages arrive on C
// in publish order. Close releases the subscription and eventually closes C.
type Subscription struct {
	C     <-chan []byte
	close func()
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	if s.close != nil {
		s.close()
		s.close = nil
	}
}

// Backend delivers published payloads to the channel's current subscribers.
// Publish is fire-and-forget: there is no persistence, and a subscriber that
// connects later never sees earlier messages. Slow subscribers lose their
// oldest queued messages rather than blocking publishers.
type Backend interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (*Subscription, error)
}
