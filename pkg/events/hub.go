package events

import (
	"context"
	"log/slog"
	"sync"
)

// subscriberQueueSize bounds each subscriber's buffer. When a subscriber
// falls this far behind, its oldest message is dropped to make room.
const subscriberQueueSize = 64

type subscriber struct {
	channel string
	ch      chan []byte

	mu     sync.Mutex // guards closed and sends racing with close(ch)
	closed bool
}

// Hub is the in-process pub/sub backend. Publish snapshots the subscriber
// set under the lock and then delivers without holding it, so a slow
// subscriber never blocks registration or other publishers.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a new subscriber on channel. Closing the returned
// subscription unregisters it and closes its message channel.
func (h *Hub) Subscribe(_ context.Context, channel string) (*Subscription, error) {
	sub := &subscriber{channel: channel, ch: make(chan []byte, subscriberQueueSize)}

	h.mu.Lock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*subscriber]struct{})
	}
	h.channels[channel][sub] = struct{}{}
	h.mu.Unlock()

	return &Subscription{C: sub.ch, close: func() { h.unsubscribe(sub) }}, nil
}

// Publish delivers payload to every current subscriber of channel. If a
// subscriber's queue is full, its oldest message is discarded so the new one
// fits.
func (h *Hub) Publish(_ context.Context, channel string, payload []byte) error {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.channels[channel]))
	for sub := range h.channels[channel] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.send(payload)
	}
	return nil
}

func (s *subscriber) send(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- payload:
			return
		default:
		}
		// Queue full. Drop the oldest message and retry.
		select {
		case <-s.ch:
			slog.Warn("Dropping oldest message for slow subscriber",
				"channel", s.channel, "queue_size", subscriberQueueSize)
		default:
		}
	}
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	if subs, ok := h.channels[sub.channel]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.channels, sub.channel)
		}
	}
	h.mu.Unlock()

	sub.mu.Lock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	sub.mu.Unlock()
}

// SubscriberCount reports how many subscribers channel currently has.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// dispatch delivers a payload arriving from an external transport, such as
// a PostgreSQL NOTIFY, to the local subscribers of channel.
func (h *Hub) dispatch(channel string, payload []byte) {
	_ = h.Publish(context.Background(), channel, payload)
}
