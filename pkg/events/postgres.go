package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// notifyPayloadLimit leaves headroom under PostgreSQL's 8000-byte NOTIFY
// payload cap.
const notifyPayloadLimit = 7900

// PostgresBackend routes publishes through pg_notify so every process
// attached to the same database sees them. A dedicated LISTEN connection
// feeds incoming notifications into a local Hub for fan-out; LISTEN is
// issued when a channel gains its first local subscriber and UNLISTEN when
// it loses its last.
type PostgresBackend struct {
	db       *sql.DB
	hub      *Hub
	listener *notifyListener

	refMu sync.Mutex
	refs  map[string]int
}

func NewPostgresBackend(db *sql.DB, connString string) *PostgresBackend {
	hub := NewHub()
	return &PostgresBackend{
		db:       db,
		hub:      hub,
		listener: newNotifyListener(connString, hub),
		refs:     make(map[string]int),
	}
}

// Start brings up the LISTEN connection.
func (b *PostgresBackend) Start(ctx context.Context) error {
	return b.listener.start(ctx)
}

// Stop tears down the LISTEN connection.
func (b *PostgresBackend) Stop(ctx context.Context) {
	b.listener.stop(ctx)
}

// Publish broadcasts payload to channel via pg_notify. Payloads exceeding
// the NOTIFY limit are replaced by a minimal truncation envelope carrying
// only routing fields.
func (b *PostgresBackend) Publish(ctx context.Context, channel string, payload []byte) error {
	notifyPayload := string(payload)
	if len(notifyPayload) > notifyPayloadLimit {
		truncated, err := buildTruncatedPayload(payload)
		if err != nil {
			return err
		}
		notifyPayload = truncated
	}

	if _, err := b.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// Subscribe registers a local subscriber and ensures the process LISTENs on
// the channel.
func (b *PostgresBackend) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	b.refMu.Lock()
	b.refs[channel]++
	first := b.refs[channel] == 1
	b.refMu.Unlock()

	if first {
		if err := b.listener.listen(ctx, channel); err != nil {
			b.release(channel)
			return nil, err
		}
	}

	sub, err := b.hub.Subscribe(ctx, channel)
	if err != nil {
		b.release(channel)
		return nil, err
	}

	inner := sub.close
	sub.close = func() {
		inner()
		b.release(channel)
	}
	return sub, nil
}

func (b *PostgresBackend) release(channel string) {
	b.refMu.Lock()
	b.refs[channel]--
	last := b.refs[channel] <= 0
	if last {
		delete(b.refs, channel)
	}
	b.refMu.Unlock()

	if last {
		if err := b.listener.unlisten(context.Background(), channel); err != nil {
			slog.Warn("UNLISTEN failed", "channel", channel, "error", err)
		}
	}
}

// buildTruncatedPayload extracts the routing fields from an oversized JSON
// payload so clients can at least identify what they missed.
func buildTruncatedPayload(payload []byte) (string, error) {
	var routing struct {
		Type      string `json:"type"`
		MeetingID string `json:"meeting_id"`
	}
	if err := json.Unmarshal(payload, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncated, err := json.Marshal(map[string]any{
		"type":       routing.Type,
		"meeting_id": routing.MeetingID,
		"truncated":  true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncated), nil
}
