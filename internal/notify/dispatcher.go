// Package notify emits fire-and-forget social events. Delivery is not part
// of any correctness contract: failures are logged and swallowed.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types emitted by the competition services.
const (
	EventInviteReceived    = "invite_received"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventCompetitionDeleted = "competition_deleted"
)

// Dispatcher delivers an event to a recipient. Implementations never return
// an error; delivery problems stay inside the dispatcher.
type Dispatcher interface {
	Notify(ctx context.Context, eventType, recipientUserID string, payload map[string]any)
}

// RedisDispatcher publishes events on a per-user Redis channel, from which a
// downstream push service fans out to devices.
type RedisDispatcher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisDispatcher creates a Redis-backed dispatcher
func NewRedisDispatcher(client *redis.Client, logger *slog.Logger) *RedisDispatcher {
	return &RedisDispatcher{client: client, logger: logger}
}

type envelope struct {
	Type      string         `json:"type"`
	Recipient string         `json:"recipient"`
	Payload   map[string]any `json:"payload,omitempty"`
	SentAt    time.Time      `json:"sent_at"`
}

// Notify publishes the event. Errors are logged, never propagated.
func (d *RedisDispatcher) Notify(ctx context.Context, eventType, recipientUserID string, payload map[string]any) {
	data, err := json.Marshal(envelope{
		Type:      eventType,
		Recipient: recipientUserID,
		Payload:   payload,
		SentAt:    time.Now(),
	})
	if err != nil {
		d.logger.Warn("failed to marshal notification", "type", eventType, "error", err)
		return
	}

	channel := fmt.Sprintf("user:%s:events", recipientUserID)
	if err := d.client.Publish(ctx, channel, data).Err(); err != nil {
		d.logger.Warn("failed to publish notification",
			"type", eventType,
			"recipient", recipientUserID,
			"error", err,
		)
	}
}
