package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/minhtran-dev/savora-backend/pkg/db/models"
)

// Pusher delivers a committed outbox event to downstream listeners.
type Pusher interface {
	Push(ctx context.Context, event models.OutboxEvent) error
}

type channelPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
	EventChannel(eventType string) string
}

// RedisPusher fans events out over Redis pub/sub. Kitchen displays and the
// storefront subscribe to the per-event-type channels.
type RedisPusher struct {
	client channelPublisher
}

// NewRedisPusher builds a pusher on top of the shared Redis client.
func NewRedisPusher(client channelPublisher) (*RedisPusher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisPusher{client: client}, nil
}

type pushMessage struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	Payload       json.RawMessage `json:"payload"`
}

// Push publishes the event onto its type channel.
func (p *RedisPusher) Push(ctx context.Context, event models.OutboxEvent) error {
	msg, err := json.Marshal(pushMessage{
		EventID:       event.ID.String(),
		EventType:     string(event.EventType),
		AggregateType: string(event.AggregateType),
		AggregateID:   event.AggregateID.String(),
		Payload:       event.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode push message: %w", err)
	}
	channel := p.client.EventChannel(string(event.EventType))
	if err := p.client.Publish(ctx, channel, msg); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}
