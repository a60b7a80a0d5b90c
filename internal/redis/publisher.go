package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ridepool/internal/domain"
)

// envelope is the wire form of a broadcast event on every pub/sub channel.
type envelope struct {
	Type    domain.EventKind `json:"type"`
	SentAt  time.Time        `json:"sentAt"`
	Payload any              `json:"payload"`
}

// Publisher fans broadcast events out over Redis pub/sub, one channel per event topic.
type Publisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Name identifies the sink in logs.
func (p *Publisher) Name() string { return "redis-pubsub" }

// Publish sends the event to its topic channel.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(envelope{Type: event.Kind, SentAt: event.SentAt, Payload: event.Payload})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, event.Topic(), data).Err()
}
