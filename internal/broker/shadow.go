package broker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ShadowPublisher fans a copy of every published event out over Redis
// pub/sub. It is never authoritative: the source sometimes published the
// same event to both an AMQP exchange and a Redis channel, and this models
// that cleanly as a second sink behind the same Publish call rather than a
// second codepath scattered through handlers.
type ShadowPublisher struct {
	client *redis.Client
}

// NewShadowPublisher wraps an existing Redis client. Pass a nil *Bus shadow
// argument at construction time to disable shadowing entirely.
func NewShadowPublisher(client *redis.Client) *ShadowPublisher {
	return &ShadowPublisher{client: client}
}

// Publish fans payload out on a channel named after the routing key.
func (s *ShadowPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	if err := s.client.Publish(ctx, routingKey, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", routingKey, err)
	}
	return nil
}
