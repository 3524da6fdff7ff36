package analytics

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Counters increments the per-entity Redis counters named in spec.md §4.6
// ("e.g. product_view_count, orders_placed_count") plus users_created_count,
// which the original source also tracked under the same "#" binding.
type Counters struct {
	client *redis.Client
}

// NewCounters wires a Counters.
func NewCounters(client *redis.Client) *Counters {
	return &Counters{client: client}
}

// Record increments the counter for the given event type and entity id, if
// that event type has one. Unrecognized event types are a no-op: the
// counters are a fixed, named set, not a generic per-event-type tally.
func (c *Counters) Record(ctx context.Context, eventType, entityID string) error {
	var key string
	switch eventType {
	case "product.viewed":
		key = "product_view_count:" + entityID
	case "order.created":
		key = "orders_placed_count:" + entityID
	case "user.created":
		key = "users_created_count:" + entityID
	default:
		return nil
	}
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("incr %s: %w", key, err)
	}
	return nil
}
