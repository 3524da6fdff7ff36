package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/onyxmarket/fulfillment-saga/internal/broker"
	"github.com/onyxmarket/fulfillment-saga/internal/clock"
	"github.com/onyxmarket/fulfillment-saga/internal/events"
)

// Consumer drives the Analytics Ingest module off analytics_queue, bound to
// every routing key via "#" (spec.md §4.6). It is a catch-all: unlike the
// saga consumers it never rejects on an event_type it doesn't recognize,
// since its job is to log everything that crosses the bus.
type Consumer struct {
	bus      *broker.Bus
	store    Store
	counters *Counters
	clock    clock.Clock
	logger   *slog.Logger
}

// NewConsumer wires a Consumer.
func NewConsumer(bus *broker.Bus, store Store, counters *Counters, clk clock.Clock, logger *slog.Logger) *Consumer {
	return &Consumer{bus: bus, store: store, counters: counters, clock: clk, logger: logger}
}

// Run blocks, consuming analytics_queue until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("analytics consumer starting", "queue", "analytics_queue")
	return c.bus.Subscribe(ctx, "analytics_queue", c.dispatch, "#")
}

func (c *Consumer) dispatch(ctx context.Context, raw []byte, retries int) broker.Outcome {
	env, err := events.UnmarshalEnvelope(raw)
	if err != nil {
		c.logger.Error("malformed envelope, dead-lettering", "error", err)
		return broker.Reject
	}

	id := entityID(env.EventType, env.Data)
	if err := c.store.Insert(ctx, Event{
		ID:             id,
		EventType:      env.EventType,
		EventTimestamp: env.EventTimestamp,
		Data:           env.Data,
	}); err != nil {
		c.logger.Error("analytics insert failed", "event_type", env.EventType, "error", err)
		return broker.Requeue
	}

	if err := c.counters.Record(ctx, env.EventType, id); err != nil {
		// Counters are best-effort (spec.md §4.6 treats them as auxiliary to
		// the durable log): log and still Ack, don't force a redelivery of an
		// event that's already durably logged just because Redis hiccuped.
		c.logger.Warn("analytics counter increment failed", "event_type", env.EventType, "error", err)
	}

	return broker.Ack
}

// entityID derives the id to key the analytics.events row and counters on,
// by event_type family, the way analytics/src/worker/consumer.rs does:
// order.* -> order_id, product.* -> product_id, user.* -> user_id,
// inventory.* -> product_id (inventory events carry no order-grouping id of
// their own in spec.md's data model; product_id is the closest durable
// entity they do carry), falling back to a fresh uuid for anything else.
func entityID(eventType string, data json.RawMessage) string {
	var key string
	switch {
	case strings.HasPrefix(eventType, "order."):
		key = "order_id"
	case strings.HasPrefix(eventType, "product."):
		key = "product_id"
	case strings.HasPrefix(eventType, "user."):
		key = "user_id"
	case strings.HasPrefix(eventType, "inventory."):
		key = "product_id"
	default:
		return uuid.New().String()
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return uuid.New().String()
	}
	raw, ok := fields[key]
	if !ok {
		return uuid.New().String()
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil || v == "" {
		return uuid.New().String()
	}
	return v
}
