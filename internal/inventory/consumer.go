package inventory

import (
	"context"
	"log/slog"

	"github.com/onyxmarket/fulfillment-saga/internal/broker"
)

// Consumer drives the Reservation Engine off inventory_queue, bound to
// order.* and payment.* per spec §6's queue table.
type Consumer struct {
	bus    *broker.Bus
	engine *Engine
	logger *slog.Logger
}

// NewConsumer wires a Consumer.
func NewConsumer(bus *broker.Bus, engine *Engine, logger *slog.Logger) *Consumer {
	return &Consumer{bus: bus, engine: engine, logger: logger}
}

// Run blocks, consuming inventory_queue until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("inventory consumer starting", "queue", "inventory_queue")
	return c.bus.Subscribe(ctx, "inventory_queue", c.engine.Dispatch, "order.*", "payment.*")
}
