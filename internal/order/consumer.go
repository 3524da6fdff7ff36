package order

import (
	"context"
	"errors"
	"log/slog"

	"github.com/onyxmarket/fulfillment-saga/internal/broker"
	"github.com/onyxmarket/fulfillment-saga/internal/clock"
	"github.com/onyxmarket/fulfillment-saga/internal/events"
	"github.com/onyxmarket/fulfillment-saga/internal/metrics"
)

// Consumer drives the Order State Machine off order_queue, bound to
// inventory.* and order.delivered per spec §6's queue table.
type Consumer struct {
	bus     *broker.Bus
	store   Store
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.BusinessMetrics
}

// NewConsumer wires a Consumer.
func NewConsumer(bus *broker.Bus, store Store, clk clock.Clock, logger *slog.Logger, m *metrics.BusinessMetrics) *Consumer {
	return &Consumer{bus: bus, store: store, clock: clk, logger: logger, metrics: m}
}

// Run blocks, consuming order_queue until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("order consumer starting", "queue", "order_queue")
	return c.bus.Subscribe(ctx, "order_queue", c.dispatch, "inventory.*", "order.delivered")
}

func (c *Consumer) dispatch(ctx context.Context, raw []byte, retries int) broker.Outcome {
	env, err := events.UnmarshalEnvelope(raw)
	if err != nil {
		c.logger.Error("malformed envelope", "error", err)
		return broker.Reject
	}
	payload, err := events.Decode(env)
	if err != nil {
		c.logger.Error("malformed payload", "event_type", env.EventType, "error", err)
		return broker.Reject
	}

	var orderID, productID, userID string
	switch p := payload.(type) {
	case *events.InventoryReservedPayload:
		orderID, productID, userID = p.OrderID, p.ProductID, p.UserID
	case *events.InventoryRejectedPayload:
		orderID, productID, userID = p.OrderID, p.ProductID, p.UserID
	case *events.InventoryReleasedPayload:
		orderID, productID = p.OrderID, p.ProductID
	case *events.InventoryReservationExpiredPayload:
		orderID, productID, userID = p.OrderID, p.ProductID, p.UserID
	case *events.InventoryFinalizedPayload:
		orderID, productID = p.OrderID, p.ProductID
	case *events.OrderDeliveredPayload:
		orderID = p.OrderID
	default:
		c.logger.Warn("unhandled event type on order_queue", "event_type", env.EventType)
		return broker.Ack
	}
	if orderID == "" {
		c.logger.Error("malformed payload: missing order_id", "event_type", env.EventType)
		return broker.Reject
	}

	return c.applyTransition(ctx, env.EventType, orderID, productID, userID)
}

func (c *Consumer) applyTransition(ctx context.Context, eventType, orderID, productID, userID string) broker.Outcome {
	if productID == "" || userID == "" {
		// order.delivered and inventory.released/finalized don't all carry
		// user_id/product_id; look the order up to fill in the transition
		// key rather than requiring every event to repeat them.
		existing, err := c.store.Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				c.logger.Error("transition for unknown order", "order_id", orderID)
				return broker.Reject
			}
			return broker.Requeue
		}
		if productID == "" {
			productID = existing.ProductID
		}
		if userID == "" {
			userID = existing.UserID
		}
	}

	to, applied, err := c.store.Transition(ctx, orderID, productID, userID, eventType, c.clock.Now())
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.logger.Error("transition for unknown order", "order_id", orderID)
			return broker.Reject
		}
		c.logger.Warn("transition failed, requeueing", "order_id", orderID, "error", err)
		return broker.Requeue
	}
	if !applied {
		return broker.Ack
	}

	if to == Failed {
		c.metrics.OrdersFailed.Inc()
	}
	if EmitsCancelOnTransition(to) {
		if err := c.publishCancelled(ctx, orderID, productID, userID); err != nil {
			c.logger.Error("publish order.cancelled failed, requeueing", "order_id", orderID, "error", err)
			return broker.Requeue
		}
	}
	return broker.Ack
}

func (c *Consumer) publishCancelled(ctx context.Context, orderID, productID, userID string) error {
	o, err := c.store.Get(ctx, orderID)
	qty := 0
	if err == nil {
		qty = o.Qty
	}
	env, err := events.Wrap(events.OrderCancelledPayload{
		OrderID: orderID, ProductID: productID, Qty: qty, UserID: userID,
	}, "", c.clock.Now())
	if err != nil {
		return err
	}
	data, err := events.Marshal(env)
	if err != nil {
		return err
	}
	return c.bus.Publish(ctx, events.OrderCancelled, data)
}
