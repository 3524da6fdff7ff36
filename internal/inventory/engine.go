package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/onyxmarket/fulfillment-saga/internal/broker"
	"github.com/onyxmarket/fulfillment-saga/internal/clock"
	"github.com/onyxmarket/fulfillment-saga/internal/events"
	"github.com/onyxmarket/fulfillment-saga/internal/metrics"
)

// Engine is the Reservation Engine: the saga's inventory-side participant,
// wiring Store transactions to bus events per spec §4.3.
type Engine struct {
	store          Store
	bus            *broker.Bus
	clock          clock.Clock
	reservationTTL time.Duration
	logger         *slog.Logger
	metrics        *metrics.BusinessMetrics
	lowStock       *LowStockSignal
}

// NewEngine wires a Reservation Engine.
func NewEngine(store Store, bus *broker.Bus, clk clock.Clock, reservationTTL time.Duration, logger *slog.Logger, m *metrics.BusinessMetrics, lowStock *LowStockSignal) *Engine {
	return &Engine{store: store, bus: bus, clock: clk, reservationTTL: reservationTTL, logger: logger, metrics: m, lowStock: lowStock}
}

// Dispatch is the Handler passed to broker.Subscribe for inventory_queue.
// It decodes the envelope and routes to the matching handler.
func (e *Engine) Dispatch(ctx context.Context, raw []byte, retries int) broker.Outcome {
	env, err := events.UnmarshalEnvelope(raw)
	if err != nil {
		e.logger.Error("malformed envelope", "error", err)
		return broker.Reject
	}
	payload, err := events.Decode(env)
	if err != nil {
		e.logger.Error("malformed payload", "event_type", env.EventType, "error", err)
		return broker.Reject
	}

	switch p := payload.(type) {
	case *events.OrderCreatedPayload:
		return e.handleReserve(ctx, p)
	case *events.OrderCancelledPayload:
		return e.handleRelease(ctx, events.InventoryReleased, p.OrderID, p.ProductID, p.Qty, true)
	case *events.OrderFailedPayload:
		return e.handleRelease(ctx, events.InventoryReleased, p.OrderID, p.ProductID, 0, false)
	case *events.PaymentSuccessPayload:
		return e.handleFinalize(ctx, p)
	default:
		e.logger.Warn("unhandled event type on inventory_queue", "event_type", env.EventType)
		return broker.Ack
	}
}

func (e *Engine) handleReserve(ctx context.Context, p *events.OrderCreatedPayload) broker.Outcome {
	if p.OrderID == "" || p.ProductID == "" || p.Qty <= 0 {
		e.logger.Error("malformed order.created payload", "order_id", p.OrderID)
		return broker.Reject
	}

	result, err := e.store.Reserve(ctx, p.OrderID, p.ProductID, p.UserID, p.Qty, e.reservationTTL, e.clock.Now())
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			e.logger.Error("reserve against unknown product", "order_id", p.OrderID, "product_id", p.ProductID)
			return broker.Reject
		}
		e.logger.Warn("reserve transaction failed, requeueing", "order_id", p.OrderID, "error", err)
		return broker.Requeue
	}

	for _, swept := range result.SweptExpired {
		e.publishReservationExpired(ctx, swept)
	}

	switch result.Outcome {
	case ReserveCreated, ReserveIdempotent:
		if err := e.publishReserved(ctx, result.Reservation); err != nil {
			e.logger.Error("publish inventory.reserved failed, requeueing", "order_id", p.OrderID, "error", err)
			return broker.Requeue
		}
		if result.Outcome == ReserveCreated {
			e.metrics.ReservationsCreated.Inc()
			e.signalLowStock(ctx, result.Product)
		}
		return broker.Ack
	case ReserveRejectedStock:
		e.metrics.ReservationsRejected.Inc()
		if err := e.publishRejected(ctx, p); err != nil {
			e.logger.Error("publish inventory.rejected failed, requeueing", "order_id", p.OrderID, "error", err)
			return broker.Requeue
		}
		return broker.Ack
	default:
		return broker.Ack
	}
}

func (e *Engine) handleRelease(ctx context.Context, emitAs, orderID, productID string, qty int, haveQty bool) broker.Outcome {
	if orderID == "" {
		e.logger.Error("malformed release-triggering payload: missing order_id")
		return broker.Reject
	}

	if !haveQty {
		reservation, ok, err := e.store.LookupReservation(ctx, orderID)
		if err != nil {
			e.logger.Warn("lookup reservation failed, requeueing", "order_id", orderID, "error", err)
			return broker.Requeue
		}
		if !ok {
			return broker.Ack
		}
		qty = reservation.Qty
		if productID == "" {
			productID = reservation.ProductID
		}
	}

	result, err := e.store.Release(ctx, orderID, productID, qty)
	if err != nil {
		if errors.Is(err, ErrQtyMismatch) || errors.Is(err, ErrConsistency) {
			e.logger.Error("release logical conflict", "order_id", orderID, "error", err)
			return broker.Reject
		}
		e.logger.Warn("release transaction failed, requeueing", "order_id", orderID, "error", err)
		return broker.Requeue
	}
	if result.NoOp {
		return broker.Ack
	}

	e.metrics.ReservationsReleased.Inc()
	if err := e.publishReleaseLike(ctx, emitAs, result.Reservation); err != nil {
		e.logger.Error("publish release event failed, requeueing", "order_id", orderID, "error", err)
		return broker.Requeue
	}
	e.signalLowStock(ctx, result.Product)
	return broker.Ack
}

func (e *Engine) handleFinalize(ctx context.Context, p *events.PaymentSuccessPayload) broker.Outcome {
	if p.OrderID == "" || p.ProductID == "" {
		e.logger.Error("malformed payment.success payload", "order_id", p.OrderID)
		return broker.Reject
	}

	result, err := e.store.Finalize(ctx, p.OrderID, p.ProductID, p.Qty)
	if err != nil {
		switch {
		case errors.Is(err, ErrReservationNotFound):
			e.logger.Error("payment for unknown reservation", "order_id", p.OrderID)
			return broker.Reject
		case errors.Is(err, ErrReservationAlreadyReleased):
			e.logger.Error("reservation already consumed or expired", "order_id", p.OrderID)
			return broker.Reject
		case errors.Is(err, ErrQtyMismatch):
			e.logger.Error("finalize qty mismatch", "order_id", p.OrderID)
			return broker.Reject
		case errors.Is(err, ErrConsistency):
			e.logger.Error("finalize consistency error, surfacing loudly", "order_id", p.OrderID)
			return broker.Reject
		default:
			e.logger.Warn("finalize transaction failed, requeueing", "order_id", p.OrderID, "error", err)
			return broker.Requeue
		}
	}

	e.metrics.ReservationsFinalized.Inc()
	if err := e.publishFinalized(ctx, result.Reservation); err != nil {
		e.logger.Error("publish inventory.finalized failed, requeueing", "order_id", p.OrderID, "error", err)
		return broker.Requeue
	}
	e.signalLowStock(ctx, result.Product)
	return broker.Ack
}

// ExpireOnce drives the periodic reservation expirer (§4.5): pulls reservations
// past expires_at and releases each one through the same Release algorithm,
// emitting inventory.reservation_expired instead of inventory.released.
func (e *Engine) ExpireOnce(ctx context.Context, limit int) (int, error) {
	due, err := e.store.DueForExpiry(ctx, e.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range due {
		result, err := e.store.Release(ctx, r.OrderID, r.ProductID, r.Qty)
		if err != nil {
			e.logger.Error("expirer release failed", "order_id", r.OrderID, "error", err)
			continue
		}
		if result.NoOp {
			continue
		}
		e.metrics.ReservationsExpired.Inc()
		if err := e.publishReservationExpired(ctx, result.Reservation); err != nil {
			e.logger.Error("publish inventory.reservation_expired failed", "order_id", r.OrderID, "error", err)
			continue
		}
		e.signalLowStock(ctx, result.Product)
		count++
	}
	return count, nil
}

func (e *Engine) signalLowStock(ctx context.Context, p Product) {
	if e.lowStock == nil || p.LowStockThreshold <= 0 || p.Quantity > p.LowStockThreshold {
		return
	}
	payload, err := events.Wrap(events.InventoryLowStockPayload{
		ProductID: p.ProductID,
		Quantity:  p.Quantity,
		Threshold: p.LowStockThreshold,
	}, "", e.clock.Now())
	if err != nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	e.lowStock.CheckAndSignal(ctx, p, data)
	e.metrics.LowStockSignals.Inc()
}

func (e *Engine) publishReserved(ctx context.Context, r Reservation) error {
	return e.publish(ctx, events.InventoryReservedPayload{
		OrderID: r.OrderID, ProductID: r.ProductID, ReservationID: r.ReservationID,
		Qty: r.Qty, UserID: r.UserID, ExpiresAt: r.ExpiresAt,
	})
}

func (e *Engine) publishRejected(ctx context.Context, p *events.OrderCreatedPayload) error {
	return e.publish(ctx, events.InventoryRejectedPayload{
		OrderID: p.OrderID, ProductID: p.ProductID, Qty: p.Qty, UserID: p.UserID,
	})
}

func (e *Engine) publishReleaseLike(ctx context.Context, eventType string, r Reservation) error {
	switch eventType {
	case events.InventoryReleased:
		return e.publish(ctx, events.InventoryReleasedPayload{
			OrderID: r.OrderID, ProductID: r.ProductID, ReservationID: r.ReservationID, Qty: r.Qty,
		})
	default:
		return e.publishReservationExpired(ctx, r)
	}
}

func (e *Engine) publishReservationExpired(ctx context.Context, r Reservation) error {
	return e.publish(ctx, events.InventoryReservationExpiredPayload{
		OrderID: r.OrderID, ProductID: r.ProductID, ReservationID: r.ReservationID,
		Qty: r.Qty, UserID: r.UserID,
	})
}

func (e *Engine) publishFinalized(ctx context.Context, r Reservation) error {
	return e.publish(ctx, events.InventoryFinalizedPayload{
		OrderID: r.OrderID, ProductID: r.ProductID, ReservationID: r.ReservationID, Qty: r.Qty,
	})
}

func (e *Engine) publish(ctx context.Context, p events.Payload) error {
	env, err := events.Wrap(p, "", e.clock.Now())
	if err != nil {
		return err
	}
	data, err := events.Marshal(env)
	if err != nil {
		return err
	}
	return e.bus.Publish(ctx, p.EventType(), data)
}
