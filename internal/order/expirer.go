package order

import (
	"context"
	"log/slog"
	"time"

	"github.com/onyxmarket/fulfillment-saga/internal/broker"
	"github.com/onyxmarket/fulfillment-saga/internal/clock"
	"github.com/onyxmarket/fulfillment-saga/internal/events"
	"github.com/onyxmarket/fulfillment-saga/internal/metrics"
)

// Expirer is the pending-order expirer of spec §4.5: finds orders still
// pending past their expires_at, moves them to failed by feeding the
// PendingOrderExpired pseudo-event through Store.Transition (and so through
// the same Next table — there is no inbound bus event to drive it), and
// emits order.failed so the
// Reservation Engine's Release handler unwinds any still-held stock.
type Expirer struct {
	bus     *broker.Bus
	store   Store
	clock   clock.Clock
	tick    time.Duration
	batch   int
	logger  *slog.Logger
	metrics *metrics.BusinessMetrics
}

// NewExpirer wires an Expirer. Per spec §4.5 the tick may run more
// frequently than the reservation TTL and rely on the expires_at < now()
// predicate; the default tick passed here is the caller's choice.
func NewExpirer(bus *broker.Bus, store Store, clk clock.Clock, tick time.Duration, batch int, logger *slog.Logger, m *metrics.BusinessMetrics) *Expirer {
	return &Expirer{bus: bus, store: store, clock: clk, tick: tick, batch: batch, logger: logger, metrics: m}
}

// Run blocks, ticking until ctx is cancelled.
func (x *Expirer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-x.clock.After(x.tick):
			x.sweep(ctx)
		}
	}
}

func (x *Expirer) sweep(ctx context.Context) {
	due, err := x.store.DuePending(ctx, x.clock.Now(), x.batch)
	if err != nil {
		x.logger.Error("pending-order expirer query failed", "error", err)
		return
	}
	for _, o := range due {
		to, applied, err := x.store.Transition(ctx, o.OrderID, o.ProductID, o.UserID, PendingOrderExpired, x.clock.Now())
		if err != nil {
			x.logger.Error("pending-order expirer transition failed", "order_id", o.OrderID, "error", err)
			continue
		}
		if !applied || to != Failed {
			continue
		}
		x.metrics.OrdersFailed.Inc()
		if err := x.publishFailed(ctx, o); err != nil {
			x.logger.Error("publish order.failed failed", "order_id", o.OrderID, "error", err)
		}
	}
}

func (x *Expirer) publishFailed(ctx context.Context, o Order) error {
	env, err := events.Wrap(events.OrderFailedPayload{
		OrderID: o.OrderID, ProductID: o.ProductID, UserID: o.UserID,
	}, "", x.clock.Now())
	if err != nil {
		return err
	}
	data, err := events.Marshal(env)
	if err != nil {
		return err
	}
	return x.bus.Publish(ctx, events.OrderFailed, data)
}
