package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/onyxmarket/fulfillment-saga/internal/broker"
	"github.com/onyxmarket/fulfillment-saga/internal/clock"
	"github.com/onyxmarket/fulfillment-saga/internal/events"
	"github.com/onyxmarket/fulfillment-saga/internal/metrics"
)

// CreateOrderRequest is the thin ingress shape — HTTP parsing of this is
// out of scope (spec §1); http_handler.go does only enough JSON decoding
// to call Service.CreateOrder.
type CreateOrderRequest struct {
	UserID     string
	SupplierID string
	ProductID  string
	Qty        int
	Items      string
}

// Service is the order-creation ingress: persist a pending order, publish
// order.created. This is boundary glue, not part of THE CORE saga, but is
// what actually kicks the saga off.
type Service struct {
	store          Store
	bus            *broker.Bus
	clock          clock.Clock
	reservationTTL time.Duration
	logger         *slog.Logger
	metrics        *metrics.BusinessMetrics
}

// NewService wires a Service.
func NewService(store Store, bus *broker.Bus, clk clock.Clock, reservationTTL time.Duration, logger *slog.Logger, m *metrics.BusinessMetrics) *Service {
	return &Service{store: store, bus: bus, clock: clk, reservationTTL: reservationTTL, logger: logger, metrics: m}
}

// CreateOrder persists a pending order and publishes order.created. The
// order's expires_at mirrors the reservation TTL by default (spec §4.5:
// "tick equal to the reservation TTL ... implementations may tick more
// frequently").
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if req.ProductID == "" || req.UserID == "" || req.Qty <= 0 {
		return Order{}, fmt.Errorf("create order: qty, product_id and user_id are required")
	}

	now := s.clock.Now()
	o := Order{
		OrderID:    uuid.New().String(),
		UserID:     req.UserID,
		SupplierID: req.SupplierID,
		ProductID:  req.ProductID,
		Qty:        req.Qty,
		Items:      req.Items,
		Status:     Pending,
		ExpiresAt:  now.Add(s.reservationTTL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Create(ctx, o); err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	s.metrics.OrdersCreated.Inc()

	env, err := events.Wrap(events.OrderCreatedPayload{
		OrderID: o.OrderID, ProductID: o.ProductID, SupplierID: o.SupplierID,
		UserID: o.UserID, Qty: o.Qty, ExpiresAt: o.ExpiresAt, Timestamp: now,
	}, "", now)
	if err != nil {
		return o, fmt.Errorf("wrap order.created: %w", err)
	}
	data, err := events.Marshal(env)
	if err != nil {
		return o, fmt.Errorf("marshal order.created: %w", err)
	}
	if err := s.bus.Publish(ctx, events.OrderCreated, data); err != nil {
		s.logger.Error("publish order.created failed", "order_id", o.OrderID, "error", err)
		return o, fmt.Errorf("publish order.created: %w", err)
	}
	return o, nil
}

// Get reads an order by id, for thin status-check ingress.
func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	return s.store.Get(ctx, orderID)
}
