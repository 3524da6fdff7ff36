package inventory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/onyxmarket/fulfillment-saga/internal/broker"
	"github.com/onyxmarket/fulfillment-saga/internal/events"
)

// CatalogSync handles product.* lifecycle events, a feature present in the
// original source (`inventory-management/src/redis_sub/events.rs`) that
// the distillation dropped — spec's data model assumes the product row
// already exists, but something has to create/update/retire it.
type CatalogSync struct {
	store  Store
	logger *slog.Logger
}

// NewCatalogSync wires a CatalogSync.
func NewCatalogSync(store Store, logger *slog.Logger) *CatalogSync {
	return &CatalogSync{store: store, logger: logger}
}

// Dispatch is the Handler passed to broker.Subscribe for product_queue.
func (c *CatalogSync) Dispatch(ctx context.Context, raw []byte, retries int) broker.Outcome {
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

	switch p := payload.(type) {
	case *events.ProductCreatedPayload:
		return c.handleCreated(ctx, p)
	case *events.ProductUpdatedPayload:
		return c.handleUpdated(ctx, p)
	case *events.ProductDeletedPayload:
		return c.handleDeleted(ctx, p)
	default:
		c.logger.Warn("unhandled event type on product_queue", "event_type", env.EventType)
		return broker.Ack
	}
}

func (c *CatalogSync) handleCreated(ctx context.Context, p *events.ProductCreatedPayload) broker.Outcome {
	if p.ProductID == "" || p.SupplierID == "" {
		return broker.Reject
	}
	err := c.store.UpsertProduct(ctx, Product{
		SupplierID: p.SupplierID, ProductID: p.ProductID, Name: p.Name,
		Description: p.Description, Category: p.Category, Price: p.Price,
		Unit: p.Unit, Quantity: p.Quantity, LowStockThreshold: p.LowStockThreshold,
		Available: true,
	})
	if err != nil {
		c.logger.Warn("product create failed, requeueing", "product_id", p.ProductID, "error", err)
		return broker.Requeue
	}
	return broker.Ack
}

func (c *CatalogSync) handleUpdated(ctx context.Context, p *events.ProductUpdatedPayload) broker.Outcome {
	if p.ProductID == "" {
		return broker.Reject
	}
	existing, err := c.store.GetProduct(ctx, p.ProductID)
	if errors.Is(err, ErrProductNotFound) {
		c.logger.Error("update for unknown product", "product_id", p.ProductID)
		return broker.Reject
	}
	if err != nil {
		return broker.Requeue
	}
	existing.Name = p.Name
	existing.Description = p.Description
	existing.Category = p.Category
	existing.Price = p.Price
	existing.Unit = p.Unit
	existing.LowStockThreshold = p.LowStockThreshold
	existing.Available = p.Available
	if err := c.store.UpsertProduct(ctx, existing); err != nil {
		c.logger.Warn("product update failed, requeueing", "product_id", p.ProductID, "error", err)
		return broker.Requeue
	}
	return broker.Ack
}

func (c *CatalogSync) handleDeleted(ctx context.Context, p *events.ProductDeletedPayload) broker.Outcome {
	if p.ProductID == "" {
		return broker.Reject
	}
	active, err := c.store.CountActiveReservations(ctx, p.ProductID)
	if err != nil {
		return broker.Requeue
	}
	if active > 0 {
		c.logger.Error("refusing to delete product with active reservations", "product_id", p.ProductID, "active_reservations", active)
		return broker.Reject
	}
	if err := c.store.DeleteProduct(ctx, p.ProductID); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return broker.Ack
		}
		return broker.Requeue
	}
	return broker.Ack
}
