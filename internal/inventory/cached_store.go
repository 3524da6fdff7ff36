package inventory

import (
	"context"
	"log/slog"
	"time"
)

// CachedStore wraps a Store with Redis cache-aside reads and invalidates
// on every mutation, the way the teacher's CachedStore wraps PostgresStore.
// Reservation mutations don't benefit from caching (same rationale as the
// teacher's comment on its own Reserve/Confirm/Release delegation) — only
// product reads and the things that change a product row are cached here.
type CachedStore struct {
	Store
	cache  *ProductCache
	logger *slog.Logger
}

// NewCachedStore wraps store with cache.
func NewCachedStore(store Store, cache *ProductCache, logger *slog.Logger) *CachedStore {
	return &CachedStore{Store: store, cache: cache, logger: logger}
}

func (s *CachedStore) GetProduct(ctx context.Context, productID string) (Product, error) {
	if cached, hit, err := s.cache.Get(ctx, productID); err != nil {
		s.logger.Warn("product cache read failed", "product_id", productID, "error", err)
	} else if hit {
		return cached, nil
	}

	p, err := s.Store.GetProduct(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.logger.Warn("product cache populate failed", "product_id", productID, "error", err)
	}
	return p, nil
}

func (s *CachedStore) invalidate(ctx context.Context, productID string) {
	if err := s.cache.Invalidate(ctx, productID); err != nil {
		s.logger.Warn("product cache invalidate failed", "product_id", productID, "error", err)
	}
}

func (s *CachedStore) Reserve(ctx context.Context, orderID, productID, userID string, qty int, ttl time.Duration, now time.Time) (ReserveResult, error) {
	res, err := s.Store.Reserve(ctx, orderID, productID, userID, qty, ttl, now)
	if err == nil {
		s.invalidate(ctx, productID)
	}
	return res, err
}

func (s *CachedStore) Release(ctx context.Context, orderID, productID string, qty int) (ReleaseResult, error) {
	res, err := s.Store.Release(ctx, orderID, productID, qty)
	if err == nil && !res.NoOp {
		s.invalidate(ctx, productID)
	}
	return res, err
}

func (s *CachedStore) Finalize(ctx context.Context, orderID, productID string, qty int) (FinalizeResult, error) {
	res, err := s.Store.Finalize(ctx, orderID, productID, qty)
	if err == nil {
		s.invalidate(ctx, productID)
	}
	return res, err
}

func (s *CachedStore) UpsertProduct(ctx context.Context, p Product) error {
	err := s.Store.UpsertProduct(ctx, p)
	if err == nil {
		s.invalidate(ctx, p.ProductID)
	}
	return err
}

func (s *CachedStore) DeleteProduct(ctx context.Context, productID string) error {
	err := s.Store.DeleteProduct(ctx, productID)
	if err == nil {
		s.invalidate(ctx, productID)
	}
	return err
}
