package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProductCache is a Redis cache-aside layer for product reads, adapted
// from the teacher's item cache to the product shape.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache wraps an existing Redis client.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

func productKey(id string) string { return "product:" + id }

// Get returns (Product{}, false, nil) on a cache miss.
func (c *ProductCache) Get(ctx context.Context, productID string) (Product, bool, error) {
	data, err := c.client.Get(ctx, productKey(productID)).Bytes()
	if err == redis.Nil {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, fmt.Errorf("cache get %s: %w", productID, err)
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return Product{}, false, fmt.Errorf("cache unmarshal %s: %w", productID, err)
	}
	return p, true, nil
}

// Set stores a product's current state.
func (c *ProductCache) Set(ctx context.Context, p Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", p.ProductID, err)
	}
	if err := c.client.Set(ctx, productKey(p.ProductID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", p.ProductID, err)
	}
	return nil
}

// Invalidate drops a product's cache entry. Called after every mutation.
func (c *ProductCache) Invalidate(ctx context.Context, productID string) error {
	return c.client.Del(ctx, productKey(productID)).Err()
}
