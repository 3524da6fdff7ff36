package inventory

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// LowStockSignal is emitted best-effort, over Redis only — the original
// source never put this on the durable bus either, and spec's dual-path
// publisher note treats a KV-only channel as a legitimate "optional
// low-latency observer" for signals that aren't saga-critical.
type LowStockSignal struct {
	client *redis.Client
	logger *slog.Logger
}

// NewLowStockSignal wraps a Redis client.
func NewLowStockSignal(client *redis.Client, logger *slog.Logger) *LowStockSignal {
	return &LowStockSignal{client: client, logger: logger}
}

// CheckAndSignal publishes inventory.lowstock on the "inventory:lowstock"
// channel if the product's remaining quantity is at or below its
// threshold. Failures are logged, never surfaced to the caller — this
// never gates saga correctness.
func (l *LowStockSignal) CheckAndSignal(ctx context.Context, p Product, payload []byte) {
	if l == nil || p.LowStockThreshold <= 0 || p.Quantity > p.LowStockThreshold {
		return
	}
	if err := l.client.Publish(ctx, "inventory:lowstock", payload).Err(); err != nil {
		l.logger.Warn("low stock signal publish failed", "product_id", p.ProductID, "error", err)
	}
}
