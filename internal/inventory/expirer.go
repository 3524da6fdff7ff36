package inventory

import (
	"context"
	"log/slog"
	"time"

	"github.com/onyxmarket/fulfillment-saga/internal/clock"
)

// Expirer is the reservation sweep of spec §4.5: ticks every 30s (default,
// configurable), releasing any reservation past its expires_at. Tolerates
// overlapping runs — released=true makes a repeat sweep a no-op — and
// holds no global lock.
type Expirer struct {
	engine *Engine
	clock  clock.Clock
	tick   time.Duration
	batch  int
	logger *slog.Logger
}

// NewExpirer wires an Expirer. batch bounds how many reservations a single
// tick processes, keeping each sweep non-blocking.
func NewExpirer(engine *Engine, clk clock.Clock, tick time.Duration, batch int, logger *slog.Logger) *Expirer {
	return &Expirer{engine: engine, clock: clk, tick: tick, batch: batch, logger: logger}
}

// Run blocks, ticking until ctx is cancelled.
func (x *Expirer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-x.clock.After(x.tick):
			n, err := x.engine.ExpireOnce(ctx, x.batch)
			if err != nil {
				x.logger.Error("reservation expirer sweep failed", "error", err)
				continue
			}
			if n > 0 {
				x.logger.Info("reservation expirer swept reservations", "count", n)
			}
		}
	}
}
