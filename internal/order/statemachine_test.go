package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	cases := []struct {
		from    Status
		event   string
		wantTo  Status
		wantApp bool
	}{
		{Pending, "inventory.reserved", Confirmed, true},
		{Pending, "inventory.rejected", Failed, true},
		{Pending, "inventory.released", Cancelled, true},
		{Pending, "inventory.reservation_expired", Failed, true},
		{Pending, CancelRequest, Cancelled, true},
		{Pending, PendingOrderExpired, Failed, true},
		{Confirmed, "inventory.released", Cancelled, true},
		{Confirmed, "inventory.reservation_expired", Failed, true},
		{Confirmed, "inventory.finalized", Shipped, true},
		{Confirmed, CancelRequest, Cancelled, true},
		{Shipped, "order.delivered", Delivered, true},

		// no-op cases: terminal states and stale/unknown events absorb silently.
		{Delivered, "order.delivered", Delivered, false},
		{Cancelled, CancelRequest, Cancelled, false},
		{Failed, "inventory.reserved", Failed, false},
		{Pending, "inventory.finalized", Pending, false},
		{Confirmed, "inventory.rejected", Confirmed, false},
	}

	for _, c := range cases {
		to, applied := Next(c.from, c.event)
		assert.Equalf(t, c.wantTo, to, "Next(%s, %s) status", c.from, c.event)
		assert.Equalf(t, c.wantApp, applied, "Next(%s, %s) applied", c.from, c.event)
	}
}

func TestEmitsCancelOnTransition(t *testing.T) {
	assert.True(t, EmitsCancelOnTransition(Cancelled))
	for _, s := range []Status{Pending, Confirmed, Shipped, Delivered, Failed} {
		assert.Falsef(t, EmitsCancelOnTransition(s), "status %s", s)
	}
}
