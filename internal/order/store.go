// Package order is the Order State Machine: persists order status and
// transitions it in response to inbound inventory/payment events, per
// spec §4.4. Re-platformed from the teacher's MongoDB order store to
// Postgres — the COALESCE-guarded UPDATE spec §4.4 requires has no Mongo
// equivalent, and spec's persisted-schema section writes the order table
// in explicit relational-column form.
package order

import (
	"context"
	"errors"
	"time"
)

// Status is one of the order lifecycle states of spec §3.
type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Shipped   Status = "shipped"
	Delivered Status = "delivered"
	Cancelled Status = "cancelled"
	Failed    Status = "failed"
)

// Order is the persisted order record, keyed by order_id.
type Order struct {
	OrderID    string
	UserID     string
	SupplierID string
	ProductID  string
	Qty        int
	Items      string // opaque detail, stored as-is
	Status     Status
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var (
	// ErrOrderNotFound means no order row exists for the given id.
	ErrOrderNotFound = errors.New("order: not found")
)

// Store is the transactional contract for order persistence.
type Store interface {
	// Create persists a brand-new pending order.
	Create(ctx context.Context, o Order) error

	// Get reads an order by id.
	Get(ctx context.Context, orderID string) (Order, error)

	// Transition locks the order row by (order_id, product_id, user_id),
	// looks up the legal next status for its current status and the given
	// event via statemachine.Next, and applies a status-guarded UPDATE
	// so replays only ever update timestamps, never regress status.
	// Returns the order's status after the attempt and whether a
	// transition actually happened.
	Transition(ctx context.Context, orderID, productID, userID, event string, now time.Time) (after Status, applied bool, err error)

	// DuePending returns pending orders whose expires_at has passed, for
	// the pending-order expirer.
	DuePending(ctx context.Context, now time.Time, limit int) ([]Order, error)
}
