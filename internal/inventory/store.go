// Package inventory is the Inventory Store plus Reservation Engine: the
// saga's inventory-side participant.
package inventory

import (
	"context"
	"errors"
	"time"
)

// Product is the authoritative per-product stock record, keyed by
// (supplier_id, product_id).
type Product struct {
	SupplierID        string
	ProductID         string
	Name              string
	Description       string
	Category          string
	Price             float64
	Unit              string
	Quantity          int
	Reserved          int
	LowStockThreshold int
	Available         bool
	UpdatedAt         time.Time
}

// AvailableForSale is quantity minus whatever is currently held by active
// reservations.
func (p Product) AvailableForSale() int { return p.Quantity - p.Reserved }

// Reservation is a hold on product stock for a single order.
type Reservation struct {
	ReservationID string
	OrderID       string
	ProductID     string
	UserID        string
	Qty           int
	ExpiresAt     time.Time
	CreatedAt     time.Time
	Released      bool
}

// Errors surfaced by Store methods. Handlers in engine.go translate these
// into the error taxonomy of the saga (logical conflict vs infra).
var (
	// ErrProductNotFound means the referenced product row does not exist.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrInsufficientStock is a business outcome, not an infra failure. No
	// Store method returns it: Reserve reports insufficient stock as
	// ReserveRejectedStock.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrReservationNotFound means Release/Finalize targeted an order with
	// no reservation row.
	ErrReservationNotFound = errors.New("inventory: reservation not found")
	// ErrReservationAlreadyReleased means the reservation is terminal.
	ErrReservationAlreadyReleased = errors.New("inventory: reservation already released")
	// ErrQtyMismatch means a Release/Finalize qty differs from the
	// reservation's qty — partial release is not supported.
	ErrQtyMismatch = errors.New("inventory: qty does not match reservation")
	// ErrConsistency means a guarded UPDATE affected zero rows despite the
	// preceding checks passing — concurrent mutation or prior corruption.
	ErrConsistency = errors.New("inventory: guarded update affected no rows")
)

// ReserveOutcome classifies what Reserve actually did.
type ReserveOutcome int

const (
	// ReserveCreated means a brand new reservation was inserted.
	ReserveCreated ReserveOutcome = iota
	// ReserveIdempotent means a reservation already existed for this
	// order_id and was echoed back unchanged.
	ReserveIdempotent
	// ReserveRejectedStock means available stock was less than requested.
	ReserveRejectedStock
)

// ReserveResult is everything Reserve needs to tell the engine so it can
// emit the right events after commit.
type ReserveResult struct {
	Outcome     ReserveOutcome
	Reservation Reservation
	Product     Product
	// SweptExpired holds reservations released by the opportunistic
	// expiry sweep that runs at the start of Reserve (§4.3.1 step 1). The
	// engine emits inventory.reservation_expired for each, after commit.
	SweptExpired []Reservation
}

// ReleaseResult reports what Release did, including the Release calls the
// expirer makes. Finalize reports through FinalizeResult instead.
type ReleaseResult struct {
	// NoOp is true when the reservation was already missing or already
	// released — Release is idempotent under redelivery.
	NoOp        bool
	Reservation Reservation
	Product     Product
}

// FinalizeResult reports what Finalize did.
type FinalizeResult struct {
	Reservation Reservation
	Product     Product
}

// Store is the transactional contract every saga handler drives. Reserve,
// Release and Finalize each open their own transaction, lock the rows they
// touch, and commit before returning (the read-only methods run without a
// transaction) — callers (engine.go) publish
// events only after a Store method returns successfully, never inside the
// transaction.
type Store interface {
	// Reserve implements the full algorithm of spec §4.3.1: opportunistic
	// expiry sweep, idempotency check, guarded reserve.
	Reserve(ctx context.Context, orderID, productID, userID string, qty int, ttl time.Duration, now time.Time) (ReserveResult, error)

	// Release implements §4.3.2: idempotent no-op if missing/released,
	// else guarded decrement of reserved and mark released.
	Release(ctx context.Context, orderID, productID string, qty int) (ReleaseResult, error)

	// Finalize implements §4.3.3: guarded decrement of both reserved and
	// quantity, mark released.
	Finalize(ctx context.Context, orderID, productID string, qty int) (FinalizeResult, error)

	// LookupReservation reads a reservation by order_id without locking,
	// for handlers (order.failed) whose triggering event carries no qty
	// and must learn it before calling Release. ok is false if no
	// reservation exists for orderID.
	LookupReservation(ctx context.Context, orderID string) (reservation Reservation, ok bool, err error)

	// DueForExpiry returns reservations with expires_at < now that are
	// still active, for the periodic expirer (§4.5) to process one at a
	// time through Release.
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]Reservation, error)

	// GetProduct reads a product row without locking, for cache-aside
	// reads and the HTTP-free glue that needs a current snapshot.
	GetProduct(ctx context.Context, productID string) (Product, error)

	// UpsertProduct creates a product row, or updates an existing row's
	// descriptive fields, threshold and availability, driven by
	// product.created / product.updated. The quantity, reserved and
	// supplier_id of an existing row are left unchanged.
	UpsertProduct(ctx context.Context, p Product) error

	// DeleteProduct removes a product row, driven by product.deleted. It
	// is the caller's job (CatalogSync) to refuse deletion while reservations
	// are outstanding — see catalog_sync.go.
	DeleteProduct(ctx context.Context, productID string) error

	// CountActiveReservations reports how many unreleased reservations
	// reference a product, used to guard DeleteProduct.
	CountActiveReservations(ctx context.Context, productID string) (int, error)
}
