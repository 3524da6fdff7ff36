package order

// CancelRequest is the pseudo-event name for a user-initiated cancel
// request, which is not itself a bus event but drives the same transition
// table as the inbound inventory/payment events (spec §4.4).
const CancelRequest = "cancel-request"

// PendingOrderExpired is the pseudo-event the Expirer feeds into the same
// transition table when its own sweep (not an inbound bus event) finds a
// pending order past expires_at (spec §4.5).
const PendingOrderExpired = "pending-order-expired"

type transitionKey struct {
	from  Status
	event string
}

// transitions is the table of spec §4.4. A missing entry means no-op:
// the event is absorbed without effect, which is how stale or
// out-of-order deliveries and terminal states are handled uniformly.
var transitions = map[transitionKey]Status{
	{Pending, "inventory.reserved"}:            Confirmed,
	{Pending, "inventory.rejected"}:             Failed,
	{Pending, "inventory.released"}:             Cancelled,
	{Pending, "inventory.reservation_expired"}:  Failed,
	{Pending, CancelRequest}:                    Cancelled,
	{Pending, PendingOrderExpired}:              Failed,

	{Confirmed, "inventory.released"}:            Cancelled,
	{Confirmed, "inventory.reservation_expired"}:  Failed,
	{Confirmed, "inventory.finalized"}:            Shipped,
	{Confirmed, CancelRequest}:                     Cancelled,

	{Shipped, "order.delivered"}: Delivered,
}

// Next returns the status an order moves to given its current status and
// an inbound event, and whether any transition applies at all. Terminal
// states (delivered, cancelled, failed) never appear as a transitionKey's
// "from" beyond what's listed above, so they always return (from, false).
func Next(from Status, event string) (to Status, applied bool) {
	to, applied = transitions[transitionKey{from, event}]
	if !applied {
		return from, false
	}
	return to, true
}

// EmitsCancelOnTransition reports whether reaching `to` from a successful
// transition should cause the Order service to publish order.cancelled, so
// the Reservation Engine releases stock even when the trigger was
// user-initiated (spec §4.4: "After each successful transition to
// cancelled, the Order service emits order.cancelled").
func EmitsCancelOnTransition(to Status) bool { return to == Cancelled }
