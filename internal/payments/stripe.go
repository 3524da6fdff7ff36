// Package payments is the external-collaborator boundary code of spec.md
// §6: it is not part of THE CORE saga, only a thin bridge from the
// external Payment service's Stripe webhook into the saga's own
// payment.success event.
package payments

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Notification is what the webhook tells the saga: a checkout session paid
// for a given order/product/qty, carried in the session's metadata the way
// the order that created the checkout session originally stamped it.
type Notification struct {
	OrderID   string
	ProductID string
	Qty       int
}

// VerifyAndParse verifies the Stripe-Signature header against the
// configured webhook secret and, for a completed-and-paid checkout
// session, extracts the Notification to bridge onward. Returns
// (Notification{}, false, nil) for any Stripe event that isn't a paid
// checkout session completion — those are acknowledged but produce nothing.
func VerifyAndParse(body []byte, signatureHeader, webhookSecret string) (Notification, bool, error) {
	event, err := webhook.ConstructEventWithOptions(body, signatureHeader, webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Notification{}, false, fmt.Errorf("verify stripe signature: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return Notification{}, false, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return Notification{}, false, fmt.Errorf("parse checkout session: %w", err)
	}
	if session.PaymentStatus != "paid" {
		return Notification{}, false, nil
	}

	n := Notification{
		OrderID:   session.Metadata["orderID"],
		ProductID: session.Metadata["productID"],
	}
	if q, ok := session.Metadata["qty"]; ok {
		fmt.Sscanf(q, "%d", &n.Qty)
	}
	if n.OrderID == "" || n.ProductID == "" || n.Qty <= 0 {
		return Notification{}, false, fmt.Errorf("checkout session %s missing order metadata", session.ID)
	}
	return n, true, nil
}
