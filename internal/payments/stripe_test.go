package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload reproduces Stripe's webhook signing scheme so tests can
// exercise VerifyAndParse without a live Stripe account:
// Stripe-Signature: t=<unix-ts>,v1=hex(hmacSHA256(secret, "<ts>.<payload>"))
func signPayload(secret string, payload []byte) string {
	ts := time.Now().Unix()
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	sig := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", ts, sig)
}

func checkoutCompletedPayload(paymentStatus, orderID, productID, qty string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test",
				"payment_status": %q,
				"metadata": {"orderID": %q, "productID": %q, "qty": %q}
			}
		}
	}`, paymentStatus, orderID, productID, qty))
}

func TestVerifyAndParseAcceptsPaidCheckoutSession(t *testing.T) {
	body := checkoutCompletedPayload("paid", "order-1", "product-1", "3")
	sig := signPayload(testWebhookSecret, body)

	n, ok, err := VerifyAndParse(body, sig, testWebhookSecret)
	require.NoError(t, err)
	assert.True(t, ok, "expected ok=true for a paid checkout session")
	assert.Equal(t, "order-1", n.OrderID)
	assert.Equal(t, "product-1", n.ProductID)
	assert.Equal(t, 3, n.Qty)
}

func TestVerifyAndParseRejectsBadSignature(t *testing.T) {
	body := checkoutCompletedPayload("paid", "order-1", "product-1", "3")
	_, _, err := VerifyAndParse(body, "t=1,v1=deadbeef", testWebhookSecret)
	assert.Error(t, err, "expected error for a forged signature")
}

func TestVerifyAndParseIgnoresUnpaidSession(t *testing.T) {
	body := checkoutCompletedPayload("unpaid", "order-1", "product-1", "3")
	sig := signPayload(testWebhookSecret, body)

	_, ok, err := VerifyAndParse(body, sig, testWebhookSecret)
	require.NoError(t, err)
	assert.False(t, ok, "expected ok=false for an unpaid session")
}

func TestVerifyAndParseRejectsMissingMetadata(t *testing.T) {
	body := checkoutCompletedPayload("paid", "", "product-1", "3")
	sig := signPayload(testWebhookSecret, body)

	_, _, err := VerifyAndParse(body, sig, testWebhookSecret)
	assert.Error(t, err, "expected error for missing order metadata")
}
