package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapMarshalRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	p := OrderCreatedPayload{
		OrderID: "order-1", ProductID: "product-1", SupplierID: "supplier-1",
		UserID: "user-1", Qty: 3, ExpiresAt: now.Add(time.Hour), Timestamp: now,
	}

	env, err := Wrap(p, "dedup-1", now)
	require.NoError(t, err)
	assert.Equal(t, OrderCreated, env.EventType)

	data, err := Marshal(env)
	require.NoError(t, err)

	gotEnv, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, OrderCreated, gotEnv.EventType)
	assert.Equal(t, "dedup-1", gotEnv.ID)

	payload, err := Decode(gotEnv)
	require.NoError(t, err)
	got, ok := payload.(*OrderCreatedPayload)
	require.True(t, ok, "Decode returned %T, want *OrderCreatedPayload", payload)
	assert.Equal(t, p.OrderID, got.OrderID)
	assert.Equal(t, p.Qty, got.Qty)
}

func TestUnmarshalEnvelopeRejectsMalformed(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte("not json"))
	assert.Error(t, err, "expected error for malformed JSON")

	_, err = UnmarshalEnvelope([]byte(`{"data":{}}`))
	assert.Error(t, err, "expected error for missing event_type")
}

func TestDecodeRejectsUnknownEventType(t *testing.T) {
	env := Envelope{EventType: "bogus.event", Data: []byte(`{}`)}
	_, err := Decode(env)
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedData(t *testing.T) {
	env := Envelope{EventType: OrderCreated, Data: []byte(`not json`)}
	_, err := Decode(env)
	assert.Error(t, err)
}

func TestEventTypeMethodsMatchConstants(t *testing.T) {
	cases := []struct {
		payload Payload
		want    string
	}{
		{OrderCreatedPayload{}, OrderCreated},
		{OrderCancelledPayload{}, OrderCancelled},
		{OrderFailedPayload{}, OrderFailed},
		{OrderDeliveredPayload{}, OrderDelivered},
		{InventoryReservedPayload{}, InventoryReserved},
		{InventoryRejectedPayload{}, InventoryRejected},
		{InventoryReleasedPayload{}, InventoryReleased},
		{InventoryReservationExpiredPayload{}, InventoryReservationExpired},
		{InventoryFinalizedPayload{}, InventoryFinalized},
		{InventoryLowStockPayload{}, InventoryLowStock},
		{PaymentSuccessPayload{}, PaymentSuccess},
		{ProductCreatedPayload{}, ProductCreated},
		{ProductUpdatedPayload{}, ProductUpdated},
		{ProductDeletedPayload{}, ProductDeleted},
		{UserCreatedPayload{}, UserCreated},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.payload.EventType())
	}
}
