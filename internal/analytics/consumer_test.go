package analytics

import (
	"encoding/json"
	"testing"
)

func TestEntityIDDerivesByEventTypePrefix(t *testing.T) {
	cases := []struct {
		eventType string
		data      string
		want      string
	}{
		{"order.created", `{"order_id":"order-1","product_id":"product-1"}`, "order-1"},
		{"product.updated", `{"product_id":"product-9"}`, "product-9"},
		{"user.created", `{"user_id":"user-7"}`, "user-7"},
		{"inventory.reserved", `{"order_id":"order-1","product_id":"product-5"}`, "product-5"},
	}
	for _, c := range cases {
		got := entityID(c.eventType, json.RawMessage(c.data))
		if got != c.want {
			t.Errorf("entityID(%q, %q) = %q, want %q", c.eventType, c.data, got, c.want)
		}
	}
}

func TestEntityIDFallsBackToUUID(t *testing.T) {
	// unknown event family
	id := entityID("payment.success", json.RawMessage(`{"order_id":"order-1"}`))
	if len(id) != 36 {
		t.Errorf("expected a uuid fallback for unrecognized prefix, got %q", id)
	}

	// known family but missing key
	id = entityID("order.created", json.RawMessage(`{"product_id":"product-1"}`))
	if len(id) != 36 {
		t.Errorf("expected a uuid fallback for missing key, got %q", id)
	}

	// known family but malformed data
	id = entityID("order.created", json.RawMessage(`not json`))
	if len(id) != 36 {
		t.Errorf("expected a uuid fallback for malformed data, got %q", id)
	}

	// known family but empty value
	id = entityID("order.created", json.RawMessage(`{"order_id":""}`))
	if len(id) != 36 {
		t.Errorf("expected a uuid fallback for empty value, got %q", id)
	}
}
