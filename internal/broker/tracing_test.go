package broker

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestAMQPHeadersCarrierGetSet(t *testing.T) {
	c := &AMQPHeadersCarrier{headers: amqp.Table{"traceparent": "00-abc-def-01"}}

	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Errorf("Get(traceparent) = %q, want %q", got, "00-abc-def-01")
	}
	if got := c.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}

	c.Set("tracestate", "vendor=1")
	if got := c.Get("tracestate"); got != "vendor=1" {
		t.Errorf("Get(tracestate) after Set = %q, want %q", got, "vendor=1")
	}

	keys := c.Keys()
	if len(keys) != 2 {
		t.Errorf("Keys() = %v, want 2 entries", keys)
	}
}

func TestAMQPHeadersCarrierIgnoresNonStringValues(t *testing.T) {
	c := &AMQPHeadersCarrier{headers: amqp.Table{"x-retries": int64(3)}}
	if got := c.Get("x-retries"); got != "" {
		t.Errorf("Get on non-string header = %q, want empty", got)
	}
}

func TestInjectExtractTraceContextRoundTrip(t *testing.T) {
	ctx := t.Context()
	headers := InjectTraceContext(ctx)
	// No active span in this context, but Inject/Extract must not panic and
	// must hand back a usable context either way.
	got := ExtractTraceContext(ctx, headers)
	if got == nil {
		t.Fatal("ExtractTraceContext returned nil context")
	}
}
