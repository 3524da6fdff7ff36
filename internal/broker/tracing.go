package broker

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// InjectTraceContext carries the caller's trace context into AMQP message
// headers, since RabbitMQ has no automatic propagation like gRPC does.
func InjectTraceContext(ctx context.Context) amqp.Table {
	headers := make(amqp.Table)
	carrier := &AMQPHeadersCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return headers
}

// ExtractTraceContext resumes the trace a delivery's headers carry, so a
// span opened in the consumer links back to the span that published it —
// Order and Inventory show up as one trace across the AMQP boundary.
func ExtractTraceContext(ctx context.Context, headers amqp.Table) context.Context {
	carrier := &AMQPHeadersCarrier{headers: headers}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// AMQPHeadersCarrier adapts amqp.Table to propagation.TextMapCarrier.
type AMQPHeadersCarrier struct {
	headers amqp.Table
}

func (c *AMQPHeadersCarrier) Get(key string) string {
	if val, ok := c.headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func (c *AMQPHeadersCarrier) Set(key, value string) {
	c.headers[key] = value
}

func (c *AMQPHeadersCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for k := range c.headers {
		keys = append(keys, k)
	}
	return keys
}
