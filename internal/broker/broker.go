// Package broker is the Event Bus Adapter: a single topic exchange with
// routing-key pattern bindings, durable per-queue dead-lettering, and a
// retry-count header enforced independently of what a handler returns.
//
// Generalized from the teacher's four direct, per-event exchanges (which
// can only route exact event names) to one topic exchange, because the
// saga needs pattern-bound queues (`order.*`, `inventory.*`, `#`).
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/onyxmarket/fulfillment-saga/internal/metrics"
)

// Exchange is the single topic exchange every service publishes to and
// binds queues against.
const Exchange = "domain_events"

// DLX is the dead-letter exchange every durable queue routes expired/
// rejected deliveries through.
const DLX = "domain_events.dlx"

// RetriesHeader is the AMQP header tracking redelivery attempts, per
// spec's envelope header set.
const RetriesHeader = "x-retries"

// Outcome is a handler's verdict on a single delivery.
type Outcome int

const (
	// Ack accepts the delivery; it will not be seen again.
	Ack Outcome = iota
	// Requeue republishes the payload with x-retries incremented, then
	// acks the original delivery.
	Requeue
	// Reject nacks without requeue, routing to the queue's DLQ.
	Reject
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Handler processes one delivery's decoded payload bytes and the number of
// times it has previously been retried, and returns the outcome.
type Handler func(ctx context.Context, payload []byte, retries int) Outcome

// Bus is a connected Event Bus Adapter.
type Bus struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	maxRetries int
	logger     *slog.Logger
	shadow     *ShadowPublisher
	metrics    *metrics.ConsumerMetrics
}

// Connect dials RabbitMQ, opens a confirm-mode channel, and declares the
// topic exchange and DLX. maxRetries is the cap spec's §4.1 names (default
// 3); shadow may be nil to disable the best-effort Redis fan-out. m may be
// nil to disable consumer-loop metrics.
func Connect(url string, maxRetries int, logger *slog.Logger, shadow *ShadowPublisher, m *metrics.ConsumerMetrics) (*Bus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if err := ch.ExchangeDeclare(DLX, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare dlx: %w", err)
	}

	return &Bus{conn: conn, ch: ch, maxRetries: maxRetries, logger: logger, shadow: shadow, metrics: m}, nil
}

// Close drains the channel and connection.
func (b *Bus) Close() error {
	if err := b.ch.Close(); err != nil {
		return err
	}
	return b.conn.Close()
}

// Publish serializes and sends payload under routingKey on the topic
// exchange with persistent delivery, retrying transient failures with
// exponential backoff up to 5 attempts before surfacing an error to the
// caller. It never runs inside a DB transaction — callers publish after
// commit, never before, so consumers never observe uncommitted state.
//
// On success it also best-effort fans the same payload out over the Redis
// shadow channel if one is configured; that channel is never authoritative
// and its failure is only logged.
func (b *Bus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	headers := InjectTraceContext(ctx)
	headers[RetriesHeader] = int64(0)

	const maxAttempts = 5
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		confirm, err := b.ch.PublishWithDeferredConfirmWithContext(ctx, Exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
		})
		if err == nil {
			ok, waitErr := confirm.WaitContext(ctx)
			if waitErr == nil && ok {
				lastErr = nil
				break
			}
			if waitErr != nil {
				err = waitErr
			} else {
				err = fmt.Errorf("broker nacked publish of %s", routingKey)
			}
		}
		lastErr = err
		b.logger.Warn("publish attempt failed", "routing_key", routingKey, "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			time.Sleep(time.Duration(1<<(attempt-1)) * 200 * time.Millisecond)
		}
	}
	if lastErr != nil {
		return fmt.Errorf("publish %s after %d attempts: %w", routingKey, maxAttempts, lastErr)
	}

	if b.shadow != nil {
		if err := b.shadow.Publish(ctx, routingKey, payload); err != nil {
			b.logger.Warn("shadow publish failed", "routing_key", routingKey, "error", err)
		}
	}
	return nil
}

// Subscribe declares a durable queue bound to one or more bindingPatterns on
// the topic exchange (e.g. "inventory_queue" binds both "order.*" and
// "payment.*"), with dead-letter routing to a queue-specific DLQ, and
// consumes deliveries in a cooperative loop until ctx is cancelled. For each
// delivery it invokes handler and acts on the returned Outcome; it also
// enforces the max-retry cap independently of what handler returns, since
// a handler that keeps saying Requeue forever must not starve the queue.
func (b *Bus) Subscribe(ctx context.Context, queue string, handler Handler, bindingPatterns ...string) error {
	dlq := queue + ".dlq"
	if _, err := b.ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq %s: %w", dlq, err)
	}
	if err := b.ch.QueueBind(dlq, queue, DLX, false, nil); err != nil {
		return fmt.Errorf("bind dlq %s: %w", dlq, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    DLX,
		"x-dead-letter-routing-key": queue,
	}
	if _, err := b.ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	for _, pattern := range bindingPatterns {
		if err := b.ch.QueueBind(queue, pattern, Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", queue, pattern, err)
		}
	}
	if err := b.ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := b.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", queue)
			}
			b.handleDelivery(ctx, d, handler)
		}
	}
}

func (b *Bus) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	ctx = ExtractTraceContext(ctx, d.Headers)
	ctx, span := otel.Tracer("broker").Start(ctx, "broker.consume "+d.RoutingKey)
	defer span.End()

	retries := retriesOf(d)
	start := time.Now()
	outcome := handler(ctx, d.Body, retries)
	elapsed := time.Since(start)

	if retries >= b.maxRetries && outcome == Requeue {
		b.logger.Warn("max retries reached, forcing reject", "routing_key", d.RoutingKey, "retries", retries)
		outcome = Reject
	}

	if b.metrics != nil {
		b.metrics.RecordConsumed(d.RoutingKey, outcome.String(), elapsed)
	}

	switch outcome {
	case Ack:
		if err := d.Ack(false); err != nil {
			b.logger.Error("ack failed", "routing_key", d.RoutingKey, "error", err)
		}
	case Reject:
		if b.metrics != nil {
			b.metrics.RecordDeadLetter(d.RoutingKey)
		}
		if err := d.Nack(false, false); err != nil {
			b.logger.Error("nack failed", "routing_key", d.RoutingKey, "error", err)
		}
	case Requeue:
		if b.metrics != nil {
			b.metrics.RecordRetry(d.RoutingKey)
		}
		b.republish(ctx, d, retries+1)
	}
}

func retriesOf(d amqp.Delivery) int {
	if d.Headers == nil {
		return 0
	}
	switch v := d.Headers[RetriesHeader].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (b *Bus) republish(ctx context.Context, d amqp.Delivery, retries int) {
	backoff := time.Duration(retries) * time.Second
	time.Sleep(backoff)

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[RetriesHeader] = int64(retries)

	err := b.ch.PublishWithContext(ctx, Exchange, d.RoutingKey, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		Headers:      headers,
		Body:         d.Body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		b.logger.Error("republish for retry failed", "routing_key", d.RoutingKey, "error", err)
		// best effort: ack the original anyway so it is not stuck redelivering
		// with a stale retry count; the message is effectively lost here, which
		// is why publish errors during republish are logged loudly.
	}
	if ackErr := d.Ack(false); ackErr != nil {
		b.logger.Error("ack of original after republish failed", "routing_key", d.RoutingKey, "error", ackErr)
	}
}
