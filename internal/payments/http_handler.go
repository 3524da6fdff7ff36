package payments

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/onyxmarket/fulfillment-saga/internal/broker"
	"github.com/onyxmarket/fulfillment-saga/internal/clock"
	"github.com/onyxmarket/fulfillment-saga/internal/events"
)

const maxWebhookBodyBytes = 65536

// HTTPHandler receives the external Payment service's Stripe webhook and
// bridges a verified, paid checkout session into payment.success on the
// domain exchange.
type HTTPHandler struct {
	bus           *broker.Bus
	webhookSecret string
	clock         clock.Clock
	logger        *slog.Logger
}

// NewHTTPHandler wires an HTTPHandler.
func NewHTTPHandler(bus *broker.Bus, webhookSecret string, clk clock.Clock, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{bus: bus, webhookSecret: webhookSecret, clock: clk, logger: logger}
}

// Webhook handles POST /webhook.
func (h *HTTPHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("read webhook body failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	notification, ok, err := VerifyAndParse(body, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		h.logger.Error("webhook verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	env, err := events.Wrap(events.PaymentSuccessPayload{
		OrderID: notification.OrderID, ProductID: notification.ProductID, Qty: notification.Qty,
	}, "", h.clock.Now())
	if err != nil {
		h.logger.Error("wrap payment.success failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	data, err := events.Marshal(env)
	if err != nil {
		h.logger.Error("marshal payment.success failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := h.bus.Publish(ctx, events.PaymentSuccess, data); err != nil {
		h.logger.Error("publish payment.success failed", "order_id", notification.OrderID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.logger.Info("payment.success published", "order_id", notification.OrderID)
	w.WriteHeader(http.StatusOK)
}
