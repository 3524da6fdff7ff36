// Package events defines the saga's wire format: one concrete payload type
// per event_type, plus the envelope that carries them over the bus.
//
// The source this system was distilled from used a single wide struct with
// every field optional across all event variants. That shape pushes missing-
// field bugs deep into handlers. Here each event_type gets its own struct,
// and a malformed payload fails at decode time rather than at first field
// access.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Routing keys. These are also the topic-exchange routing keys and the
// literal `event_type` value carried in the envelope.
const (
	OrderCreated   = "order.created"
	OrderCancelled = "order.cancelled"
	OrderFailed    = "order.failed"
	OrderDelivered = "order.delivered"

	InventoryReserved           = "inventory.reserved"
	InventoryRejected           = "inventory.rejected"
	InventoryReleased           = "inventory.released"
	InventoryReservationExpired = "inventory.reservation_expired"
	InventoryFinalized          = "inventory.finalized"
	InventoryLowStock           = "inventory.lowstock"

	PaymentSuccess = "payment.success"

	ProductCreated = "product.created"
	ProductUpdated = "product.updated"
	ProductDeleted = "product.deleted"

	UserCreated = "user.created"
)

// Envelope is the shape every message on the bus carries.
type Envelope struct {
	EventType      string          `json:"event_type"`
	EventTimestamp time.Time       `json:"event_timestamp"`
	ID             string          `json:"id,omitempty"`
	Data           json.RawMessage `json:"data"`
}

// Payload is implemented by every concrete event-data type so that Wrap can
// stamp the correct event_type without the caller repeating the string.
type Payload interface {
	EventType() string
}

// Wrap marshals a payload into a full Envelope, stamping event_type and
// event_timestamp. id is an optional dedup key; pass "" to omit it.
func Wrap(p Payload, id string, now time.Time) (Envelope, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", p.EventType(), err)
	}
	return Envelope{
		EventType:      p.EventType(),
		EventTimestamp: now,
		ID:             id,
		Data:           data,
	}, nil
}

// Marshal serializes an Envelope to bytes for publishing.
func Marshal(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope parses the outer envelope off the wire. Returns an error
// for malformed JSON — callers must treat that as a Reject-to-DLQ, per the
// malformed-payload error class.
func UnmarshalEnvelope(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if e.EventType == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event_type")
	}
	return e, nil
}

// --- order.* ---

type OrderCreatedPayload struct {
	OrderID    string    `json:"order_id"`
	ProductID  string    `json:"product_id"`
	SupplierID string    `json:"supplier_id"`
	UserID     string    `json:"user_id"`
	Qty        int       `json:"qty"`
	ExpiresAt  time.Time `json:"expires_at"`
	Timestamp  time.Time `json:"timestamp"`
}

func (OrderCreatedPayload) EventType() string { return OrderCreated }

type OrderCancelledPayload struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	UserID    string `json:"user_id"`
}

func (OrderCancelledPayload) EventType() string { return OrderCancelled }

type OrderFailedPayload struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
}

func (OrderFailedPayload) EventType() string { return OrderFailed }

type OrderDeliveredPayload struct {
	OrderID string `json:"order_id"`
}

func (OrderDeliveredPayload) EventType() string { return OrderDelivered }

// --- inventory.* ---

type InventoryReservedPayload struct {
	OrderID       string    `json:"order_id"`
	ProductID     string    `json:"product_id"`
	ReservationID string    `json:"reservation_id"`
	Qty           int       `json:"qty"`
	UserID        string    `json:"user_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (InventoryReservedPayload) EventType() string { return InventoryReserved }

type InventoryRejectedPayload struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	UserID    string `json:"user_id"`
}

func (InventoryRejectedPayload) EventType() string { return InventoryRejected }

type InventoryReleasedPayload struct {
	OrderID       string `json:"order_id"`
	ProductID     string `json:"product_id"`
	ReservationID string `json:"reservation_id"`
	Qty           int    `json:"qty"`
}

func (InventoryReleasedPayload) EventType() string { return InventoryReleased }

type InventoryReservationExpiredPayload struct {
	OrderID       string `json:"order_id"`
	ProductID     string `json:"product_id"`
	ReservationID string `json:"reservation_id"`
	Qty           int    `json:"qty"`
	UserID        string `json:"user_id"`
}

func (InventoryReservationExpiredPayload) EventType() string { return InventoryReservationExpired }

type InventoryFinalizedPayload struct {
	OrderID       string `json:"order_id"`
	ProductID     string `json:"product_id"`
	ReservationID string `json:"reservation_id"`
	Qty           int    `json:"qty"`
}

func (InventoryFinalizedPayload) EventType() string { return InventoryFinalized }

type InventoryLowStockPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Threshold int    `json:"threshold"`
}

func (InventoryLowStockPayload) EventType() string { return InventoryLowStock }

// --- payment.* ---

type PaymentSuccessPayload struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

func (PaymentSuccessPayload) EventType() string { return PaymentSuccess }

// --- product.* (supplemented: catalog sync) ---

type ProductCreatedPayload struct {
	ProductID         string  `json:"product_id"`
	SupplierID        string  `json:"supplier_id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Category          string  `json:"category"`
	Price             float64 `json:"price"`
	Unit              string  `json:"unit"`
	Quantity          int     `json:"quantity"`
	LowStockThreshold int     `json:"low_stock_threshold"`
}

func (ProductCreatedPayload) EventType() string { return ProductCreated }

type ProductUpdatedPayload struct {
	ProductID         string  `json:"product_id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Category          string  `json:"category"`
	Price             float64 `json:"price"`
	Unit              string  `json:"unit"`
	LowStockThreshold int     `json:"low_stock_threshold"`
	Available         bool    `json:"available"`
}

func (ProductUpdatedPayload) EventType() string { return ProductUpdated }

type ProductDeletedPayload struct {
	ProductID string `json:"product_id"`
}

func (ProductDeletedPayload) EventType() string { return ProductDeleted }

// --- user.* (supplemented: analytics counter only) ---

type UserCreatedPayload struct {
	UserID string `json:"user_id"`
}

func (UserCreatedPayload) EventType() string { return UserCreated }

// Decode unmarshals an envelope's Data into the concrete payload type for
// its event_type. Returns an error for unknown event types or malformed
// data — both are malformed-payload, Reject-to-DLQ conditions.
func Decode(e Envelope) (Payload, error) {
	var p Payload
	switch e.EventType {
	case OrderCreated:
		p = &OrderCreatedPayload{}
	case OrderCancelled:
		p = &OrderCancelledPayload{}
	case OrderFailed:
		p = &OrderFailedPayload{}
	case OrderDelivered:
		p = &OrderDeliveredPayload{}
	case InventoryReserved:
		p = &InventoryReservedPayload{}
	case InventoryRejected:
		p = &InventoryRejectedPayload{}
	case InventoryReleased:
		p = &InventoryReleasedPayload{}
	case InventoryReservationExpired:
		p = &InventoryReservationExpiredPayload{}
	case InventoryFinalized:
		p = &InventoryFinalizedPayload{}
	case InventoryLowStock:
		p = &InventoryLowStockPayload{}
	case PaymentSuccess:
		p = &PaymentSuccessPayload{}
	case ProductCreated:
		p = &ProductCreatedPayload{}
	case ProductUpdated:
		p = &ProductUpdatedPayload{}
	case ProductDeleted:
		p = &ProductDeletedPayload{}
	case UserCreated:
		p = &UserCreatedPayload{}
	default:
		return nil, fmt.Errorf("decode payload: unknown event_type %q", e.EventType)
	}
	if err := json.Unmarshal(e.Data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return p, nil
}
