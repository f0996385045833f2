package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced     = "ORDER_PLACED"
	EventTypeCartClearFailed = "CART_CLEAR_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent is published for the operator-facing system once an order
// is persisted. Values use shared-store vocabulary.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerID    string          `json:"customer_id"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	Items         []OrderItemData `json:"items"`
}

// CartClearFailedEvent records an order whose cart was left populated.
type CartClearFailedEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Reason     string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
