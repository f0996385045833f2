package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product statuses in the catalog store.
const (
	ProductStatusActive      = "active"
	ProductStatusInactive    = "inactive"
	ProductStatusUnavailable = "unavailable"
)

// Order statuses in the shared order store.
const (
	OrderStatusPlaced         = "PLACED"
	OrderStatusProcessing     = "PROCESSING"
	OrderStatusPacked         = "PACKED"
	OrderStatusOutForDelivery = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCancelled      = "CANCELLED"
)

// Payment methods in the shared order store.
const (
	PaymentMethodCash   = "CASH"
	PaymentMethodOnline = "ONLINE"
	PaymentMethodCard   = "CARD"
	PaymentMethodOther  = "OTHER"
)

// Payment statuses in the shared order store.
const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusRefunded = "REFUNDED"
)

// CartLine references a catalog product by opaque id.
type CartLine struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// Cart is the per-customer cart kept in the customer store. Version guards
// concurrent writers; zero means the cart has never been persisted.
type Cart struct {
	OwnerID   string     `bson:"owner_id" json:"owner_id"`
	Lines     []CartLine `bson:"lines" json:"lines"`
	Version   int64      `bson:"version" json:"-"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// Line returns the index of the line for productID, or -1.
func (c *Cart) Line(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// ProductIDs returns the product ids of all lines in cart order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Lines = append([]CartLine(nil), c.Lines...)
	return &cp
}

// ProductSnapshot is a point-in-time read of a catalog product. It is never
// cached across requests.
type ProductSnapshot struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Status string          `json:"status"`
	Images []string        `json:"images"`
}

// Orderable reports whether the product can be put in an order.
func (p ProductSnapshot) Orderable() bool {
	return p.Status == ProductStatusActive
}

// Address is a customer shipping address. Orders embed a copy.
type Address struct {
	ID         string `bson:"_id" json:"id"`
	OwnerID    string `bson:"owner_id" json:"-"`
	Name       string `bson:"name" json:"name"`
	Phone      string `bson:"phone" json:"phone"`
	Line1      string `bson:"line1" json:"line1"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state" json:"state"`
	PostalCode string `bson:"postal_code" json:"postal_code"`
	Country    string `bson:"country" json:"country"`
}

// OrderLine is immutable once the order is created.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order is the record in the shared order store, in shared-store vocabulary.
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	CustomerID      string          `json:"customer_id"`
	Items           []OrderLine     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	PaymentRef      string          `json:"payment_ref,omitempty"`
	GatewayOrderRef string          `json:"gateway_order_ref,omitempty"`
	ShippingAddress Address         `json:"shipping_address"`
	IdempotencyKey  string          `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CustomerOrder is an Order projected into customer-facing vocabulary. It is
// for display only.
type CustomerOrder struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	Items           []OrderLine     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	ShippingAddress Address         `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
