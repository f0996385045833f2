// Package vocab translates between the customer-facing status vocabulary and
// the uppercase vocabulary of the shared order store.
//
// Shared to customer is a lossy projection: PROCESSING and PACKED both show as
// "processing". Translated values are for display and must never drive a
// state transition.
package vocab

import (
	"fmt"
	"strings"

	"storefront/internal/models"
)

// Customer-facing order statuses.
const (
	StatusPlaced     = "placed"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Customer-facing payment methods.
const (
	MethodCOD      = "cod"
	MethodRazorpay = "razorpay"
	MethodCard     = "card"
	MethodOther    = "other"
)

// Customer-facing payment statuses.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

var (
	orderStatusToShared = map[string]string{
		StatusPlaced:     models.OrderStatusPlaced,
		StatusProcessing: models.OrderStatusProcessing,
		StatusShipped:    models.OrderStatusOutForDelivery,
		StatusDelivered:  models.OrderStatusDelivered,
		StatusCancelled:  models.OrderStatusCancelled,
	}

	orderStatusToCustomer = map[string]string{
		models.OrderStatusPlaced:         StatusPlaced,
		models.OrderStatusProcessing:     StatusProcessing,
		models.OrderStatusPacked:         StatusProcessing,
		models.OrderStatusOutForDelivery: StatusShipped,
		models.OrderStatusDelivered:      StatusDelivered,
		models.OrderStatusCancelled:      StatusCancelled,
	}

	paymentMethodToShared = map[string]string{
		MethodCOD:      models.PaymentMethodCash,
		MethodRazorpay: models.PaymentMethodOnline,
		MethodCard:     models.PaymentMethodCard,
	}

	paymentMethodToCustomer = map[string]string{
		models.PaymentMethodCash:   MethodCOD,
		models.PaymentMethodOnline: MethodRazorpay,
		models.PaymentMethodCard:   MethodCard,
		models.PaymentMethodOther:  MethodOther,
	}

	paymentStatusToShared = map[string]string{
		PaymentPending:  models.PaymentStatusPending,
		PaymentPaid:     models.PaymentStatusPaid,
		PaymentFailed:   models.PaymentStatusFailed,
		PaymentRefunded: models.PaymentStatusRefunded,
	}

	paymentStatusToCustomer = map[string]string{
		models.PaymentStatusPending:  PaymentPending,
		models.PaymentStatusPaid:     PaymentPaid,
		models.PaymentStatusFailed:   PaymentFailed,
		models.PaymentStatusRefunded: PaymentRefunded,
	}
)

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// OrderStatusToShared maps a customer order status to the shared store.
// Unknown input is an error.
func OrderStatusToShared(status string) (string, error) {
	if s, ok := orderStatusToShared[normalize(status)]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown order status %q", status)
}

// OrderStatusToCustomer maps a shared order status for display. A status the
// table does not know (written by the operator system) comes back lowercased
// with ok=false.
func OrderStatusToCustomer(status string) (string, bool) {
	if s, ok := orderStatusToCustomer[strings.ToUpper(strings.TrimSpace(status))]; ok {
		return s, true
	}
	return normalize(status), false
}

// PaymentMethodToShared is total: unmapped methods become OTHER.
func PaymentMethodToShared(method string) string {
	if s, ok := paymentMethodToShared[normalize(method)]; ok {
		return s
	}
	return models.PaymentMethodOther
}

// PaymentMethodToCustomer maps a shared payment method for display.
func PaymentMethodToCustomer(method string) string {
	if s, ok := paymentMethodToCustomer[strings.ToUpper(strings.TrimSpace(method))]; ok {
		return s
	}
	return MethodOther
}

// PaymentStatusToShared maps a customer payment status to the shared store.
func PaymentStatusToShared(status string) (string, error) {
	if s, ok := paymentStatusToShared[normalize(status)]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown payment status %q", status)
}

// PaymentStatusToCustomer maps a shared payment status for display.
func PaymentStatusToCustomer(status string) (string, bool) {
	if s, ok := paymentStatusToCustomer[strings.ToUpper(strings.TrimSpace(status))]; ok {
		return s, true
	}
	return normalize(status), false
}

// IsOnline reports whether a shared payment method settles through the
// payment gateway before the order is placed.
func IsOnline(sharedMethod string) bool {
	return sharedMethod == models.PaymentMethodOnline || sharedMethod == models.PaymentMethodCard
}

// InitialPaymentStatus is PAID for online methods and PENDING otherwise.
func InitialPaymentStatus(sharedMethod string) string {
	if IsOnline(sharedMethod) {
		return models.PaymentStatusPaid
	}
	return models.PaymentStatusPending
}

// ToCustomerOrder projects a shared-store order into customer vocabulary.
func ToCustomerOrder(o *models.Order) *models.CustomerOrder {
	status, _ := OrderStatusToCustomer(o.Status)
	payStatus, _ := PaymentStatusToCustomer(o.PaymentStatus)

	return &models.CustomerOrder{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Items:           append([]models.OrderLine(nil), o.Items...),
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Total:           o.Total,
		Status:          status,
		PaymentMethod:   PaymentMethodToCustomer(o.PaymentMethod),
		PaymentStatus:   payStatus,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
