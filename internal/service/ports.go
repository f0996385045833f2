package service

import (
	"context"
	"time"

	"storefront/internal/models"
)

// CartRepository persists carts in the customer store. SaveCart inserts when
// cart.Version is zero and otherwise updates only if the stored version still
// matches, returning mongostore.ErrVersionConflict when it does not.
type CartRepository interface {
	GetCart(ctx context.Context, ownerID string) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
}

// AddressRepository reads customer addresses from the customer store.
type AddressRepository interface {
	GetAddress(ctx context.Context, ownerID, addressID string) (*models.Address, error)
}

// ProductRepository reads the catalog store. Ids that do not exist are
// simply absent from the result.
type ProductRepository interface {
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.ProductSnapshot, error)
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)
	RestoreStock(ctx context.Context, productID string, quantity int) error
}

// OrderRepository persists orders in the shared order store.
// GetOrderByIdempotencyKey returns nil, nil when no order matches.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderForCustomer(ctx context.Context, customerID, orderID string) (*models.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, customerID, key string) (*models.Order, error)
}

// SequenceSource hands out increasing numbers per key.
type SequenceSource interface {
	NextSequence(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Locker is a best-effort mutual exclusion keyed by string.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventPublisher sends order events to the operator-facing system.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishCartClearFailed(ctx context.Context, event *models.CartClearFailedEvent) error
}
