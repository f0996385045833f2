package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrDuplicateOrderNumber    = errors.New("order number already exists")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

const (
	orderNumberConstraint    = "orders_order_number_key"
	idempotencyKeyConstraint = "orders_customer_idempotency_key_idx"
	uniqueViolation          = "23505"
)

const orderColumns = `id, order_number, customer_id, items, subtotal, tax, shipping, total, status,
	payment_method, payment_status, payment_ref, gateway_order_ref, shipping_address, idempotency_key,
	created_at, updated_at`

// OrderStore persists orders in the shared order store, which the operator
// system also writes to.
type OrderStore struct {
	*Store
}

// NewOrderStore wraps the shared order database.
func NewOrderStore(s *Store) *OrderStore {
	return &OrderStore{Store: s}
}

// JSON columns travel as text; lib/pq would send []byte as bytea.
type orderRow struct {
	ID              string          `db:"id"`
	OrderNumber     string          `db:"order_number"`
	CustomerID      string          `db:"customer_id"`
	Items           string          `db:"items"`
	Subtotal        decimal.Decimal `db:"subtotal"`
	Tax             decimal.Decimal `db:"tax"`
	Shipping        decimal.Decimal `db:"shipping"`
	Total           decimal.Decimal `db:"total"`
	Status          string          `db:"status"`
	PaymentMethod   string          `db:"payment_method"`
	PaymentStatus   string          `db:"payment_status"`
	PaymentRef      sql.NullString  `db:"payment_ref"`
	GatewayOrderRef sql.NullString  `db:"gateway_order_ref"`
	ShippingAddress string          `db:"shipping_address"`
	IdempotencyKey  sql.NullString  `db:"idempotency_key"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func newOrderRow(o *models.Order) (*orderRow, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	return &orderRow{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Items:           string(items),
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Shipping:        o.Shipping,
		Total:           o.Total,
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		PaymentRef:      nullString(o.PaymentRef),
		GatewayOrderRef: nullString(o.GatewayOrderRef),
		ShippingAddress: string(address),
		IdempotencyKey:  nullString(o.IdempotencyKey),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}, nil
}

func (r *orderRow) toModel() (*models.Order, error) {
	o := &models.Order{
		ID:              r.ID,
		OrderNumber:     r.OrderNumber,
		CustomerID:      r.CustomerID,
		Subtotal:        r.Subtotal,
		Tax:             r.Tax,
		Shipping:        r.Shipping,
		Total:           r.Total,
		Status:          r.Status,
		PaymentMethod:   r.PaymentMethod,
		PaymentStatus:   r.PaymentStatus,
		PaymentRef:      r.PaymentRef.String,
		GatewayOrderRef: r.GatewayOrderRef.String,
		IdempotencyKey:  r.IdempotencyKey.String,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Items), &o.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	if len(r.ShippingAddress) > 0 {
		if err := json.Unmarshal([]byte(r.ShippingAddress), &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
		}
	}
	return o, nil
}

// CreateOrder inserts the order. A duplicate order number or idempotency key
// comes back as ErrDuplicateOrderNumber or ErrDuplicateIdempotencyKey.
func (s *OrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	row, err := newOrderRow(order)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (:id, :order_number, :customer_id, :items, :subtotal, :tax, :shipping, :total, :status,
			:payment_method, :payment_status, :payment_ref, :gateway_order_ref, :shipping_address, :idempotency_key,
			:created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return classifyInsertError(err)
	}
	return nil
}

// GetOrderForCustomer retrieves an order only if it belongs to the customer.
func (s *OrderStore) GetOrderForCustomer(ctx context.Context, customerID, orderID string) (*models.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrOrderNotFound
	}

	var row orderRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND customer_id = $2", orderID, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

// ListOrdersByCustomer retrieves a customer's orders, newest first.
func (s *OrderStore) ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	if err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *OrderStore) GetOrderByIdempotencyKey(ctx context.Context, customerID, key string) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 AND idempotency_key = $2", customerID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func classifyInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case orderNumberConstraint:
			return ErrDuplicateOrderNumber
		case idempotencyKeyConstraint:
			return ErrDuplicateIdempotencyKey
		}
	}
	return fmt.Errorf("insert order: %w", err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
