package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyInsertError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "order number collision",
			err:  &pq.Error{Code: uniqueViolation, Constraint: orderNumberConstraint},
			want: ErrDuplicateOrderNumber,
		},
		{
			name: "idempotency key reuse",
			err:  &pq.Error{Code: uniqueViolation, Constraint: idempotencyKeyConstraint},
			want: ErrDuplicateIdempotencyKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyInsertError(tt.err), tt.want)
		})
	}

	other := classifyInsertError(&pq.Error{Code: uniqueViolation, Constraint: "orders_pkey"})
	assert.False(t, errors.Is(other, ErrDuplicateOrderNumber))
	assert.Contains(t, other.Error(), "insert order")
}

func TestOrderRow_PreservesSnapshot(t *testing.T) {
	order := sampleOrder("cust-1")

	row, err := newOrderRow(order)
	require.NoError(t, err)
	assert.False(t, row.PaymentRef.Valid)
	assert.True(t, row.IdempotencyKey.Valid)

	back, err := row.toModel()
	require.NoError(t, err)
	assert.Equal(t, order.ShippingAddress, back.ShippingAddress)
	require.Len(t, back.Items, 1)
	assert.True(t, back.Items[0].Subtotal.Equal(decimal.RequireFromString("240.00")))
	assert.Equal(t, "", back.PaymentRef)
}

func TestProductRow_NilImages(t *testing.T) {
	snap := productRow{ID: "p-1", Status: models.ProductStatusActive}.toSnapshot()
	assert.NotNil(t, snap.Images)
	assert.True(t, snap.Orderable())
}

func sampleOrder(customerID string) *models.Order {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Order{
		ID:          uuid.New().String(),
		OrderNumber: "ORD-" + uuid.New().String()[:8],
		CustomerID:  customerID,
		Items: []models.OrderLine{{
			ProductID: "p-1",
			Name:      "Mug",
			UnitPrice: decimal.RequireFromString("120.00"),
			Quantity:  2,
			Subtotal:  decimal.RequireFromString("240.00"),
		}},
		Subtotal:        decimal.RequireFromString("240.00"),
		Tax:             decimal.RequireFromString("43.20"),
		Shipping:        decimal.RequireFromString("50.00"),
		Total:           decimal.RequireFromString("333.20"),
		Status:          models.OrderStatusPlaced,
		PaymentMethod:   models.PaymentMethodCash,
		PaymentStatus:   models.PaymentStatusPending,
		ShippingAddress: models.Address{ID: "a-1", Name: "Asha", City: "Pune", Country: "IN"},
		IdempotencyKey:  uuid.New().String(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func openTestOrderStore(t *testing.T) *OrderStore {
	url := os.Getenv("ORDER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database")
	}

	s, err := Open(url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	orders := NewOrderStore(s)
	require.NoError(t, orders.MigrateOrders())
	return orders
}

func TestCreateOrder(t *testing.T) {
	orders := openTestOrderStore(t)
	ctx := context.Background()

	order := sampleOrder("cust-" + uuid.New().String())
	require.NoError(t, orders.CreateOrder(ctx, order))

	got, err := orders.GetOrderForCustomer(ctx, order.CustomerID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)
	assert.True(t, order.Total.Equal(got.Total))

	_, err = orders.GetOrderForCustomer(ctx, "someone-else", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCreateOrder_DuplicateOrderNumber(t *testing.T) {
	orders := openTestOrderStore(t)
	ctx := context.Background()

	first := sampleOrder("cust-" + uuid.New().String())
	require.NoError(t, orders.CreateOrder(ctx, first))

	second := sampleOrder(first.CustomerID)
	second.OrderNumber = first.OrderNumber
	assert.ErrorIs(t, orders.CreateOrder(ctx, second), ErrDuplicateOrderNumber)
}

func TestIdempotency(t *testing.T) {
	orders := openTestOrderStore(t)
	ctx := context.Background()

	first := sampleOrder("cust-" + uuid.New().String())
	require.NoError(t, orders.CreateOrder(ctx, first))

	second := sampleOrder(first.CustomerID)
	second.IdempotencyKey = first.IdempotencyKey
	assert.ErrorIs(t, orders.CreateOrder(ctx, second), ErrDuplicateIdempotencyKey)

	found, err := orders.GetOrderByIdempotencyKey(ctx, first.CustomerID, first.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)
}

func TestGetOrderForCustomer_InvalidID(t *testing.T) {
	orders := &OrderStore{}
	_, err := orders.GetOrderForCustomer(context.Background(), "cust-1", "not-a-uuid")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
