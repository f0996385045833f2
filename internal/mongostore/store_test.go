package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func setupTestStore(t *testing.T) *CustomerStore {
	uri := os.Getenv("CUSTOMER_TEST_STORE_URI")
	if uri == "" {
		t.Skip("Integration test - requires MongoDB")
	}

	ctx := context.Background()
	s, err := Connect(ctx, uri, "storefront_test_"+uuid.New().String()[:8])
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.EnsureIndexes(ctx))

	t.Cleanup(func() {
		_ = s.carts.Database().Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestSaveCart_InsertThenUpdate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetCart(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrCartNotFound)

	cart := &models.Cart{OwnerID: "owner-1", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.SaveCart(ctx, cart))
	assert.Equal(t, int64(1), cart.Version)

	cart.Lines = append(cart.Lines, models.CartLine{ProductID: "p-1", Quantity: 2})
	require.NoError(t, s.SaveCart(ctx, cart))
	assert.Equal(t, int64(2), cart.Version)

	got, err := s.GetCart(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 2, got.Lines[0].Quantity)
}

func TestSaveCart_StaleVersion(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cart := &models.Cart{OwnerID: "owner-2"}
	require.NoError(t, s.SaveCart(ctx, cart))

	stale := cart.Clone()
	require.NoError(t, s.SaveCart(ctx, cart))

	assert.ErrorIs(t, s.SaveCart(ctx, stale), ErrVersionConflict)

	dup := &models.Cart{OwnerID: "owner-2"}
	assert.ErrorIs(t, s.SaveCart(ctx, dup), ErrVersionConflict)
}

func TestGetAddress_ScopedToOwner(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.addresses.InsertOne(ctx, bson.M{"_id": "addr-1", "owner_id": "owner-3", "city": "Pune"})
	require.NoError(t, err)

	addr, err := s.GetAddress(ctx, "owner-3", "addr-1")
	require.NoError(t, err)
	assert.Equal(t, "Pune", addr.City)

	_, err = s.GetAddress(ctx, "owner-4", "addr-1")
	assert.ErrorIs(t, err, ErrAddressNotFound)
}
