package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_NotReadyByDefault(t *testing.T) {
	g := New()

	assert.False(t, g.IsReady(CatalogStore))
	err := g.Require(CatalogStore)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "catalog")
}

func TestGate_RequireNamesFirstUnreadyStore(t *testing.T) {
	g := New()
	g.MarkReady(CustomerStore)
	g.MarkReady(CatalogStore)

	assert.NoError(t, g.Require(CustomerStore, CatalogStore))

	err := g.Require(CustomerStore, OrderStore, CatalogStore)
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "order")
}

func TestGate_MarkDown(t *testing.T) {
	g := New()
	g.MarkReady(OrderStore)
	g.MarkDown(OrderStore, errors.New("connection refused"))

	assert.False(t, g.IsReady(OrderStore))
	statuses := g.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "connection refused", statuses[0].LastError)
}

func TestGate_Refresh(t *testing.T) {
	g := New()
	g.Register(CustomerStore, PingFunc(func(ctx context.Context) error { return nil }))
	g.Register(CatalogStore, PingFunc(func(ctx context.Context) error { return errors.New("down") }))

	assert.False(t, g.AllReady())

	snapshot := g.Refresh(context.Background(), time.Second)

	assert.True(t, snapshot[CustomerStore])
	assert.False(t, snapshot[CatalogStore])
	assert.False(t, g.AllReady())
	assert.True(t, g.IsReady(CustomerStore))
}

func TestGate_RefreshRecovers(t *testing.T) {
	g := New()
	healthy := false
	g.Register(OrderStore, PingFunc(func(ctx context.Context) error {
		if !healthy {
			return errors.New("down")
		}
		return nil
	}))

	g.Refresh(context.Background(), time.Second)
	assert.False(t, g.IsReady(OrderStore))

	healthy = true
	g.Refresh(context.Background(), time.Second)
	assert.True(t, g.IsReady(OrderStore))
	assert.True(t, g.AllReady())
}
