package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TAX_RATE", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.18", cfg.Business.TaxRate.String())
	assert.Equal(t, "500", cfg.Business.FreeShippingThreshold.String())
	assert.Equal(t, "50", cfg.Business.FlatShippingFee.String())
	assert.Equal(t, 3, cfg.Business.OrderNumberMaxAttempts)
	assert.True(t, cfg.Business.ReserveStockOnOrder)
	assert.Equal(t, 30*time.Second, cfg.Business.CheckoutLockTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TAX_RATE", "0.05")
	t.Setenv("RESERVE_STOCK_ON_ORDER", "false")
	t.Setenv("ORDER_NUMBER_MAX_ATTEMPTS", "5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := Load()

	assert.Equal(t, "0.05", cfg.Business.TaxRate.String())
	assert.False(t, cfg.Business.ReserveStockOnOrder)
	assert.Equal(t, 5, cfg.Business.OrderNumberMaxAttempts)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TAX_RATE", "eighteen")
	t.Setenv("FLAT_SHIPPING_FEE", "-1")
	t.Setenv("ORDER_NUMBER_MAX_ATTEMPTS", "0")
	t.Setenv("ORDER_STORE_MIGRATE", "maybe")

	cfg := Load()

	assert.Equal(t, "0.18", cfg.Business.TaxRate.String())
	assert.Equal(t, "50", cfg.Business.FlatShippingFee.String())
	assert.Equal(t, 3, cfg.Business.OrderNumberMaxAttempts)
	assert.False(t, cfg.OrderStore.Migrate)
}
