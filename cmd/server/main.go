package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/auth"
	"storefront/internal/broker"
	"storefront/internal/gate"
	"storefront/internal/mongostore"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	storeGate := gate.New()
	ctx := context.Background()

	customerStore, err := mongostore.Connect(ctx, cfg.CustomerStore.URI, cfg.CustomerStore.Database)
	if err != nil {
		logger.Fatal("Failed to configure customer store", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = customerStore.Close(ctx)
	}()
	storeGate.Register(gate.CustomerStore, customerStore)

	catalogDB, err := store.Open(cfg.CatalogStore.URL)
	if err != nil {
		logger.Fatal("Failed to configure catalog store", zap.Error(err))
	}
	defer catalogDB.Close()
	catalogStore := store.NewCatalogStore(catalogDB)
	storeGate.Register(gate.CatalogStore, catalogStore)

	orderDB, err := store.Open(cfg.OrderStore.URL)
	if err != nil {
		logger.Fatal("Failed to configure order store", zap.Error(err))
	}
	defer orderDB.Close()
	orderStore := store.NewOrderStore(orderDB)
	storeGate.Register(gate.OrderStore, orderStore)

	ready := storeGate.Refresh(ctx, cfg.Business.StoreTimeout)
	logger.Info("Store readiness at startup",
		zap.Bool("customer", ready[gate.CustomerStore]),
		zap.Bool("catalog", ready[gate.CatalogStore]),
		zap.Bool("order", ready[gate.OrderStore]))

	if ready[gate.CustomerStore] {
		indexCtx, cancel := context.WithTimeout(ctx, cfg.Business.StoreTimeout)
		if err := customerStore.EnsureIndexes(indexCtx); err != nil {
			logger.Error("Failed to create customer store indexes", zap.Error(err))
		}
		cancel()
	}

	if cfg.OrderStore.Migrate && ready[gate.OrderStore] {
		if err := orderStore.MigrateOrders(); err != nil {
			logger.Fatal("Failed to migrate order store", zap.Error(err))
		}
		logger.Info("Order store migrated")
	}

	// Redis backs the order-number sequence and the checkout lock; both have
	// local fallbacks.
	var (
		sequence service.SequenceSource
		locker   service.Locker
	)
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, using local order sequence and no checkout lock", zap.Error(err))
	} else {
		defer redisClient.Close()
		sequence = redisClient
		locker = redisClient
		logger.Info("Redis connected")
	}

	var publisher service.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicOrder))
	}

	if cfg.Payment.GatewaySecret == "" {
		logger.Warn("PAYMENT_GATEWAY_SECRET not set, online payments will be rejected")
	}

	pricing := service.PricingPolicy{
		TaxRate:               cfg.Business.TaxRate,
		FreeShippingThreshold: cfg.Business.FreeShippingThreshold,
		FlatShippingFee:       cfg.Business.FlatShippingFee,
	}

	catalogReader := service.NewCatalogReader(catalogStore, storeGate)
	cartService := service.NewCartService(customerStore, catalogReader, storeGate, pricing)
	orderWriter := service.NewOrderWriter(
		orderStore,
		catalogStore,
		cartService,
		service.NewOrderNumberGenerator(sequence),
		publisher,
		storeGate,
		pricing,
		service.WriterConfig{
			MaxAttempts:  cfg.Business.OrderNumberMaxAttempts,
			ReserveStock: cfg.Business.ReserveStockOnOrder,
		},
	)
	orderService := service.NewOrderService(
		cartService,
		catalogReader,
		customerStore,
		orderStore,
		orderWriter,
		service.NewHMACVerifier(cfg.Payment.GatewaySecret),
		locker,
		storeGate,
		cfg.Business.CheckoutLockTTL,
	)
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(cartService, orderService, jwtService, storeGate, cfg.Business.StoreTimeout)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
