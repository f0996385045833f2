package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/gate"
	"storefront/internal/models"
	"storefront/internal/mongostore"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/vocab"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService handles order placement and the customer's order history.
type OrderService struct {
	carts     *CartService
	catalog   *CatalogReader
	addresses AddressRepository
	orders    OrderRepository
	writer    *OrderWriter
	verifier  PaymentVerifier
	locker    Locker
	gate      *gate.Gate
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewOrderService creates a new order service. locker may be nil.
func NewOrderService(
	carts *CartService,
	catalog *CatalogReader,
	addresses AddressRepository,
	orders OrderRepository,
	writer *OrderWriter,
	verifier PaymentVerifier,
	locker Locker,
	g *gate.Gate,
	lockTTL time.Duration,
) *OrderService {
	return &OrderService{
		carts:     carts,
		catalog:   catalog,
		addresses: addresses,
		orders:    orders,
		writer:    writer,
		verifier:  verifier,
		locker:    locker,
		gate:      g,
		lockTTL:   lockTTL,
		logger:    util.GetLogger(),
	}
}

// PlaceOrderRequest represents a request to turn the cart into an order
type PlaceOrderRequest struct {
	AddressRef     string       `json:"address_ref" binding:"required"`
	PaymentMethod  string       `json:"payment_method" binding:"required"`
	PaymentRefs    *PaymentRefs `json:"payment_refs,omitempty"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
}

// PlaceOrder runs cart -> catalog resolve -> stock check -> pricing -> write.
// Totals always come from the catalog snapshots, never from the client.
func (s *OrderService) PlaceOrder(ctx context.Context, customerID string, req *PlaceOrderRequest) (*models.CustomerOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder", attribute.String("customer_id", customerID))
	defer span.End()

	if err := validatePlaceOrder(customerID, req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	if err := s.gate.Require(gate.CustomerStore, gate.CatalogStore, gate.OrderStore); err != nil {
		util.OrdersFailedTotal.WithLabelValues("unavailable").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, customerID, req.IdempotencyKey)
		if err != nil {
			return nil, util.RecordError(span, s.gate.Fail(gate.OrderStore, "check idempotency", err))
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("order_id", existing.ID))
			return vocab.ToCustomerOrder(existing), nil
		}
	}

	release, err := s.lockCheckout(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer release()

	cart, err := s.carts.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(cart.Lines) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, apperr.Validation("cart is empty")
	}

	address, err := s.addresses.GetAddress(ctx, customerID, req.AddressRef)
	if errors.Is(err, mongostore.ErrAddressNotFound) {
		util.OrdersFailedTotal.WithLabelValues("address").Inc()
		return nil, apperr.NotFound("address %s", req.AddressRef)
	}
	if err != nil {
		return nil, util.RecordError(span, s.gate.Fail(gate.CustomerStore, "load address", err))
	}

	lines, err := s.resolveLines(ctx, cart)
	if err != nil {
		return nil, err
	}

	if err := s.verifyPayment(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("payment").Inc()
		return nil, err
	}

	return s.writer.Create(ctx, CreateOrderInput{
		CustomerID:     customerID,
		Lines:          lines,
		Address:        *address,
		PaymentMethod:  req.PaymentMethod,
		Payment:        req.PaymentRefs,
		IdempotencyKey: req.IdempotencyKey,
	})
}

// resolveLines resolves every cart line against orderable products and checks
// stock. Any unresolvable product fails the whole order.
func (s *OrderService) resolveLines(ctx context.Context, cart *models.Cart) ([]PricedLine, error) {
	snapshots, err := s.catalog.Resolve(ctx, cart.ProductIDs(), Orderable)
	if err != nil {
		return nil, err
	}

	lines := make([]PricedLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		snapshot, ok := snapshots[line.ProductID]
		if !ok {
			util.OrdersFailedTotal.WithLabelValues("product").Inc()
			return nil, apperr.NotFound("product %s is no longer available", line.ProductID)
		}
		if err := CheckStock(line, snapshot); err != nil {
			util.StockConflictsTotal.WithLabelValues("checkout").Inc()
			util.OrdersFailedTotal.WithLabelValues("stock").Inc()
			return nil, err
		}
		lines = append(lines, PricedLine{Snapshot: snapshot, Quantity: line.Quantity})
	}
	return lines, nil
}

func (s *OrderService) verifyPayment(req *PlaceOrderRequest) error {
	if !vocab.IsOnline(vocab.PaymentMethodToShared(req.PaymentMethod)) {
		return nil
	}
	refs := req.PaymentRefs
	if refs == nil || refs.GatewayOrderRef == "" || refs.PaymentRef == "" || refs.Signature == "" {
		return apperr.PaymentRejected("payment references are required for %s", req.PaymentMethod)
	}
	if !s.verifier.Verify(refs.GatewayOrderRef, refs.PaymentRef, refs.Signature) {
		return apperr.PaymentRejected("payment signature does not match")
	}
	return nil
}

// lockCheckout serializes checkouts of one customer. The lock is best effort:
// when Redis is down the checkout proceeds unlocked.
func (s *OrderService) lockCheckout(ctx context.Context, customerID string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := "checkout:" + customerID
	token, ok, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
	if err != nil {
		s.logger.Warn("Checkout lock unavailable, continuing without it",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, apperr.Conflict("checkout already in progress")
	}

	return func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.String("customer_id", customerID), zap.Error(err))
		}
	}, nil
}

// ListOrders returns the customer's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, customerID string) ([]*models.CustomerOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if customerID == "" {
		return nil, apperr.Validation("customer id is required")
	}
	if err := s.gate.Require(gate.OrderStore); err != nil {
		return nil, err
	}

	orders, err := s.orders.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, util.RecordError(span, s.gate.Fail(gate.OrderStore, "list orders", err))
	}

	out := make([]*models.CustomerOrder, 0, len(orders))
	for i := range orders {
		out = append(out, vocab.ToCustomerOrder(&orders[i]))
	}
	return out, nil
}

// GetOrder returns one of the customer's orders. Another customer's order is
// reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, customerID, orderID string) (*models.CustomerOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	if customerID == "" {
		return nil, apperr.Validation("customer id is required")
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, apperr.Validation("order id is required")
	}
	if err := s.gate.Require(gate.OrderStore); err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrderForCustomer(ctx, customerID, orderID)
	if errors.Is(err, store.ErrOrderNotFound) {
		return nil, apperr.NotFound("order %s", orderID)
	}
	if err != nil {
		return nil, util.RecordError(span, s.gate.Fail(gate.OrderStore, "get order", err))
	}

	return vocab.ToCustomerOrder(order), nil
}

func validatePlaceOrder(customerID string, req *PlaceOrderRequest) error {
	if customerID == "" {
		return apperr.Validation("customer id is required")
	}
	if req == nil {
		return apperr.Validation("request body is required")
	}
	if strings.TrimSpace(req.AddressRef) == "" {
		return apperr.Validation("address_ref is required")
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return apperr.Validation("payment_method is required")
	}
	return nil
}
