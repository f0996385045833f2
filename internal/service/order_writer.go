package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/gate"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/vocab"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// WriterConfig tunes OrderWriter.
type WriterConfig struct {
	// MaxAttempts bounds order-number collisions retried before giving up.
	MaxAttempts int
	// ReserveStock applies a conditional stock decrement per line before the
	// order is written, closing the check-then-write oversell window.
	ReserveStock bool
}

// OrderWriter assembles an order in shared-store shape, persists it and clears
// the customer's cart.
type OrderWriter struct {
	orders    OrderRepository
	products  ProductRepository
	carts     *CartService
	numbers   *OrderNumberGenerator
	publisher EventPublisher
	gate      *gate.Gate
	pricing   PricingPolicy
	cfg       WriterConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrderWriter creates a new order writer. publisher may be nil.
func NewOrderWriter(
	orders OrderRepository,
	products ProductRepository,
	carts *CartService,
	numbers *OrderNumberGenerator,
	publisher EventPublisher,
	g *gate.Gate,
	pricing PricingPolicy,
	cfg WriterConfig,
) *OrderWriter {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &OrderWriter{
		orders:    orders,
		products:  products,
		carts:     carts,
		numbers:   numbers,
		publisher: publisher,
		gate:      g,
		pricing:   pricing,
		cfg:       cfg,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// CreateOrderInput is everything the writer needs; lines must already be
// resolved and stock-checked.
type CreateOrderInput struct {
	CustomerID     string
	Lines          []PricedLine
	Address        models.Address
	PaymentMethod  string
	Payment        *PaymentRefs
	IdempotencyKey string
}

// Create persists the order and returns it in customer vocabulary. If
// persistence fails the cart is untouched. On success the ordered quantities
// are removed from the cart. If that fails the order is still returned; the
// failure is logged, counted and published, and the cart keeps its lines.
func (w *OrderWriter) Create(ctx context.Context, in CreateOrderInput) (*models.CustomerOrder, error) {
	ctx, span := util.StartSpan(ctx, "OrderWriter.Create",
		attribute.String("customer_id", in.CustomerID),
		attribute.Int("lines", len(in.Lines)))
	defer span.End()

	if len(in.Lines) == 0 {
		return nil, apperr.Validation("order has no lines")
	}
	if err := w.gate.Require(gate.OrderStore, gate.CustomerStore); err != nil {
		return nil, err
	}

	totals := w.pricing.Compute(in.Lines)
	sharedMethod := vocab.PaymentMethodToShared(in.PaymentMethod)

	if w.cfg.ReserveStock {
		if err := w.gate.Require(gate.CatalogStore); err != nil {
			return nil, err
		}
		if err := w.reserveStock(ctx, in.Lines); err != nil {
			util.OrdersFailedTotal.WithLabelValues("stock").Inc()
			return nil, util.RecordError(span, err)
		}
	}

	now := w.now()
	order := &models.Order{
		ID:              uuid.New().String(),
		CustomerID:      in.CustomerID,
		Items:           buildOrderLines(in.Lines),
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Total:           totals.Total,
		Status:          models.OrderStatusPlaced,
		PaymentMethod:   sharedMethod,
		PaymentStatus:   vocab.InitialPaymentStatus(sharedMethod),
		ShippingAddress: in.Address,
		IdempotencyKey:  in.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Payment != nil {
		order.PaymentRef = in.Payment.PaymentRef
		order.GatewayOrderRef = in.Payment.GatewayOrderRef
	}

	existing, err := w.persist(ctx, order)
	if err != nil {
		w.releaseStock(ctx, in.Lines)
		util.OrdersFailedTotal.WithLabelValues("persist").Inc()
		return nil, util.RecordError(span, err)
	}
	if existing != nil {
		// a concurrent request with the same idempotency key won
		w.releaseStock(ctx, in.Lines)
		return vocab.ToCustomerOrder(existing), nil
	}

	util.OrdersCreatedTotal.WithLabelValues(sharedMethod).Inc()
	w.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("customer_id", order.CustomerID),
		zap.String("total", order.Total.StringFixed(moneyPlaces)))

	if _, err := w.carts.Deduct(ctx, in.CustomerID, orderedQuantities(in.Lines)); err != nil {
		w.reportCartClearFailure(ctx, order, err)
	}

	w.publishOrderPlaced(ctx, order)

	return vocab.ToCustomerOrder(order), nil
}

// persist writes the order, drawing a fresh order number on each collision.
// A non-nil order return means an order with the same idempotency key already
// exists and nothing was written.
func (w *OrderWriter) persist(ctx context.Context, order *models.Order) (*models.Order, error) {
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		order.OrderNumber = w.numbers.Next(ctx)

		err := w.orders.CreateOrder(ctx, order)
		if err == nil {
			return nil, nil
		}

		switch {
		case errors.Is(err, store.ErrDuplicateOrderNumber):
			util.OrderNumberCollisionsTotal.Inc()
			w.logger.Warn("Order number collision, retrying",
				zap.String("order_number", order.OrderNumber),
				zap.Int("attempt", attempt))
			continue

		case errors.Is(err, store.ErrDuplicateIdempotencyKey):
			existing, getErr := w.orders.GetOrderByIdempotencyKey(ctx, order.CustomerID, order.IdempotencyKey)
			if getErr != nil {
				return nil, w.gate.Fail(gate.OrderStore, "load order by idempotency key", getErr)
			}
			if existing == nil {
				return nil, apperr.Conflict("order with idempotency key %s is being created", order.IdempotencyKey)
			}
			return existing, nil

		default:
			return nil, w.gate.Fail(gate.OrderStore, "persist order", err)
		}
	}

	return nil, apperr.Conflict("could not allocate a unique order number after %d attempts", w.cfg.MaxAttempts)
}

// reserveStock decrements stock line by line. On the first failure it puts
// back what it already took.
func (w *OrderWriter) reserveStock(ctx context.Context, lines []PricedLine) error {
	start := time.Now()
	defer func() {
		util.StockDecrementLatency.Observe(time.Since(start).Seconds())
	}()

	for i, l := range lines {
		ok, err := w.products.DecrementStock(ctx, l.Snapshot.ID, l.Quantity)
		if err != nil {
			w.releaseStock(ctx, lines[:i])
			return w.gate.Fail(gate.CatalogStore, "reserve stock", err)
		}
		if !ok {
			w.releaseStock(ctx, lines[:i])
			util.StockConflictsTotal.WithLabelValues("reserve").Inc()
			return apperr.StockReserveConflict(l.Snapshot.ID, l.Quantity)
		}
	}
	return nil
}

func (w *OrderWriter) releaseStock(ctx context.Context, lines []PricedLine) {
	if !w.cfg.ReserveStock {
		return
	}
	for _, l := range lines {
		if err := w.products.RestoreStock(ctx, l.Snapshot.ID, l.Quantity); err != nil {
			w.logger.Error("Failed to restore stock",
				zap.String("product_id", l.Snapshot.ID),
				zap.Int("quantity", l.Quantity),
				zap.Error(err))
		}
	}
}

func (w *OrderWriter) reportCartClearFailure(ctx context.Context, order *models.Order, err error) {
	util.CartClearFailuresTotal.Inc()
	w.logger.Error("Order persisted but cart not cleared",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.Error(err))

	if w.publisher == nil {
		return
	}
	event := &models.CartClearFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCartClearFailed,
			Timestamp: w.now(),
		},
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     err.Error(),
	}
	if pubErr := w.publisher.PublishCartClearFailed(ctx, event); pubErr != nil {
		w.logger.Error("Failed to publish CartClearFailed event", zap.Error(pubErr))
	}
}

func (w *OrderWriter) publishOrderPlaced(ctx context.Context, order *models.Order) {
	if w.publisher == nil {
		return
	}

	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: w.now(),
		},
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Items:         items,
	}

	if err := w.publisher.PublishOrderPlaced(ctx, event); err != nil {
		w.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}

func orderedQuantities(lines []PricedLine) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.Snapshot.ID] += l.Quantity
	}
	return out
}

func buildOrderLines(lines []PricedLine) []models.OrderLine {
	out := make([]models.OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.OrderLine{
			ProductID: l.Snapshot.ID,
			Name:      l.Snapshot.Name,
			UnitPrice: l.Snapshot.Price,
			Quantity:  l.Quantity,
			Subtotal:  l.LineTotal().Round(moneyPlaces),
		})
	}
	return out
}
