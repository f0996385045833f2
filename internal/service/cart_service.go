package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/gate"
	"storefront/internal/models"
	"storefront/internal/mongostore"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxCartWriteAttempts = 3

// CartService owns per-customer cart state in the customer store.
type CartService struct {
	carts   CartRepository
	catalog *CatalogReader
	gate    *gate.Gate
	pricing PricingPolicy
	now     func() time.Time
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts CartRepository, catalog *CatalogReader, g *gate.Gate, pricing PricingPolicy) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		gate:    g,
		pricing: pricing,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// CartItemView is a cart line with its product attached.
type CartItemView struct {
	ProductID string                 `json:"product_id"`
	Quantity  int                    `json:"quantity"`
	Product   models.ProductSnapshot `json:"product"`
	LineTotal decimal.Decimal        `json:"line_total"`
	InStock   bool                   `json:"in_stock"`
}

// CartView is the display shape of a cart. Lines whose product cannot be
// resolved are left out of the view but stay in storage.
type CartView struct {
	OwnerID   string         `json:"owner_id"`
	Items     []CartItemView `json:"items"`
	Summary   Totals         `json:"summary"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// GetOrCreate returns the customer's cart, creating an empty one on first access.
func (s *CartService) GetOrCreate(ctx context.Context, customerID string) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetOrCreate")
	defer span.End()

	if customerID == "" {
		return nil, apperr.Validation("customer id is required")
	}
	if err := s.gate.Require(gate.CustomerStore); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCartWriteAttempts; attempt++ {
		cart, err := s.carts.GetCart(ctx, customerID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, mongostore.ErrCartNotFound) {
			return nil, util.RecordError(span, s.gate.Fail(gate.CustomerStore, "load cart", err))
		}

		cart = s.newCart(customerID)
		err = s.carts.SaveCart(ctx, cart)
		if errors.Is(err, mongostore.ErrVersionConflict) {
			// another request created it first
			continue
		}
		if err != nil {
			return nil, util.RecordError(span, s.gate.Fail(gate.CustomerStore, "create cart", err))
		}
		return cart, nil
	}

	return nil, apperr.Conflict("cart for %s changed concurrently", customerID)
}

// AddItem adds quantity to the product's line, inserting it if absent. The
// merged quantity may not exceed the product's current stock.
func (s *CartService) AddItem(ctx context.Context, customerID, productID string, quantity int) (*models.Cart, error) {
	if err := validateLineInput(customerID, productID, quantity); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "add", customerID, func(cart *models.Cart) error {
		snapshot, err := s.resolveOne(ctx, productID)
		if err != nil {
			return err
		}

		idx := cart.Line(productID)
		merged := quantity
		if idx >= 0 {
			merged += cart.Lines[idx].Quantity
		}

		if err := CheckStock(models.CartLine{ProductID: productID, Quantity: merged}, snapshot); err != nil {
			util.StockConflictsTotal.WithLabelValues("cart").Inc()
			return err
		}

		if idx >= 0 {
			cart.Lines[idx].Quantity = merged
			return nil
		}
		cart.Lines = append(cart.Lines, models.CartLine{
			ProductID: productID,
			Quantity:  merged,
			AddedAt:   s.now(),
		})
		return nil
	})
}

// SetQuantity replaces the quantity of an existing line.
func (s *CartService) SetQuantity(ctx context.Context, customerID, productID string, quantity int) (*models.Cart, error) {
	if err := validateLineInput(customerID, productID, quantity); err != nil {
		return nil, err
	}

	return s.mutate(ctx, "set_quantity", customerID, func(cart *models.Cart) error {
		idx := cart.Line(productID)
		if idx < 0 {
			return apperr.NotFound("product %s is not in the cart", productID)
		}

		snapshot, err := s.resolveOne(ctx, productID)
		if err != nil {
			return err
		}

		if err := CheckStock(models.CartLine{ProductID: productID, Quantity: quantity}, snapshot); err != nil {
			util.StockConflictsTotal.WithLabelValues("cart").Inc()
			return err
		}

		cart.Lines[idx].Quantity = quantity
		return nil
	})
}

// RemoveItem deletes the product's line.
func (s *CartService) RemoveItem(ctx context.Context, customerID, productID string) (*models.Cart, error) {
	if customerID == "" {
		return nil, apperr.Validation("customer id is required")
	}
	if productID == "" {
		return nil, apperr.Validation("product id is required")
	}

	return s.mutate(ctx, "remove", customerID, func(cart *models.Cart) error {
		idx := cart.Line(productID)
		if idx < 0 {
			return apperr.NotFound("product %s is not in the cart", productID)
		}
		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
		return nil
	})
}

// Clear empties the cart. Clearing an empty cart succeeds.
func (s *CartService) Clear(ctx context.Context, customerID string) (*models.Cart, error) {
	if customerID == "" {
		return nil, apperr.Validation("customer id is required")
	}

	return s.mutate(ctx, "clear", customerID, func(cart *models.Cart) error {
		cart.Lines = []models.CartLine{}
		return nil
	})
}

// Deduct removes ordered quantities from the cart, dropping lines that reach
// zero. Lines added after the order was priced survive.
func (s *CartService) Deduct(ctx context.Context, customerID string, ordered map[string]int) (*models.Cart, error) {
	if customerID == "" {
		return nil, apperr.Validation("customer id is required")
	}

	return s.mutate(ctx, "deduct", customerID, func(cart *models.Cart) error {
		kept := make([]models.CartLine, 0, len(cart.Lines))
		for _, line := range cart.Lines {
			line.Quantity -= ordered[line.ProductID]
			if line.Quantity > 0 {
				kept = append(kept, line)
			}
		}
		cart.Lines = kept
		return nil
	})
}

// MergeGuestCart folds an anonymous session's lines into the customer's cart.
// Lines whose product cannot be resolved, whose quantity is not positive, or
// whose merged quantity exceeds stock are skipped without error. It returns the
// cart and the number of skipped lines.
func (s *CartService) MergeGuestCart(ctx context.Context, customerID string, lines []models.CartLine) (*models.Cart, int, error) {
	if customerID == "" {
		return nil, 0, apperr.Validation("customer id is required")
	}
	if len(lines) == 0 {
		cart, err := s.GetOrCreate(ctx, customerID)
		return cart, 0, err
	}

	var skipped int
	cart, err := s.mutate(ctx, "merge", customerID, func(cart *models.Cart) error {
		skipped = 0

		refs := make([]string, 0, len(lines))
		for _, l := range lines {
			refs = append(refs, l.ProductID)
		}
		snapshots, err := s.catalog.Resolve(ctx, refs, Orderable)
		if err != nil {
			return err
		}

		for _, incoming := range lines {
			snapshot, ok := snapshots[incoming.ProductID]
			if !ok || incoming.Quantity < 1 {
				skipped++
				continue
			}

			idx := cart.Line(incoming.ProductID)
			merged := incoming.Quantity
			if idx >= 0 {
				merged += cart.Lines[idx].Quantity
			}
			if CheckStock(models.CartLine{ProductID: incoming.ProductID, Quantity: merged}, snapshot) != nil {
				skipped++
				continue
			}

			if idx >= 0 {
				cart.Lines[idx].Quantity = merged
				continue
			}
			cart.Lines = append(cart.Lines, models.CartLine{
				ProductID: incoming.ProductID,
				Quantity:  merged,
				AddedAt:   s.now(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	if skipped > 0 {
		util.GuestLinesSkippedTotal.Add(float64(skipped))
		s.logger.Info("Guest cart lines skipped during merge",
			zap.String("customer_id", customerID),
			zap.Int("skipped", skipped),
			zap.Int("incoming", len(lines)))
	}

	return cart, skipped, nil
}

// View returns the cart with products attached. Unavailable products show as
// out of stock and are excluded from the summary.
func (s *CartService) View(ctx context.Context, customerID string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.View")
	defer span.End()

	if err := s.gate.Require(gate.CustomerStore); err != nil {
		return nil, err
	}

	cart, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.catalog.Resolve(ctx, cart.ProductIDs(), Browse)
	if err != nil {
		return nil, err
	}

	view := &CartView{
		OwnerID:   cart.OwnerID,
		Items:     make([]CartItemView, 0, len(cart.Lines)),
		UpdatedAt: cart.UpdatedAt,
	}
	priced := make([]PricedLine, 0, len(cart.Lines))

	for _, line := range cart.Lines {
		snapshot, ok := snapshots[line.ProductID]
		if !ok {
			continue
		}
		pl := PricedLine{Snapshot: snapshot, Quantity: line.Quantity}
		inStock := snapshot.Orderable() && snapshot.Stock >= line.Quantity
		view.Items = append(view.Items, CartItemView{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Product:   snapshot,
			LineTotal: pl.LineTotal(),
			InStock:   inStock,
		})
		if snapshot.Orderable() {
			priced = append(priced, pl)
		}
	}

	view.Summary = s.pricing.Compute(priced)
	return view, nil
}

// mutate loads the cart, applies fn and saves it, retrying on a concurrent
// write. fn runs against a fresh copy on every attempt.
func (s *CartService) mutate(ctx context.Context, op, customerID string, fn func(cart *models.Cart) error) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService."+op, attribute.String("customer_id", customerID))
	defer span.End()

	if err := s.gate.Require(gate.CustomerStore); err != nil {
		util.CartMutationsTotal.WithLabelValues(op, "unavailable").Inc()
		return nil, err
	}

	for attempt := 0; attempt < maxCartWriteAttempts; attempt++ {
		cart, err := s.carts.GetCart(ctx, customerID)
		if errors.Is(err, mongostore.ErrCartNotFound) {
			cart = s.newCart(customerID)
		} else if err != nil {
			util.CartMutationsTotal.WithLabelValues(op, "error").Inc()
			return nil, util.RecordError(span, s.gate.Fail(gate.CustomerStore, "load cart", err))
		}

		if err := fn(cart); err != nil {
			util.CartMutationsTotal.WithLabelValues(op, "rejected").Inc()
			return nil, err
		}

		cart.UpdatedAt = s.now()
		err = s.carts.SaveCart(ctx, cart)
		if errors.Is(err, mongostore.ErrVersionConflict) {
			s.logger.Debug("Cart version conflict, retrying",
				zap.String("customer_id", customerID),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			util.CartMutationsTotal.WithLabelValues(op, "error").Inc()
			return nil, util.RecordError(span, s.gate.Fail(gate.CustomerStore, "save cart", err))
		}

		util.CartMutationsTotal.WithLabelValues(op, "ok").Inc()
		return cart, nil
	}

	util.CartMutationsTotal.WithLabelValues(op, "conflict").Inc()
	return nil, apperr.Conflict("cart for %s changed concurrently", customerID)
}

func (s *CartService) resolveOne(ctx context.Context, productID string) (models.ProductSnapshot, error) {
	snapshots, err := s.catalog.Resolve(ctx, []string{productID}, Orderable)
	if err != nil {
		return models.ProductSnapshot{}, err
	}
	snapshot, ok := snapshots[productID]
	if !ok {
		return models.ProductSnapshot{}, apperr.NotFound("product %s", productID)
	}
	return snapshot, nil
}

func (s *CartService) newCart(customerID string) *models.Cart {
	now := s.now()
	return &models.Cart{
		OwnerID:   customerID,
		Lines:     []models.CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func validateLineInput(customerID, productID string, quantity int) error {
	if customerID == "" {
		return apperr.Validation("customer id is required")
	}
	if productID == "" {
		return apperr.Validation("product id is required")
	}
	if quantity < 1 {
		return apperr.Validation("quantity must be at least 1")
	}
	return nil
}
