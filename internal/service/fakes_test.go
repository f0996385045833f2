package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/gate"
	"storefront/internal/models"
	"storefront/internal/mongostore"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
)

// fakeCarts mirrors the optimistic versioning of the Mongo cart store.
type fakeCarts struct {
	mu       sync.Mutex
	carts    map[string]*models.Cart
	getErr   error
	saveHook func(cart *models.Cart) error
	saves    int
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: make(map[string]*models.Cart)}
}

func (f *fakeCarts) GetCart(_ context.Context, ownerID string) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	cart, ok := f.carts[ownerID]
	if !ok {
		return nil, mongostore.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (f *fakeCarts) SaveCart(_ context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveHook != nil {
		if err := f.saveHook(cart); err != nil {
			return err
		}
	}

	existing, ok := f.carts[cart.OwnerID]
	switch {
	case cart.Version == 0 && ok:
		return mongostore.ErrVersionConflict
	case cart.Version != 0 && (!ok || existing.Version != cart.Version):
		return mongostore.ErrVersionConflict
	}

	cart.Version++
	f.carts[cart.OwnerID] = cart.Clone()
	f.saves++
	return nil
}

func (f *fakeCarts) put(ownerID string, lines ...models.CartLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[ownerID] = &models.Cart{OwnerID: ownerID, Lines: lines, Version: 1}
}

func (f *fakeCarts) lines(ownerID string) []models.CartLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cart, ok := f.carts[ownerID]; ok {
		return append([]models.CartLine(nil), cart.Lines...)
	}
	return nil
}

type fakeAddresses struct {
	addresses map[string]models.Address
}

func (f *fakeAddresses) GetAddress(_ context.Context, ownerID, addressID string) (*models.Address, error) {
	a, ok := f.addresses[addressID]
	if !ok || a.OwnerID != ownerID {
		return nil, mongostore.ErrAddressNotFound
	}
	return &a, nil
}

// fakeProducts applies the same conditional decrement as the catalog store.
type fakeProducts struct {
	mu            sync.Mutex
	products      map[string]models.ProductSnapshot
	getErr        error
	failDecrement map[string]bool
	restored      map[string]int
}

func newFakeProducts(products ...models.ProductSnapshot) *fakeProducts {
	f := &fakeProducts{
		products:      make(map[string]models.ProductSnapshot),
		failDecrement: make(map[string]bool),
		restored:      make(map[string]int),
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) GetProductsByIDs(_ context.Context, ids []string) ([]models.ProductSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []models.ProductSnapshot
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) DecrementStock(_ context.Context, productID string, quantity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok || f.failDecrement[productID] || p.Status != models.ProductStatusActive || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	f.products[productID] = p
	return true, nil
}

func (f *fakeProducts) RestoreStock(_ context.Context, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[productID]
	p.Stock += quantity
	f.products[productID] = p
	f.restored[productID] += quantity
	return nil
}

func (f *fakeProducts) stock(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[productID].Stock
}

// fakeOrders enforces the unique order number and idempotency key. createErrs
// are returned, in order, before any real insert is attempted.
type fakeOrders struct {
	mu         sync.Mutex
	orders     map[string]models.Order
	createErrs []error
	lookupErr  error
	creates    int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]models.Order)}
}

func (f *fakeOrders) CreateOrder(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		return err
	}
	for _, o := range f.orders {
		if o.OrderNumber == order.OrderNumber {
			return store.ErrDuplicateOrderNumber
		}
		if order.IdempotencyKey != "" && o.CustomerID == order.CustomerID && o.IdempotencyKey == order.IdempotencyKey {
			return store.ErrDuplicateIdempotencyKey
		}
	}
	f.orders[order.ID] = *order
	return nil
}

func (f *fakeOrders) GetOrderForCustomer(_ context.Context, customerID, orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.CustomerID != customerID {
		return nil, store.ErrOrderNotFound
	}
	return &o, nil
}

func (f *fakeOrders) ListOrdersByCustomer(_ context.Context, customerID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) GetOrderByIdempotencyKey(_ context.Context, customerID, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, o := range f.orders {
		if o.CustomerID == customerID && o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, nil
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeSequence struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (f *fakeSequence) NextSequence(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	released int
}

func (f *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	if f.held == nil {
		f.held = make(map[string]string)
	}
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	token := fmt.Sprintf("token-%d", len(f.held)+1)
	f.held[key] = token
	return token, true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == token {
		delete(f.held, key)
		f.released++
	}
	return nil
}

type fakePublisher struct {
	mu          sync.Mutex
	placed      []*models.OrderPlacedEvent
	clearFailed []*models.CartClearFailedEvent
	err         error
}

func (f *fakePublisher) PublishOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, event)
	return f.err
}

func (f *fakePublisher) PublishCartClearFailed(_ context.Context, event *models.CartClearFailedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearFailed = append(f.clearFailed, event)
	return f.err
}

func product(id, price string, stock int) models.ProductSnapshot {
	return models.ProductSnapshot{
		ID:     id,
		Name:   "Product " + id,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: models.ProductStatusActive,
	}
}

func readyGate() *gate.Gate {
	g := gate.New()
	g.MarkReady(gate.CustomerStore)
	g.MarkReady(gate.CatalogStore)
	g.MarkReady(gate.OrderStore)
	return g
}

const (
	testCustomer = "cust-1"
	testAddress  = "addr-1"
	testSecret   = "gateway-secret"
)

// testEnv wires the services over fakes.
type testEnv struct {
	gate      *gate.Gate
	carts     *fakeCarts
	addresses *fakeAddresses
	products  *fakeProducts
	orders    *fakeOrders
	sequence  *fakeSequence
	locker    *fakeLocker
	publisher *fakePublisher

	catalog  *CatalogReader
	cart     *CartService
	writer   *OrderWriter
	checkout *OrderService
	verifier *HMACVerifier
}

func newTestEnv(t *testing.T, products ...models.ProductSnapshot) *testEnv {
	t.Helper()

	env := &testEnv{
		gate:  readyGate(),
		carts: newFakeCarts(),
		addresses: &fakeAddresses{addresses: map[string]models.Address{
			testAddress: {ID: testAddress, OwnerID: testCustomer, Name: "A. Customer", City: "Pune", PostalCode: "411001"},
		}},
		products:  newFakeProducts(products...),
		orders:    newFakeOrders(),
		sequence:  &fakeSequence{},
		locker:    &fakeLocker{},
		publisher: &fakePublisher{},
		verifier:  NewHMACVerifier(testSecret),
	}

	pricing := DefaultPricingPolicy()
	env.catalog = NewCatalogReader(env.products, env.gate)
	env.cart = NewCartService(env.carts, env.catalog, env.gate, pricing)
	env.writer = NewOrderWriter(
		env.orders,
		env.products,
		env.cart,
		NewOrderNumberGenerator(env.sequence),
		env.publisher,
		env.gate,
		pricing,
		WriterConfig{MaxAttempts: 3, ReserveStock: true},
	)
	env.checkout = NewOrderService(
		env.cart,
		env.catalog,
		env.addresses,
		env.orders,
		env.writer,
		env.verifier,
		env.locker,
		env.gate,
		30*time.Second,
	)
	return env
}
