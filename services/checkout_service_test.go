package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"checkout-service/models"
	"checkout-service/repository"
	"checkout-service/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeOrderRepo is an in-memory OrderRepository with its own inventory
// ledger. A single mutex gives it the same all-or-nothing behavior as the
// real transactional implementation.
type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*models.Order
	inventory map[uuid.UUID]int

	createErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:    make(map[uuid.UUID]*models.Order),
		inventory: make(map[uuid.UUID]int),
	}
}

func (f *fakeOrderRepo) CreateWithReservation(ctx context.Context, order *models.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, item := range order.OrderItems {
		available, ok := f.inventory[item.VariantID]
		if !ok {
			return fmt.Errorf("inventory for variant %s: %w", item.VariantID, repository.ErrNotFound)
		}
		if available < item.Quantity {
			return fmt.Errorf("variant %s: requested %d, available %d: %w",
				item.VariantID, item.Quantity, available, repository.ErrInsufficientStock)
		}
	}
	for _, item := range order.OrderItems {
		f.inventory[item.VariantID] -= item.Quantity
	}

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, changedBy, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, repository.ErrNotFound)
	}
	if order.Status != from {
		return fmt.Errorf("order %s is %s, not %s: %w",
			orderID, order.Status, from, repository.ErrConcurrencyConflict)
	}

	order.Status = to
	fromCopy := from
	order.StatusHistory = append(order.StatusHistory, models.OrderStatusHistory{
		OrderID:    orderID,
		FromStatus: &fromCopy,
		ToStatus:   to,
		ChangedBy:  changedBy,
		Notes:      notes,
	})

	if to.ReleasesInventory() {
		for _, item := range order.OrderItems {
			f.inventory[item.VariantID] += item.Quantity
		}
	}
	return nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, repository.ErrNotFound)
	}
	cp := *order
	return &cp, nil
}

func (f *fakeOrderRepo) FindByIDAndUserID(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := f.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %s: %w", orderID, repository.ErrNotFound)
	}
	return order, nil
}

func (f *fakeOrderRepo) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			result = append(result, *order)
		}
	}
	return result, int64(len(result)), nil
}

func (f *fakeOrderRepo) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Order
	for _, order := range f.orders {
		result = append(result, *order)
	}
	return result, int64(len(result)), nil
}

// recordingProducer captures published events.
type recordingProducer struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *recordingProducer) Publish(ctx context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, value)
	return nil
}

func (p *recordingProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type checkoutFixture struct {
	carts    *mockCartRepo
	orders   *fakeOrderRepo
	catalog  *mockCatalog
	producer *recordingProducer
	svc      *services.CheckoutService
	userID   string
}

func newCheckoutFixture() *checkoutFixture {
	carts := newMockCartRepo()
	orders := newFakeOrderRepo()
	catalog := &mockCatalog{variants: map[uuid.UUID]*services.VariantInfo{}}
	producer := &recordingProducer{}
	svc := services.NewCheckoutService(carts, orders, catalog, producer, nil, "", zap.NewNop())
	return &checkoutFixture{
		carts:    carts,
		orders:   orders,
		catalog:  catalog,
		producer: producer,
		svc:      svc,
		userID:   uuid.New().String(),
	}
}

// seedVariant registers an active variant in the catalog with stock.
func (fx *checkoutFixture) seedVariant(price string, stock int) uuid.UUID {
	id := uuid.New()
	fx.catalog.variants[id] = &services.VariantInfo{
		VariantID: id,
		Price:     decimal.RequireFromString(price),
		Active:    true,
	}
	fx.orders.inventory[id] = stock
	return id
}

func (fx *checkoutFixture) addToCart(t *testing.T, variantID uuid.UUID, qty int) {
	t.Helper()
	cart, err := fx.carts.GetCart(context.Background(), fx.userID)
	assert.NoError(t, err)
	if cart == nil {
		cart = &models.Cart{UserID: fx.userID}
	}
	cart.Items = append(cart.Items, models.CartItem{VariantID: variantID, Quantity: qty})
	assert.NoError(t, fx.carts.SaveCart(context.Background(), cart))
}

func TestCheckout_EmptyCart(t *testing.T) {
	fx := newCheckoutFixture()

	_, err := fx.svc.Checkout(context.Background(), fx.userID, "")
	assert.ErrorIs(t, err, services.ErrEmptyCart)
}

func TestCheckout_InactiveVariantFailsWithoutSideEffects(t *testing.T) {
	fx := newCheckoutFixture()
	okID := fx.seedVariant("10.00", 10)

	staleID := uuid.New()
	fx.catalog.variants[staleID] = &services.VariantInfo{VariantID: staleID, Active: false}
	fx.orders.inventory[staleID] = 10

	fx.addToCart(t, okID, 1)
	fx.addToCart(t, staleID, 1)

	_, err := fx.svc.Checkout(context.Background(), fx.userID, "")
	assert.ErrorIs(t, err, services.ErrVariantUnavailable)

	// Nothing was reserved and the cart is intact.
	assert.Equal(t, 10, fx.orders.inventory[okID])
	assert.Equal(t, 10, fx.orders.inventory[staleID])
	cart, _ := fx.carts.GetCart(context.Background(), fx.userID)
	assert.Len(t, cart.Items, 2)
	assert.Empty(t, fx.orders.orders)
}

func TestCheckout_InsufficientStockLeavesEverythingUntouched(t *testing.T) {
	fx := newCheckoutFixture()
	plentyID := fx.seedVariant("5.00", 100)
	scarceID := fx.seedVariant("7.50", 1)

	fx.addToCart(t, plentyID, 2)
	fx.addToCart(t, scarceID, 3)

	_, err := fx.svc.Checkout(context.Background(), fx.userID, "")
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)

	assert.Equal(t, 100, fx.orders.inventory[plentyID])
	assert.Equal(t, 1, fx.orders.inventory[scarceID])
	cart, _ := fx.carts.GetCart(context.Background(), fx.userID)
	assert.Len(t, cart.Items, 2)
	assert.Empty(t, fx.orders.orders)
	assert.Zero(t, fx.producer.count())
}

func TestCheckout_Success(t *testing.T) {
	fx := newCheckoutFixture()
	firstID := fx.seedVariant("10.00", 5)
	secondID := fx.seedVariant("2.50", 8)

	fx.addToCart(t, firstID, 2)
	fx.addToCart(t, secondID, 4)

	order, err := fx.svc.Checkout(context.Background(), fx.userID, "")
	assert.NoError(t, err)

	assert.Equal(t, models.StatusPending, order.Status)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, order.OrderNumber)
	assert.Equal(t, "30.00", order.TotalAmount.StringFixed(2))
	assert.Len(t, order.OrderItems, 2)

	// Line totals sum exactly to the order total.
	sum := decimal.Zero
	for _, item := range order.OrderItems {
		sum = sum.Add(item.TotalPrice)
	}
	assert.True(t, sum.Equal(order.TotalAmount))

	// Initial history entry records the birth of the order.
	assert.Len(t, order.StatusHistory, 1)
	assert.Nil(t, order.StatusHistory[0].FromStatus)
	assert.Equal(t, models.StatusPending, order.StatusHistory[0].ToStatus)

	// Stock committed, cart cleared, event published.
	assert.Equal(t, 3, fx.orders.inventory[firstID])
	assert.Equal(t, 4, fx.orders.inventory[secondID])
	cart, _ := fx.carts.GetCart(context.Background(), fx.userID)
	assert.Nil(t, cart)
	assert.Equal(t, 1, fx.producer.count())
}

func TestCheckout_SnapshotsPriceAtCheckoutTime(t *testing.T) {
	fx := newCheckoutFixture()
	variantID := fx.seedVariant("10.00", 5)
	fx.addToCart(t, variantID, 1)

	order, err := fx.svc.Checkout(context.Background(), fx.userID, "")
	assert.NoError(t, err)

	// A later price change must not affect the stored order.
	fx.catalog.variants[variantID].Price = decimal.RequireFromString("99.99")

	stored, err := fx.orders.FindByID(context.Background(), order.ID)
	assert.NoError(t, err)
	assert.Equal(t, "10.00", stored.OrderItems[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "10.00", stored.TotalAmount.StringFixed(2))
}

func TestCheckout_ConcurrentBuyersForLastUnit(t *testing.T) {
	fx := newCheckoutFixture()
	variantID := fx.seedVariant("25.00", 1)

	otherUser := uuid.New().String()
	fx.addToCart(t, variantID, 1)
	otherCart := &models.Cart{UserID: otherUser, Items: []models.CartItem{{VariantID: variantID, Quantity: 1}}}
	assert.NoError(t, fx.carts.SaveCart(context.Background(), otherCart))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, user := range []string{fx.userID, otherUser} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, results[i] = fx.svc.Checkout(context.Background(), user, "")
		}(i, user)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, repository.ErrInsufficientStock):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 0, fx.orders.inventory[variantID])
	assert.Len(t, fx.orders.orders, 1)
}

func TestCheckout_PersistenceFailureKeepsCart(t *testing.T) {
	fx := newCheckoutFixture()
	variantID := fx.seedVariant("10.00", 5)
	fx.addToCart(t, variantID, 1)

	fx.orders.createErr = errors.New("connection reset")

	_, err := fx.svc.Checkout(context.Background(), fx.userID, "")
	assert.EqualError(t, err, "connection reset")

	assert.Equal(t, 5, fx.orders.inventory[variantID])
	cart, _ := fx.carts.GetCart(context.Background(), fx.userID)
	assert.Len(t, cart.Items, 1)
	assert.Zero(t, fx.producer.count())
}

func TestCheckout_IdempotencyKeyReturnsOriginalOrder(t *testing.T) {
	fx := newCheckoutFixture()
	variantID := fx.seedVariant("10.00", 5)
	fx.addToCart(t, variantID, 2)

	first, err := fx.svc.Checkout(context.Background(), fx.userID, "retry-abc")
	assert.NoError(t, err)

	// The cart is gone, so without the key this retry would fail; with it,
	// the original order comes back and stock is not reserved twice.
	second, err := fx.svc.Checkout(context.Background(), fx.userID, "retry-abc")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, fx.orders.inventory[variantID])
	assert.Len(t, fx.orders.orders, 1)
}

func TestCheckout_ConcurrentSameIdempotencyKey(t *testing.T) {
	fx := newCheckoutFixture()
	variantID := fx.seedVariant("10.00", 5)
	fx.addToCart(t, variantID, 2)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = fx.svc.Checkout(context.Background(), fx.userID, "retry-race")
		}(i)
	}
	wg.Wait()

	// The loser either replays the winner's order or reports a conflict
	// while the winner is still in flight. Either way only one order exists
	// and stock was reserved exactly once.
	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, repository.ErrConcurrencyConflict)
		}
	}
	assert.Len(t, fx.orders.orders, 1)
	assert.Equal(t, 3, fx.orders.inventory[variantID])
}

func TestCheckout_FailedAttemptReleasesIdempotencyKey(t *testing.T) {
	fx := newCheckoutFixture()
	variantID := fx.seedVariant("10.00", 1)
	fx.addToCart(t, variantID, 2)

	_, err := fx.svc.Checkout(context.Background(), fx.userID, "retry-after-restock")
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)

	// The failed attempt releases its claim, so a retry with the same key
	// succeeds once stock is back.
	fx.orders.inventory[variantID] = 5
	order, err := fx.svc.Checkout(context.Background(), fx.userID, "retry-after-restock")
	assert.NoError(t, err)
	assert.Equal(t, 3, fx.orders.inventory[variantID])
	assert.Len(t, fx.orders.orders, 1)
	assert.NotNil(t, order)
}

func TestCheckout_InvalidUserID(t *testing.T) {
	fx := newCheckoutFixture()

	_, err := fx.svc.Checkout(context.Background(), "not-a-uuid", "")
	assert.Error(t, err)
}
