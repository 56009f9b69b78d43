package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/bookstore/fulfillment/internal/order/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// memStore backs all fake ports with one state so tests can verify the
// transactional contract: every mutation inside Transact is rolled back as a
// unit when fn fails, and transactions serialize on one lock.
type memStore struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	stock    map[string]stockRec
	products map[string]Product
}

type stockRec struct {
	qty int
	max *int
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[string]domain.Order),
		stock:    make(map[string]stockRec),
		products: make(map[string]Product),
	}
}

type inTxKey struct{}

func (m *memStore) lock(ctx context.Context) func() {
	if ctx.Value(inTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ordersSnap := make(map[string]domain.Order, len(m.orders))
	for k, v := range m.orders {
		v.Lines = append([]domain.Line(nil), v.Lines...)
		ordersSnap[k] = v
	}
	stockSnap := make(map[string]stockRec, len(m.stock))
	for k, v := range m.stock {
		stockSnap[k] = v
	}

	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		m.orders = ordersSnap
		m.stock = stockSnap
		return err
	}
	return nil
}

// OrderRepo port

func (m *memStore) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	defer m.lock(ctx)()
	order.ID = uuid.NewString()
	for i := range order.Lines {
		order.Lines[i].ID = uuid.NewString()
		order.Lines[i].OrderID = order.ID
	}
	m.orders[order.ID] = order
	return order, nil
}

func (m *memStore) Get(ctx context.Context, id string) (domain.Order, error) {
	defer m.lock(ctx)()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return m.Get(ctx, id)
}

func (m *memStore) UpdateStatus(ctx context.Context, id string, status domain.Status, payment domain.PaymentStatus, stockAdjusted bool) error {
	defer m.lock(ctx)()
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	o.PaymentStatus = payment
	o.StockAdjusted = stockAdjusted
	m.orders[id] = o
	return nil
}

func (m *memStore) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	defer m.lock(ctx)()
	var out []domain.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) List(ctx context.Context) ([]domain.Order, error) {
	defer m.lock(ctx)()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	defer m.lock(ctx)()
	if _, ok := m.orders[id]; !ok {
		return ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

// InventoryLedger port, with the same conditional semantics as the SQL repo.

func (m *memStore) CheckAvailable(ctx context.Context, productID string, qty int) (bool, error) {
	defer m.lock(ctx)()
	rec, ok := m.stock[productID]
	return ok && rec.qty >= qty, nil
}

func (m *memStore) Debit(ctx context.Context, productID string, qty int) error {
	defer m.lock(ctx)()
	rec, ok := m.stock[productID]
	if !ok {
		return fmt.Errorf("%w: product %s", ErrProductNotFound, productID)
	}
	if rec.qty < qty {
		return fmt.Errorf("%w: product %s", ErrInsufficientStock, productID)
	}
	rec.qty -= qty
	m.stock[productID] = rec
	return nil
}

func (m *memStore) Credit(ctx context.Context, productID string, qty int) error {
	defer m.lock(ctx)()
	rec, ok := m.stock[productID]
	if !ok {
		return fmt.Errorf("%w: product %s", ErrProductNotFound, productID)
	}
	if rec.max != nil && rec.qty+qty > *rec.max {
		return fmt.Errorf("%w: product %s", ErrCapacityExceeded, productID)
	}
	rec.qty += qty
	m.stock[productID] = rec
	return nil
}

// CatalogReader port

func (m *memStore) GetProduct(ctx context.Context, productID string) (Product, error) {
	defer m.lock(ctx)()
	p, ok := m.products[productID]
	if !ok {
		return Product{}, fmt.Errorf("%w: product %s", ErrProductNotFound, productID)
	}
	return p, nil
}

func (m *memStore) stockOf(t *testing.T, productID string) int {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stock[productID]
	require.True(t, ok, "no stock record for %s", productID)
	return rec.qty
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *memStore, *recordingPublisher) {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewService(store, store, store, store, pub, nil, 4)
	return svc, store, pub
}

func seedProduct(store *memStore, id string, price int64, active bool, stock int, maxStock *int) {
	store.products[id] = Product{
		ID:        id,
		Name:      "book-" + id,
		UnitPrice: decimal.NewFromInt(price),
		Active:    active,
	}
	store.stock[id] = stockRec{qty: stock, max: maxStock}
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("cod order debits stock and defers payment", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 150, true, 5, nil)

		order, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID:      "c1",
			Lines:           []CartLine{{ProductID: "p1", Quantity: 3}},
			ShippingAddress: "12 Mabini St",
			PaymentMethod:   domain.PaymentMethodCOD,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusWaitingForConfirmation, order.Status)
		assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
		assert.True(t, order.StockAdjusted)
		assert.Equal(t, "450", order.TotalAmount.String())
		require.Len(t, order.Lines, 1)
		assert.Equal(t, "150", order.Lines[0].UnitPrice.String())
		assert.Equal(t, "450", order.Lines[0].Subtotal.String())

		assert.Equal(t, 2, store.stockOf(t, "p1"))

		stored, err := svc.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, stored.StockAdjusted)
	})

	t.Run("non-cod order is settled at placement", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 5, nil)

		order, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID:    "c1",
			Lines:         []CartLine{{ProductID: "p1", Quantity: 1}},
			PaymentMethod: "credit_card",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	})

	t.Run("empty cart", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{CustomerID: "c1"})
		require.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 5, nil)
		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "c1",
			Lines:      []CartLine{{ProductID: "p1", Quantity: 0}},
		})
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown product names the offender", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 5, nil)

		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "c1",
			Lines:      []CartLine{{ProductID: "p1", Quantity: 1}, {ProductID: "ghost", Quantity: 1}},
		})
		require.ErrorIs(t, err, ErrProductNotFound)
		assert.Contains(t, err.Error(), "ghost")

		assert.Equal(t, 5, store.stockOf(t, "p1"), "no partial debit on failure")
		orders, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, orders, "no partial order on failure")
	})

	t.Run("inactive product rejected", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, false, 5, nil)

		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "c1",
			Lines:      []CartLine{{ProductID: "p1", Quantity: 1}},
		})
		require.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("short stock fails the whole placement", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, nil)
		seedProduct(store, "p2", 100, true, 10, nil)

		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "c1",
			Lines:      []CartLine{{ProductID: "p1", Quantity: 5}, {ProductID: "p2", Quantity: 20}},
		})
		require.ErrorIs(t, err, ErrInsufficientStock)
		assert.Contains(t, err.Error(), "p2")

		assert.Equal(t, 10, store.stockOf(t, "p1"))
		assert.Equal(t, 10, store.stockOf(t, "p2"))
		orders, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("publishes order placed event", func(t *testing.T) {
		svc, store, pub := newTestService(t)
		seedProduct(store, "p1", 100, true, 5, nil)

		_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID: "c1",
			Lines:      []CartLine{{ProductID: "p1", Quantity: 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{EventOrderPlaced}, pub.types())
	})
}

// placeTestOrder places a two-unit order for p1, debiting its stock.
func placeTestOrder(t *testing.T, svc *Service, store *memStore, paymentMethod string) domain.Order {
	t.Helper()
	order, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID:    "c1",
		Lines:         []CartLine{{ProductID: "p1", Quantity: 2}},
		PaymentMethod: paymentMethod,
	})
	require.NoError(t, err)
	return order
}

func TestRequestStatusChange(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm debits an unadjusted order", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, nil)
		order := placeTestOrder(t, svc, store, domain.PaymentMethodCOD)

		// Model an order that reached the store without a placement debit.
		store.stock["p1"] = stockRec{qty: 10}
		require.NoError(t, store.UpdateStatus(ctx, order.ID, order.Status, order.PaymentStatus, false))

		updated, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusConfirmed})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, updated.Status)
		assert.True(t, updated.StockAdjusted)
		assert.Equal(t, 8, store.stockOf(t, "p1"))
	})

	t.Run("confirming twice debits exactly once", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, nil)
		order := placeTestOrder(t, svc, store, domain.PaymentMethodCOD) // stock now 8, flag set

		first, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusConfirmed})
		require.NoError(t, err)
		assert.True(t, first.StockAdjusted)
		assert.Equal(t, 8, store.stockOf(t, "p1"), "placement already debited")

		second, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusConfirmed})
		require.NoError(t, err)
		assert.True(t, second.StockAdjusted)
		assert.Equal(t, 8, store.stockOf(t, "p1"), "re-confirm must not debit again")
	})

	t.Run("cancel credits back and fails payment", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, nil)
		order := placeTestOrder(t, svc, store, domain.PaymentMethodCOD)

		_, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusConfirmed})
		require.NoError(t, err)

		cancelled, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusCancelled})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.Equal(t, domain.PaymentFailed, cancelled.PaymentStatus)
		assert.False(t, cancelled.StockAdjusted)
		assert.Equal(t, 10, store.stockOf(t, "p1"), "confirm then cancel nets to zero")
	})

	t.Run("mid-loop debit failure rolls back everything", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, nil)
		seedProduct(store, "p2", 100, true, 10, nil)

		order, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
			CustomerID:    "c1",
			Lines:         []CartLine{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 2}},
			PaymentMethod: domain.PaymentMethodCOD,
		})
		require.NoError(t, err)

		// Rewind the placement debit for p1 only and clear the flag: the
		// confirmation debit will succeed for p1 and fail for p2.
		store.stock["p1"] = stockRec{qty: 10}
		store.stock["p2"] = stockRec{qty: 1}
		require.NoError(t, store.UpdateStatus(ctx, order.ID, order.Status, order.PaymentStatus, false))

		_, err = svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusConfirmed})
		require.ErrorIs(t, err, ErrInsufficientStock)
		assert.Contains(t, err.Error(), "p2")

		assert.Equal(t, 10, store.stockOf(t, "p1"), "p1's debit must be rolled back")
		assert.Equal(t, 1, store.stockOf(t, "p2"))

		stored, err := svc.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitingForConfirmation, stored.Status)
		assert.False(t, stored.StockAdjusted)
	})

	t.Run("cancel without prior debit fabricates no credit", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, nil)
		order := placeTestOrder(t, svc, store, domain.PaymentMethodCOD)

		// Strip the placement debit so the flag is clear.
		store.stock["p1"] = stockRec{qty: 10}
		require.NoError(t, store.UpdateStatus(ctx, order.ID, order.Status, order.PaymentStatus, false))

		cancelled, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusCancelled})
		require.NoError(t, err)
		assert.False(t, cancelled.StockAdjusted)
		assert.Equal(t, 10, store.stockOf(t, "p1"))
	})

	t.Run("paid non-cod payment status is locked", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, nil)
		order := placeTestOrder(t, svc, store, "credit_card") // payment Paid at placement

		_, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusConfirmed})
		require.NoError(t, err)

		updated, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{
			Status:        domain.StatusProcessing,
			PaymentStatus: domain.PaymentPending,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPaid, updated.PaymentStatus)
	})

	t.Run("delivered cod order settles", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, nil)
		order := placeTestOrder(t, svc, store, domain.PaymentMethodCOD)

		for _, st := range []domain.Status{domain.StatusConfirmed, domain.StatusProcessing, domain.StatusShipped} {
			_, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: st})
			require.NoError(t, err)
		}

		delivered, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusDelivered})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPaid, delivered.PaymentStatus)
	})

	t.Run("terminal order accepts nothing", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, nil)
		order := placeTestOrder(t, svc, store, domain.PaymentMethodCOD)

		for _, st := range []domain.Status{domain.StatusConfirmed, domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
			_, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: st})
			require.NoError(t, err)
		}

		for _, st := range []domain.Status{domain.StatusWaitingForConfirmation, domain.StatusProcessing, domain.StatusCancelled} {
			_, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: st})
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		}
	})

	t.Run("skipping a stage is rejected without side effects", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, nil)
		order := placeTestOrder(t, svc, store, domain.PaymentMethodCOD)

		_, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusShipped})
		require.ErrorIs(t, err, domain.ErrInvalidTransition)

		stored, err := svc.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitingForConfirmation, stored.Status)
		assert.Equal(t, 8, store.stockOf(t, "p1"))
	})

	t.Run("credit over capacity aborts the cancellation", func(t *testing.T) {
		maxStock := 9
		svc, store, _ := newTestService(t)
		seedProduct(store, "p1", 100, true, 10, &maxStock)
		// Placement debited 2 units, leaving 8 of max 9; crediting 2 back
		// would exceed the cap.
		order := placeTestOrder(t, svc, store, domain.PaymentMethodCOD)

		_, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusCancelled})
		require.ErrorIs(t, err, ErrCapacityExceeded)

		stored, err := svc.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitingForConfirmation, stored.Status, "failed cancel leaves the order untouched")
		assert.True(t, stored.StockAdjusted)
		assert.Equal(t, 8, store.stockOf(t, "p1"))
	})

	t.Run("unknown order", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.RequestStatusChange(ctx, uuid.NewString(), domain.Change{Status: domain.StatusConfirmed})
		require.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestConcurrentPlacementNeverOversells(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	const workers = 8
	const stock = workers - 1
	seedProduct(store, "p1", 100, true, stock, nil)

	var shortStock int
	var mu sync.Mutex
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
				CustomerID: "c1",
				Lines:      []CartLine{{ProductID: "p1", Quantity: 1}},
			})
			if err != nil {
				if !errors.Is(err, ErrInsufficientStock) {
					return err
				}
				mu.Lock()
				shortStock++
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, shortStock)
	assert.Equal(t, 0, store.stockOf(t, "p1"))

	orders, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, stock)
}

func TestDeletePurgesOrder(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	seedProduct(store, "p1", 100, true, 10, nil)
	order := placeTestOrder(t, svc, store, domain.PaymentMethodCOD)

	require.NoError(t, svc.Delete(ctx, order.ID))

	_, err := svc.Get(ctx, order.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestStatusChangePublishesEvent(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(t)
	seedProduct(store, "p1", 100, true, 10, nil)
	order := placeTestOrder(t, svc, store, domain.PaymentMethodCOD)

	_, err := svc.RequestStatusChange(ctx, order.ID, domain.Change{Status: domain.StatusConfirmed})
	require.NoError(t, err)

	assert.Equal(t, []string{EventOrderPlaced, EventOrderStatusChanged}, pub.types())
}
