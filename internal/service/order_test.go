package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/ezpc-api/internal/dto"
	"github.com/flicky/ezpc-api/internal/model"
)

type mockOrderRepo struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]*model.Order
	carts      *mockCartRepo
	createErr  error
	lastScope  model.CartClearScope
	staleOnCAS bool
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (m *mockOrderRepo) add(o model.Order) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	m.orders[o.ID] = &o
	return o.ID
}

func (m *mockOrderRepo) Create(_ context.Context, order *model.Order, clear model.CartClearScope) error {
	m.mu.Lock()
	if m.createErr != nil {
		m.mu.Unlock()
		return m.createErr
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	cp.Items = append([]model.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &cp
	m.lastScope = clear
	m.mu.Unlock()

	if m.carts != nil {
		m.carts.clear(order.UserID, clear)
	}
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (m *mockOrderRepo) List(_ context.Context, f model.OrderFilter) ([]model.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []model.Order
	for _, o := range m.orders {
		if f.Status == "" || o.Status == f.Status {
			orders = append(orders, *o)
		}
	}
	return orders, len(orders), nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from || m.staleOnCAS {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *mockOrderRepo) HasDelivered(_ context.Context, userID, productID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID != userID || o.Status != model.OrderStatusDelivered {
			continue
		}
		if slices.ContainsFunc(o.Items, func(it model.OrderItem) bool { return it.ProductID == productID }) {
			return true, nil
		}
	}
	return false, nil
}

type mockIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]uuid.UUID
}

func newMockIdempotencyStore() *mockIdempotencyStore {
	return &mockIdempotencyStore{keys: make(map[string]uuid.UUID)}
}

func (m *mockIdempotencyStore) Reserve(_ context.Context, key string) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.keys[key]; ok {
		return id, false, nil
	}
	m.keys[key] = uuid.Nil
	return uuid.Nil, true, nil
}

func (m *mockIdempotencyStore) Complete(_ context.Context, key string, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = orderID
	return nil
}

func (m *mockIdempotencyStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []model.OrderEvent
}

func (m *mockPublisher) Publish(_ context.Context, event model.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func codInput(productID uuid.UUID) PlaceOrderInput {
	total := decimal.NewFromInt(20)
	return PlaceOrderInput{
		Items: []model.OrderItem{{ProductID: productID, Name: "P1", Price: decimal.NewFromInt(10), Quantity: 2}},
		ShippingAddress: &model.ShippingAddress{
			Recipient: "Juan Dela Cruz", Phone: "09171234567", Line1: "123 Rizal St", City: "Makati",
		},
		PaymentMethod: model.PaymentCOD,
		TotalAmount:   &total,
	}
}

func TestOrderService_PlaceOrder_SnapshotAndClearCart(t *testing.T) {
	products := newMockProductRepo()
	p1 := products.add(model.Product{Name: "P1", Price: decimal.NewFromInt(10)})
	p2 := products.add(model.Product{Name: "P2", Price: decimal.NewFromInt(99)})

	carts := newMockCartRepo()
	user := uuid.New()
	carts.items[user] = []model.CartEntry{{ProductID: p1, Quantity: 2}, {ProductID: p2, Quantity: 1}}

	orders := newMockOrderRepo()
	orders.carts = carts
	events := &mockPublisher{}
	svc := NewOrderService(orders, nil, events, CartClearAll, discardLogger())

	order, err := svc.PlaceOrder(context.Background(), userSession(user), codInput(p1))
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(20)))
	assert.Empty(t, carts.items[user], "whole cart is cleared")

	// Later price changes never reach the stored snapshot.
	stored := products.get(p1)
	stored.Price = decimal.NewFromInt(15)
	products.add(stored)

	got, err := svc.GetOrder(context.Background(), userSession(user), order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(decimal.NewFromInt(10)))

	require.Len(t, events.events, 1)
	assert.Equal(t, model.EventOrderPlaced, events.events[0].Type)
	assert.Equal(t, order.ID, events.events[0].OrderID)
}

func TestOrderService_PlaceOrder_ClearOrderedOnly(t *testing.T) {
	carts := newMockCartRepo()
	user, p1, p2 := uuid.New(), uuid.New(), uuid.New()
	carts.items[user] = []model.CartEntry{{ProductID: p1, Quantity: 2}, {ProductID: p2, Quantity: 1}}

	orders := newMockOrderRepo()
	orders.carts = carts
	svc := NewOrderService(orders, nil, nil, CartClearOrdered, discardLogger())

	_, err := svc.PlaceOrder(context.Background(), userSession(user), codInput(p1))
	require.NoError(t, err)

	assert.False(t, orders.lastScope.All)
	assert.Equal(t, []uuid.UUID{p1}, orders.lastScope.ProductIDs)
	_, found := carts.quantity(user, p1)
	assert.False(t, found)
	qty, found := carts.quantity(user, p2)
	assert.True(t, found)
	assert.Equal(t, 1, qty)
}

func TestOrderService_PlaceOrder_Validation(t *testing.T) {
	pid := uuid.New()
	negative := decimal.NewFromInt(-1)

	cases := map[string]func(in *PlaceOrderInput){
		"no items":             func(in *PlaceOrderInput) { in.Items = nil },
		"zero quantity":        func(in *PlaceOrderInput) { in.Items[0].Quantity = 0 },
		"negative price":       func(in *PlaceOrderInput) { in.Items[0].Price = negative },
		"missing product id":   func(in *PlaceOrderInput) { in.Items[0].ProductID = uuid.Nil },
		"no address":           func(in *PlaceOrderInput) { in.ShippingAddress = nil },
		"incomplete address":   func(in *PlaceOrderInput) { in.ShippingAddress.City = "" },
		"no payment method":    func(in *PlaceOrderInput) { in.PaymentMethod = "" },
		"unknown method":       func(in *PlaceOrderInput) { in.PaymentMethod = "gcash" },
		"cod with payload":     func(in *PlaceOrderInput) { in.PaymentResult = &model.PaymentResult{PayPal: &model.PayPalCapture{CaptureID: "x", Status: "COMPLETED"}} },
		"paypal no payload":    func(in *PlaceOrderInput) { in.PaymentMethod = model.PaymentPayPal },
		"paymongo wrong shape": func(in *PlaceOrderInput) { in.PaymentMethod = model.PaymentPayMongo; in.PaymentResult = &model.PaymentResult{PayPal: &model.PayPalCapture{CaptureID: "x", Status: "COMPLETED"}} },
		"no total":             func(in *PlaceOrderInput) { in.TotalAmount = nil },
		"negative total":       func(in *PlaceOrderInput) { in.TotalAmount = &negative },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			orders := newMockOrderRepo()
			svc := NewOrderService(orders, nil, nil, CartClearAll, discardLogger())
			in := codInput(pid)
			mutate(&in)

			_, err := svc.PlaceOrder(context.Background(), userSession(uuid.New()), in)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, orders.orders)
		})
	}
}

func TestOrderService_PlaceOrder_GatewayPayloads(t *testing.T) {
	svc := NewOrderService(newMockOrderRepo(), nil, nil, CartClearAll, discardLogger())

	in := codInput(uuid.New())
	in.PaymentMethod = model.PaymentPayPal
	in.PaymentResult = &model.PaymentResult{PayPal: &model.PayPalCapture{CaptureID: "8MC585209K746392H", Status: "COMPLETED"}}
	order, err := svc.PlaceOrder(context.Background(), userSession(uuid.New()), in)
	require.NoError(t, err)
	assert.Equal(t, "8MC585209K746392H", order.PaymentResult.PayPal.CaptureID)

	in = codInput(uuid.New())
	in.PaymentMethod = model.PaymentPayMongo
	in.PaymentResult = &model.PaymentResult{PayMongo: &model.PayMongoPayment{PaymentID: "pay_123", Status: "paid"}}
	_, err = svc.PlaceOrder(context.Background(), userSession(uuid.New()), in)
	require.NoError(t, err)
}

func TestOrderService_PlaceOrder_Unauthenticated(t *testing.T) {
	svc := NewOrderService(newMockOrderRepo(), nil, nil, CartClearAll, discardLogger())
	_, err := svc.PlaceOrder(context.Background(), model.Session{}, codInput(uuid.New()))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	expired := model.Session{UserID: uuid.New(), Role: model.RoleUser, ExpiresAt: time.Now().Add(-time.Minute)}
	_, err = svc.PlaceOrder(context.Background(), expired, codInput(uuid.New()))
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestOrderService_PlaceOrder_IdempotencyKey(t *testing.T) {
	orders := newMockOrderRepo()
	store := newMockIdempotencyStore()
	svc := NewOrderService(orders, store, nil, CartClearAll, discardLogger())
	user := uuid.New()

	in := codInput(uuid.New())
	in.IdempotencyKey = "checkout-1"

	first, err := svc.PlaceOrder(context.Background(), userSession(user), in)
	require.NoError(t, err)
	second, err := svc.PlaceOrder(context.Background(), userSession(user), in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, orders.orders, 1)

	// The same key from another user is a different request.
	_, err = svc.PlaceOrder(context.Background(), userSession(uuid.New()), in)
	require.NoError(t, err)
	assert.Len(t, orders.orders, 2)
}

func TestOrderService_PlaceOrder_InFlightDuplicate(t *testing.T) {
	store := newMockIdempotencyStore()
	user := uuid.New()
	store.keys[user.String()+":k"] = uuid.Nil
	svc := NewOrderService(newMockOrderRepo(), store, nil, CartClearAll, discardLogger())

	in := codInput(uuid.New())
	in.IdempotencyKey = "k"
	_, err := svc.PlaceOrder(context.Background(), userSession(user), in)
	assert.ErrorIs(t, err, ErrOrderInProgress)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestOrderService_PlaceOrder_FailureReleasesKey(t *testing.T) {
	orders := newMockOrderRepo()
	orders.createErr = errors.New("connection reset")
	store := newMockIdempotencyStore()
	svc := NewOrderService(orders, store, nil, CartClearAll, discardLogger())

	in := codInput(uuid.New())
	in.IdempotencyKey = "retry-me"
	_, err := svc.PlaceOrder(context.Background(), userSession(uuid.New()), in)
	require.Error(t, err)
	assert.Empty(t, store.keys)
}

func TestOrderService_GetOrder_Access(t *testing.T) {
	orders := newMockOrderRepo()
	owner := uuid.New()
	id := orders.add(model.Order{UserID: owner, Status: model.OrderStatusPending})
	svc := NewOrderService(orders, nil, nil, CartClearAll, discardLogger())
	ctx := context.Background()

	_, err := svc.GetOrder(ctx, userSession(owner), id)
	require.NoError(t, err)

	_, err = svc.GetOrder(ctx, adminSession(), id)
	require.NoError(t, err)

	_, err = svc.GetOrder(ctx, userSession(uuid.New()), id)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetOrder(ctx, userSession(owner), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_GetOrder_DeletedProductStillResolves(t *testing.T) {
	products := newMockProductRepo()
	pid := products.add(model.Product{Name: "GPU", Price: decimal.NewFromInt(10)})
	orders := newMockOrderRepo()
	user := uuid.New()
	svc := NewOrderService(orders, nil, nil, CartClearAll, discardLogger())
	productSvc := NewProductService(products, nil, discardLogger())

	order, err := svc.PlaceOrder(context.Background(), userSession(user), codInput(pid))
	require.NoError(t, err)
	require.NoError(t, productSvc.SoftDelete(context.Background(), adminSession(), pid))

	got, err := svc.GetOrder(context.Background(), userSession(user), order.ID)
	require.NoError(t, err)
	assert.Equal(t, pid, got.Items[0].ProductID)
}

func TestOrderService_UpdateStatus_Lifecycle(t *testing.T) {
	orders := newMockOrderRepo()
	id := orders.add(model.Order{UserID: uuid.New(), Status: model.OrderStatusPending})
	events := &mockPublisher{}
	svc := NewOrderService(orders, nil, events, CartClearAll, discardLogger())
	ctx := context.Background()

	for _, next := range []string{"processing", "shipped", "delivered"} {
		order, err := svc.UpdateStatus(ctx, adminSession(), id, next)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatus(next), order.Status)
	}
	require.Len(t, events.events, 3)
	assert.Equal(t, model.OrderStatusShipped, events.events[2].PreviousStatus)
	assert.Equal(t, model.EventOrderStatusChanged, events.events[2].Type)

	_, err := svc.UpdateStatus(ctx, adminSession(), id, "cancelled")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestOrderService_UpdateStatus_Rejections(t *testing.T) {
	orders := newMockOrderRepo()
	id := orders.add(model.Order{UserID: uuid.New(), Status: model.OrderStatusPending})
	svc := NewOrderService(orders, nil, nil, CartClearAll, discardLogger())
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, adminSession(), id, "refunded")
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = svc.UpdateStatus(ctx, adminSession(), id, "delivered")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.NotErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateStatus(ctx, userSession(uuid.New()), id, "processing")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateStatus(ctx, adminSession(), uuid.New(), "processing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	order, err := svc.UpdateStatus(ctx, adminSession(), id, "pending")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, order.Status)
}

func TestOrderService_UpdateStatus_ConcurrentChange(t *testing.T) {
	orders := newMockOrderRepo()
	orders.staleOnCAS = true
	id := orders.add(model.Order{UserID: uuid.New(), Status: model.OrderStatusPending})
	svc := NewOrderService(orders, nil, nil, CartClearAll, discardLogger())

	_, err := svc.UpdateStatus(context.Background(), adminSession(), id, "processing")
	assert.ErrorIs(t, err, ErrStatusChanged)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestOrderService_Cancel(t *testing.T) {
	orders := newMockOrderRepo()
	owner := uuid.New()
	pending := orders.add(model.Order{UserID: owner, Status: model.OrderStatusPending})
	shipped := orders.add(model.Order{UserID: owner, Status: model.OrderStatusShipped})
	svc := NewOrderService(orders, nil, nil, CartClearAll, discardLogger())
	ctx := context.Background()

	_, err := svc.Cancel(ctx, userSession(uuid.New()), pending)
	assert.ErrorIs(t, err, ErrForbidden)

	order, err := svc.Cancel(ctx, userSession(owner), pending)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)

	_, err = svc.Cancel(ctx, userSession(owner), shipped)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestOrderService_UpdateStatusFromTerminalState(t *testing.T) {
	orders := newMockOrderRepo()
	delivered := orders.add(model.Order{UserID: uuid.New(), Status: model.OrderStatusDelivered})
	cancelled := orders.add(model.Order{UserID: uuid.New(), Status: model.OrderStatusCancelled})
	svc := NewOrderService(orders, nil, nil, CartClearAll, discardLogger())
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, adminSession(), delivered, "cancelled")
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Contains(t, err.Error(), "already delivered")

	_, err = svc.UpdateStatus(ctx, adminSession(), cancelled, "pending")
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Contains(t, err.Error(), "already cancelled")

	order, err := svc.UpdateStatus(ctx, adminSession(), delivered, "delivered")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, order.Status)
}

func TestOrderService_ListAll(t *testing.T) {
	orders := newMockOrderRepo()
	orders.add(model.Order{UserID: uuid.New(), Status: model.OrderStatusPending})
	orders.add(model.Order{UserID: uuid.New(), Status: model.OrderStatusDelivered})
	svc := NewOrderService(orders, nil, nil, CartClearAll, discardLogger())
	ctx := context.Background()

	list, total, err := svc.ListAll(ctx, adminSession(), dto.ListOrdersRequest{Page: 1, Limit: 20, Status: "delivered"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	_, _, err = svc.ListAll(ctx, adminSession(), dto.ListOrdersRequest{Status: "lost"})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.ListAll(ctx, userSession(uuid.New()), dto.ListOrdersRequest{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOrderService_ListMine(t *testing.T) {
	orders := newMockOrderRepo()
	me := uuid.New()
	orders.add(model.Order{UserID: me, Status: model.OrderStatusPending})
	orders.add(model.Order{UserID: uuid.New(), Status: model.OrderStatusPending})
	svc := NewOrderService(orders, nil, nil, CartClearAll, discardLogger())

	list, err := svc.ListMine(context.Background(), userSession(me))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
