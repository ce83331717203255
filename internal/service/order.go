package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/ezpc-api/internal/dto"
	"github.com/flicky/ezpc-api/internal/metrics"
	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/repository"
)

// CartClearMode selects which cart entries a placed order removes.
type CartClearMode string

const (
	CartClearAll     CartClearMode = "all"
	CartClearOrdered CartClearMode = "ordered"
)

// IdempotencyStore remembers which order an idempotency key produced.
type IdempotencyStore interface {
	// Reserve claims key. When the key is already taken it returns reserved
	// false and, once the first request finished, the ID of its order.
	Reserve(ctx context.Context, key string) (orderID uuid.UUID, reserved bool, err error)
	Complete(ctx context.Context, key string, orderID uuid.UUID) error
	Release(ctx context.Context, key string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.OrderEvent) error
}

type PlaceOrderInput struct {
	Items           []model.OrderItem
	ShippingAddress *model.ShippingAddress
	PaymentMethod   model.PaymentMethod
	PaymentResult   *model.PaymentResult
	TotalAmount     *decimal.Decimal
	IdempotencyKey  string
}

type OrderService struct {
	orderRepo   repository.OrderRepository
	idempotency IdempotencyStore
	events      EventPublisher
	cartClear   CartClearMode
	logger      *slog.Logger
}

// NewOrderService builds the service. idempotency and events may be nil, which
// disables idempotency keys and event publishing.
func NewOrderService(orderRepo repository.OrderRepository, idempotency IdempotencyStore, events EventPublisher, cartClear CartClearMode, logger *slog.Logger) *OrderService {
	if cartClear == "" {
		cartClear = CartClearAll
	}
	return &OrderService{
		orderRepo:   orderRepo,
		idempotency: idempotency,
		events:      events,
		cartClear:   cartClear,
		logger:      logger,
	}
}

// PlaceOrder stores the caller's snapshot as a pending order and clears the
// cart in the same storage operation. Prices and stock are taken as given.
func (s *OrderService) PlaceOrder(ctx context.Context, session model.Session, in PlaceOrderInput) (*model.Order, error) {
	if err := authenticate(session); err != nil {
		return nil, err
	}
	if err := validateOrderInput(in); err != nil {
		return nil, err
	}

	var key string
	if in.IdempotencyKey != "" && s.idempotency != nil {
		key = session.UserID.String() + ":" + in.IdempotencyKey
		existingID, reserved, err := s.idempotency.Reserve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: reserve idempotency key: %w", ErrUpstream, err)
		}
		if !reserved {
			if existingID == uuid.Nil {
				return nil, ErrOrderInProgress
			}
			return s.GetOrder(ctx, session, existingID)
		}
	}

	order := &model.Order{
		UserID:          session.UserID,
		Items:           append([]model.OrderItem(nil), in.Items...),
		ShippingAddress: *in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentResult:   in.PaymentResult,
		TotalAmount:     *in.TotalAmount,
		Status:          model.OrderStatusPending,
	}

	if err := s.orderRepo.Create(ctx, order, s.clearScope(order)); err != nil {
		if key != "" {
			if rerr := s.idempotency.Release(ctx, key); rerr != nil {
				s.logger.Warn("release idempotency key", "key", key, "error", rerr)
			}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	if key != "" {
		if err := s.idempotency.Complete(ctx, key, order.ID); err != nil {
			s.logger.Warn("complete idempotency key", "key", key, "order_id", order.ID, "error", err)
		}
	}

	metrics.OrdersPlaced.WithLabelValues(string(order.PaymentMethod)).Inc()
	s.logger.Info("order placed", "order_id", order.ID, "user_id", order.UserID, "total", order.TotalAmount.String())
	s.publish(ctx, model.EventOrderPlaced, order, "")
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, session model.Session, id uuid.UUID) (*model.Order, error) {
	if err := authenticate(session); err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !canAccess(session, order.UserID) {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

func (s *OrderService) ListMine(ctx context.Context, session model.Session) ([]model.Order, error) {
	if err := authenticate(session); err != nil {
		return nil, err
	}
	orders, err := s.orderRepo.ListByUserID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) ListAll(ctx context.Context, session model.Session, req dto.ListOrdersRequest) ([]model.Order, int, error) {
	if err := requireAdmin(session); err != nil {
		return nil, 0, err
	}
	status := model.OrderStatus(req.Status)
	if status != "" && !status.Valid() {
		return nil, 0, validationError("unknown order status %q", req.Status)
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = 20
	}

	orders, total, err := s.orderRepo.List(ctx, model.OrderFilter{
		Status: status,
		Limit:  req.Limit,
		Offset: (req.Page - 1) * req.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus moves an order along the status machine. Requesting the
// current status is a no-op.
func (s *OrderService) UpdateStatus(ctx context.Context, session model.Session, id uuid.UUID, target string) (*model.Order, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	next := model.OrderStatus(target)
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %w: unknown order status %q", ErrValidation, ErrInvalidStateTransition, target)
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == next {
		return order, nil
	}
	return s.transition(ctx, order, next)
}

// Cancel lets the owner withdraw an order that has not been picked up yet.
func (s *OrderService) Cancel(ctx context.Context, session model.Session, id uuid.UUID) (*model.Order, error) {
	order, err := s.GetOrder(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: only pending orders can be cancelled, order is %s", ErrInvalidStateTransition, order.Status)
	}
	return s.transition(ctx, order, model.OrderStatusCancelled)
}

func (s *OrderService) transition(ctx context.Context, order *model.Order, next model.OrderStatus) (*model.Order, error) {
	prev := order.Status
	if prev.Terminal() {
		return nil, fmt.Errorf("%w: order is already %s", ErrInvalidStateTransition, prev)
	}
	if !prev.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStateTransition, prev, next)
	}

	ok, err := s.orderRepo.UpdateStatus(ctx, order.ID, prev, next)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if !ok {
		return nil, ErrStatusChanged
	}

	order.Status = next
	order.UpdatedAt = time.Now().UTC()
	metrics.OrderStatusChanges.WithLabelValues(string(next)).Inc()
	s.logger.Info("order status changed", "order_id", order.ID, "from", prev, "to", next)
	s.publish(ctx, model.EventOrderStatusChanged, order, prev)
	return order, nil
}

func (s *OrderService) clearScope(order *model.Order) model.CartClearScope {
	if s.cartClear == CartClearAll {
		return model.CartClearScope{All: true}
	}
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	return model.CartClearScope{ProductIDs: ids}
}

// publish is best effort: the order is already committed.
func (s *OrderService) publish(ctx context.Context, eventType string, order *model.Order, prev model.OrderStatus) {
	if s.events == nil {
		return
	}
	event := model.OrderEvent{
		ID:             uuid.New(),
		Type:           eventType,
		OrderID:        order.ID,
		UserID:         order.UserID,
		PreviousStatus: prev,
		Status:         order.Status,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("publish order event", "type", eventType, "order_id", order.ID, "error", err)
	}
}

func validateOrderInput(in PlaceOrderInput) error {
	if len(in.Items) == 0 {
		return validationError("items are required")
	}
	for i, item := range in.Items {
		switch {
		case item.ProductID == uuid.Nil:
			return validationError("item %d: product id is required", i)
		case item.Quantity < 1:
			return validationError("item %d: quantity must be at least 1", i)
		case item.Price.IsNegative():
			return validationError("item %d: price must not be negative", i)
		}
	}
	if in.ShippingAddress == nil {
		return validationError("shipping address is required")
	}
	if !in.ShippingAddress.Complete() {
		return validationError("shipping address needs recipient, line1 and city")
	}
	if in.PaymentMethod == "" {
		return validationError("payment method is required")
	}
	if !in.PaymentMethod.Valid() {
		return validationError("unknown payment method %q", in.PaymentMethod)
	}
	if err := in.PaymentMethod.CheckPayload(in.PaymentResult); err != nil {
		return validationError("%v", err)
	}
	if in.TotalAmount == nil {
		return validationError("total amount is required")
	}
	if in.TotalAmount.IsNegative() {
		return validationError("total amount must not be negative")
	}
	return nil
}
