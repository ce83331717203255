package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentPayPal   PaymentMethod = "paypal"
	PaymentCOD      PaymentMethod = "cod"
	PaymentPayMongo PaymentMethod = "paymongo"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPayPal, PaymentCOD, PaymentPayMongo:
		return true
	}
	return false
}

// PaymentResult carries the gateway payload for the order's payment method.
// At most one member is set, and it must match the method.
type PaymentResult struct {
	PayPal   *PayPalCapture   `json:"paypal,omitempty"`
	PayMongo *PayMongoPayment `json:"paymongo,omitempty"`
}

type PayPalCapture struct {
	CaptureID  string `json:"capture_id"`
	Status     string `json:"status"`
	PayerID    string `json:"payer_id,omitempty"`
	PayerEmail string `json:"payer_email,omitempty"`
}

type PayMongoPayment struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Source    string `json:"source,omitempty"`
}

var (
	errPaymentPayloadMismatch = errors.New("payment result does not match payment method")
	errPaymentPayloadMissing  = errors.New("payment result is required for this payment method")
)

// CheckPayload reports whether res is an acceptable payload for m. Cash on
// delivery takes no payload; gateway methods need their identifier and status.
func (m PaymentMethod) CheckPayload(res *PaymentResult) error {
	switch m {
	case PaymentCOD:
		if res != nil && (res.PayPal != nil || res.PayMongo != nil) {
			return errPaymentPayloadMismatch
		}
	case PaymentPayPal:
		if res == nil || res.PayPal == nil {
			return errPaymentPayloadMissing
		}
		if res.PayMongo != nil {
			return errPaymentPayloadMismatch
		}
		if res.PayPal.CaptureID == "" || res.PayPal.Status == "" {
			return errors.New("paypal capture id and status are required")
		}
	case PaymentPayMongo:
		if res == nil || res.PayMongo == nil {
			return errPaymentPayloadMissing
		}
		if res.PayPal != nil {
			return errPaymentPayloadMismatch
		}
		if res.PayMongo.PaymentID == "" || res.PayMongo.Status == "" {
			return errors.New("paymongo payment id and status are required")
		}
	default:
		return errors.New("unknown payment method")
	}
	return nil
}

type ShippingAddress struct {
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
}

func (a ShippingAddress) Complete() bool {
	return a.Recipient != "" && a.Line1 != "" && a.City != ""
}

type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Items           []OrderItem
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	PaymentResult   *PaymentResult
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is a point-in-time copy of the product line; later product edits
// never touch it.
type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

// CartClearScope says which cart entries an order placement removes.
type CartClearScope struct {
	All        bool
	ProductIDs []uuid.UUID
}

type OrderFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

type OrderEvent struct {
	ID             uuid.UUID   `json:"id"`
	Type           string      `json:"type"`
	OrderID        uuid.UUID   `json:"order_id"`
	UserID         uuid.UUID   `json:"user_id"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	Status         OrderStatus `json:"status"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
