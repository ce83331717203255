package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/ezpc-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type UserResponse struct {
	ID    uuid.UUID  `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// --- Product ---

type CreateProductRequest struct {
	Name      string            `json:"name" binding:"required"`
	Category  string            `json:"category" binding:"required"`
	Brand     string            `json:"brand"`
	Price     decimal.Decimal   `json:"price"`
	SalePrice *decimal.Decimal  `json:"sale_price"`
	Stock     int               `json:"stock" binding:"min=0"`
	Badge     string            `json:"badge" binding:"omitempty,oneof=none sale hot featured"`
	Images    []string          `json:"images"`
	Specs     string            `json:"specs"`
	FullSpecs []model.SpecEntry `json:"full_specs"`
}

// UpdateProductRequest merges into the stored product: nil fields are kept.
// ClearSalePrice removes the sale price, since a null sale_price cannot be
// told apart from an omitted one.
type UpdateProductRequest struct {
	Name           *string            `json:"name"`
	Category       *string            `json:"category"`
	Brand          *string            `json:"brand"`
	Price          *decimal.Decimal   `json:"price"`
	SalePrice      *decimal.Decimal   `json:"sale_price"`
	ClearSalePrice bool               `json:"clear_sale_price"`
	Stock          *int               `json:"stock"`
	Badge          *string            `json:"badge"`
	Images         *[]string          `json:"images"`
	Specs          *string            `json:"specs"`
	FullSpecs      *[]model.SpecEntry `json:"full_specs"`
}

type ListProductsRequest struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	Limit    int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search   string `form:"search"`
	Category string `form:"category"`
	Brand    string `form:"brand"`
	Badge    string `form:"badge" binding:"omitempty,oneof=none sale hot featured"`
	MinPrice string `form:"min_price"`
	MaxPrice string `form:"max_price"`
	InStock  bool   `form:"in_stock"`
	Sort     string `form:"sort,default=created_at" binding:"oneof=name price rating created_at"`
	Order    string `form:"order,default=desc" binding:"oneof=asc desc"`
	// IncludeDeleted is honoured on the admin listing only.
	IncludeDeleted bool `form:"include_deleted"`
}

type ProductResponse struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Category       string            `json:"category"`
	Brand          string            `json:"brand"`
	Price          decimal.Decimal   `json:"price"`
	SalePrice      *decimal.Decimal  `json:"sale_price,omitempty"`
	EffectivePrice decimal.Decimal   `json:"effective_price"`
	Stock          int               `json:"stock"`
	InStock        bool              `json:"in_stock"`
	Badge          model.Badge       `json:"badge"`
	Rating         decimal.Decimal   `json:"rating"`
	ReviewCount    int               `json:"review_count"`
	Images         []string          `json:"images"`
	Specs          string            `json:"specs"`
	FullSpecs      []model.SpecEntry `json:"full_specs"`
	DeletedAt      *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func NewProductResponse(p *model.Product) ProductResponse {
	return ProductResponse{
		ID:             p.ID,
		Name:           p.Name,
		Category:       p.Category,
		Brand:          p.Brand,
		Price:          p.Price,
		SalePrice:      p.SalePrice,
		EffectivePrice: p.EffectivePrice(),
		Stock:          p.Stock,
		InStock:        p.Stock > 0,
		Badge:          p.Badge,
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
		Images:         p.Images,
		Specs:          p.Specs,
		FullSpecs:      p.FullSpecs,
		DeletedAt:      p.DeletedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	// Quantity is a delta; negative values decrement down to 1 and 0 is a
	// no-op.
	Quantity int `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type CartResponse struct {
	Items    []CartLineResponse `json:"items"`
	Subtotal decimal.Decimal    `json:"subtotal"`
}

// CartLineResponse carries a nil Product when the product was removed from
// the catalog; such lines are kept so the client can show and drop them.
type CartLineResponse struct {
	ProductID uuid.UUID        `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Available bool             `json:"available"`
	Product   *ProductResponse `json:"product"`
}

func NewCartResponse(lines []model.CartLine) CartResponse {
	resp := CartResponse{Items: make([]CartLineResponse, 0, len(lines)), Subtotal: decimal.Zero}
	for _, l := range lines {
		line := CartLineResponse{ProductID: l.ProductID, Quantity: l.Quantity}
		if l.Product != nil {
			p := NewProductResponse(l.Product)
			line.Product = &p
			line.Available = true
			resp.Subtotal = resp.Subtotal.Add(l.Product.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		resp.Items = append(resp.Items, line)
	}
	return resp
}

// --- Wishlist ---

type ToggleWishlistResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Added     bool      `json:"added"`
}

type WishlistLineResponse struct {
	ProductID uuid.UUID        `json:"product_id"`
	Available bool             `json:"available"`
	Product   *ProductResponse `json:"product"`
}

func NewWishlistResponse(lines []model.WishlistLine) []WishlistLineResponse {
	resp := make([]WishlistLineResponse, 0, len(lines))
	for _, l := range lines {
		line := WishlistLineResponse{ProductID: l.ProductID}
		if l.Product != nil {
			p := NewProductResponse(l.Product)
			line.Product = &p
			line.Available = true
		}
		resp = append(resp, line)
	}
	return resp
}

// --- Address ---

type AddressRequest struct {
	Label      string `json:"label"`
	Recipient  string `json:"recipient" binding:"required"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	IsDefault  bool   `json:"is_default"`
}

func (r AddressRequest) Address() model.Address {
	return model.Address{
		Label:      r.Label,
		Recipient:  r.Recipient,
		Phone:      r.Phone,
		Line1:      r.Line1,
		Line2:      r.Line2,
		City:       r.City,
		Province:   r.Province,
		PostalCode: r.PostalCode,
		IsDefault:  r.IsDefault,
	}
}

// --- Order ---

type PlaceOrderRequest struct {
	Items           []OrderItemRequest     `json:"items"`
	ShippingAddress *model.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	PaymentResult   *model.PaymentResult   `json:"payment_result"`
	TotalAmount     *decimal.Decimal       `json:"total_amount"`
}

type OrderItemRequest struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ListOrdersRequest struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
	Status string `form:"status"`
}

type OrderResponse struct {
	ID              uuid.UUID             `json:"id"`
	UserID          uuid.UUID             `json:"user_id"`
	Status          model.OrderStatus     `json:"status"`
	Items           []model.OrderItem     `json:"items"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	PaymentMethod   model.PaymentMethod   `json:"payment_method"`
	PaymentResult   *model.PaymentResult  `json:"payment_result,omitempty"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func NewOrderResponse(o *model.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		PaymentResult:   o.PaymentResult,
		TotalAmount:     o.TotalAmount,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func NewOrderResponses(orders []model.Order) []OrderResponse {
	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, NewOrderResponse(&orders[i]))
	}
	return resp
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// --- Review ---

type SubmitReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type ReviewResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func NewReviewResponse(r *model.Review) ReviewResponse {
	return ReviewResponse{
		ID:        r.ID,
		ProductID: r.ProductID,
		UserID:    r.UserID,
		UserName:  r.UserName,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

type EligibilityResponse struct {
	CanReview bool   `json:"can_review"`
	Reason    string `json:"reason,omitempty"`
}

// --- Settings ---

type SettingsRequest struct {
	StoreName             string          `json:"store_name" binding:"required"`
	ContactEmail          string          `json:"contact_email" binding:"omitempty,email"`
	ShippingFee           decimal.Decimal `json:"shipping_fee"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	MaintenanceMode       bool            `json:"maintenance_mode"`
	Announcement          string          `json:"announcement"`
}

type SettingsResponse struct {
	StoreName             string          `json:"store_name"`
	ContactEmail          string          `json:"contact_email"`
	ShippingFee           decimal.Decimal `json:"shipping_fee"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	MaintenanceMode       bool            `json:"maintenance_mode"`
	Announcement          string          `json:"announcement"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func NewSettingsResponse(s *model.Settings) SettingsResponse {
	return SettingsResponse{
		StoreName:             s.StoreName,
		ContactEmail:          s.ContactEmail,
		ShippingFee:           s.ShippingFee,
		FreeShippingThreshold: s.FreeShippingThreshold,
		MaintenanceMode:       s.MaintenanceMode,
		Announcement:          s.Announcement,
		UpdatedAt:             s.UpdatedAt,
	}
}

// --- Uploads ---

type ImageUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

type ImageUploadResponse struct {
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
