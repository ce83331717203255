package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Password  string
	Role      Role
	Addresses []Address
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Address is a saved shipping address. Orders copy it into ShippingAddress
// instead of referencing it.
type Address struct {
	ID         uuid.UUID `json:"id"`
	Label      string    `json:"label,omitempty"`
	Recipient  string    `json:"recipient"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	Province   string    `json:"province"`
	PostalCode string    `json:"postal_code"`
	IsDefault  bool      `json:"is_default"`
}

// Session is what the auth collaborator hands to every operation.
type Session struct {
	UserID    uuid.UUID
	Role      Role
	ExpiresAt time.Time
}

func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type CartEntry struct {
	ProductID uuid.UUID
	Quantity  int
}

// CartLine is a cart entry joined with live product data. Product is nil when
// the product is missing or soft-deleted.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
	Product   *Product
}

type WishlistLine struct {
	ProductID uuid.UUID
	Product   *Product
}

type Settings struct {
	StoreName             string
	ContactEmail          string
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	MaintenanceMode       bool
	Announcement          string
	UpdatedAt             time.Time
}

func DefaultSettings() Settings {
	return Settings{
		StoreName:             "EZPC_",
		ShippingFee:           decimal.NewFromInt(150),
		FreeShippingThreshold: decimal.NewFromInt(5000),
	}
}
