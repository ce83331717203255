package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Badge string

const (
	BadgeNone     Badge = "none"
	BadgeSale     Badge = "sale"
	BadgeHot      Badge = "hot"
	BadgeFeatured Badge = "featured"
)

func (b Badge) Valid() bool {
	switch b {
	case BadgeNone, BadgeSale, BadgeHot, BadgeFeatured:
		return true
	}
	return false
}

type SpecEntry struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Category    string
	Brand       string
	Price       decimal.Decimal
	SalePrice   *decimal.Decimal
	Stock       int
	Badge       Badge
	Rating      decimal.Decimal
	ReviewCount int
	Images      []string
	Specs       string
	FullSpecs   []SpecEntry
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Product) Deleted() bool { return p.DeletedAt != nil }

// EffectivePrice is the sale price when one is set, otherwise the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

type ProductFilter struct {
	Search         string
	Category       string
	Brand          string
	Badge          Badge
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	InStockOnly    bool
	IncludeDeleted bool
	Sort           string
	Order          string
	Limit          int
	Offset         int
}

// AverageRating is the mean of count ratings summing to sum, rounded half
// away from zero to one decimal place.
func AverageRating(sum int64, count int) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(count))).Round(1)
}
