package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Review struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	UserID    uuid.UUID
	UserName  string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	ReasonAlreadyReviewed = "already_reviewed"
	ReasonNotDelivered    = "not_delivered"
)

type Eligibility struct {
	CanReview bool
	Reason    string
}

// RatingSummary is the aggregate a product carries for its reviews.
type RatingSummary struct {
	Rating decimal.Decimal
	Count  int
}
