package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/flicky/ezpc-api/internal/metrics"
	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/repository"
)

// ProductCache drops cached product reads after the rating changes.
type ProductCache interface {
	InvalidateCache(ctx context.Context, id uuid.UUID)
}

type ReviewService struct {
	reviewRepo  repository.ReviewRepository
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	cache       ProductCache
	logger      *slog.Logger
}

func NewReviewService(
	reviewRepo repository.ReviewRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	cache ProductCache,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviewRepo:  reviewRepo,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		cache:       cache,
		logger:      logger,
	}
}

// CheckEligibility reports whether the user may review the product: no prior
// review and at least one delivered order containing it.
func (s *ReviewService) CheckEligibility(ctx context.Context, userID, productID uuid.UUID) (model.Eligibility, error) {
	reviewed, err := s.reviewRepo.Exists(ctx, userID, productID)
	if err != nil {
		return model.Eligibility{}, fmt.Errorf("check review: %w", err)
	}
	if reviewed {
		return model.Eligibility{Reason: model.ReasonAlreadyReviewed}, nil
	}

	delivered, err := s.orderRepo.HasDelivered(ctx, userID, productID)
	if err != nil {
		return model.Eligibility{}, fmt.Errorf("check delivered orders: %w", err)
	}
	if !delivered {
		return model.Eligibility{Reason: model.ReasonNotDelivered}, nil
	}
	return model.Eligibility{CanReview: true}, nil
}

// SubmitReview re-checks eligibility, stores the review and refreshes the
// product rating. A review that slips past the check concurrently is still
// rejected by the storage uniqueness constraint.
func (s *ReviewService) SubmitReview(ctx context.Context, session model.Session, productID uuid.UUID, rating int, comment string) (*model.Review, error) {
	if err := authenticate(session); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if rating < 1 || rating > 5 {
		return nil, validationError("rating must be between 1 and 5")
	}
	if comment == "" {
		return nil, validationError("comment is required")
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil || product.Deleted() {
		return nil, ErrProductNotFound
	}

	eligibility, err := s.CheckEligibility(ctx, session.UserID, productID)
	if err != nil {
		return nil, err
	}
	switch eligibility.Reason {
	case model.ReasonAlreadyReviewed:
		return nil, ErrAlreadyReviewed
	case model.ReasonNotDelivered:
		return nil, ErrNotDelivered
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	review := &model.Review{
		ProductID: productID,
		UserID:    session.UserID,
		UserName:  user.Name,
		Rating:    rating,
		Comment:   comment,
	}
	summary, err := s.reviewRepo.Create(ctx, review)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrAlreadyReviewed
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	if s.cache != nil {
		s.cache.InvalidateCache(ctx, productID)
	}
	metrics.ReviewsSubmitted.Inc()
	s.logger.Info("review submitted",
		"product_id", productID, "user_id", session.UserID,
		"rating", summary.Rating.String(), "review_count", summary.Count)
	return review, nil
}

// ListReviews returns the reviews of an active product, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, productID uuid.UUID) ([]model.Review, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil || product.Deleted() {
		return nil, ErrProductNotFound
	}
	reviews, err := s.reviewRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
