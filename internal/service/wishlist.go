package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/flicky/ezpc-api/internal/metrics"
	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/repository"
)

type WishlistService struct {
	wishlistRepo repository.WishlistRepository
	productRepo  repository.ProductRepository
}

func NewWishlistService(wishlistRepo repository.WishlistRepository, productRepo repository.ProductRepository) *WishlistService {
	return &WishlistService{wishlistRepo: wishlistRepo, productRepo: productRepo}
}

// Toggle flips productID in the user's wishlist and reports whether it is now
// present. Only live catalog products can be added; removal always succeeds.
func (s *WishlistService) Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	ids, err := s.wishlistRepo.List(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list wishlist: %w", err)
	}
	if !slices.Contains(ids, productID) {
		product, err := s.productRepo.GetByID(ctx, productID)
		if err != nil {
			return false, fmt.Errorf("get product: %w", err)
		}
		if product == nil || product.Deleted() {
			return false, ErrProductNotFound
		}
	}

	added, err := s.wishlistRepo.Toggle(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("toggle wishlist: %w", err)
	}

	outcome := "removed"
	if added {
		outcome = "added"
	}
	metrics.WishlistToggles.WithLabelValues(outcome).Inc()
	return added, nil
}

func (s *WishlistService) List(ctx context.Context, userID uuid.UUID) ([]model.WishlistLine, error) {
	ids, err := s.wishlistRepo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	if len(ids) == 0 {
		return []model.WishlistLine{}, nil
	}

	products, err := activeProducts(ctx, s.productRepo, ids)
	if err != nil {
		return nil, err
	}
	lines := make([]model.WishlistLine, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, model.WishlistLine{ProductID: id, Product: products[id]})
	}
	return lines, nil
}
