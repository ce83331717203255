package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flicky/ezpc-api/internal/metrics"
	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/repository"
)

type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo}
}

// Read returns the cart joined with live product data. Entries whose product
// is missing or soft-deleted are kept with a nil Product.
func (s *CartService) Read(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error) {
	entries, err := s.cartRepo.Items(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	if len(entries) == 0 {
		return []model.CartLine{}, nil
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProductID)
	}
	products, err := activeProducts(ctx, s.productRepo, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]model.CartLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, model.CartLine{ProductID: e.ProductID, Quantity: e.Quantity, Product: products[e.ProductID]})
	}
	return lines, nil
}

// AddOrIncrement adds delta to the entry for productID. Quantities never drop
// below 1, and a missing entry is only created for a positive delta. It
// returns the stored quantity, or 0 when nothing is stored.
func (s *CartService) AddOrIncrement(ctx context.Context, userID, productID uuid.UUID, delta int) (int, error) {
	if delta > 0 {
		product, err := s.productRepo.GetByID(ctx, productID)
		if err != nil {
			return 0, fmt.Errorf("get product: %w", err)
		}
		if product == nil || product.Deleted() {
			return 0, ErrProductNotFound
		}
	}

	qty, err := s.cartRepo.Increment(ctx, userID, productID, delta)
	if err != nil {
		return 0, fmt.Errorf("increment cart item: %w", err)
	}
	metrics.CartMutations.WithLabelValues("increment").Inc()
	return qty, nil
}

// SetQuantity overwrites the quantity of an existing entry. A missing entry
// is left alone.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return validationError("quantity must be at least 1")
	}
	if _, err := s.cartRepo.SetQuantity(ctx, userID, productID, quantity); err != nil {
		return fmt.Errorf("set cart quantity: %w", err)
	}
	metrics.CartMutations.WithLabelValues("set").Inc()
	return nil
}

func (s *CartService) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	if err := s.cartRepo.Remove(ctx, userID, productID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	metrics.CartMutations.WithLabelValues("remove").Inc()
	return nil
}

func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.cartRepo.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	metrics.CartMutations.WithLabelValues("clear").Inc()
	return nil
}

// activeProducts loads ids and keeps only products that are not soft-deleted.
func activeProducts(ctx context.Context, repo repository.ProductRepository, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error) {
	products, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[uuid.UUID]*model.Product, len(products))
	for i := range products {
		if !products[i].Deleted() {
			byID[products[i].ID] = &products[i]
		}
	}
	return byID, nil
}
