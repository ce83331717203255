package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/flicky/ezpc-api/internal/dto"
	"github.com/flicky/ezpc-api/internal/metrics"
	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/repository"
)

const productCacheTTL = 60 * time.Second

type ProductService struct {
	productRepo repository.ProductRepository
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewProductService(productRepo repository.ProductRepository, redisClient *redis.Client, logger *slog.Logger) *ProductService {
	return &ProductService{productRepo: productRepo, redisClient: redisClient, logger: logger}
}

// Get returns an active product. Soft-deleted products are reported as not
// found; only active products are cached.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := productCacheKey(id)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				metrics.ProductCache.WithLabelValues("hit").Inc()
				return &resp, nil
			}
		}
		metrics.ProductCache.WithLabelValues("miss").Inc()
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil || product.Deleted() {
		return nil, ErrProductNotFound
	}

	resp := dto.NewProductResponse(product)

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := s.redisClient.Set(ctx, cacheKey, data, productCacheTTL).Err(); err != nil {
				s.logger.Warn("cache product", "product_id", id, "error", err)
			}
		}
	}

	return &resp, nil
}

// GetAny returns the product even when it is soft-deleted.
func (s *ProductService) GetAny(ctx context.Context, session model.Session, id uuid.UUID) (*dto.ProductResponse, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	resp := dto.NewProductResponse(product)
	return &resp, nil
}

func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	req.IncludeDeleted = false
	return s.list(ctx, req)
}

// AdminList lists the catalog and includes soft-deleted products on request.
func (s *ProductService) AdminList(ctx context.Context, session model.Session, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	return s.list(ctx, req)
}

func (s *ProductService) list(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	filter, err := productFilter(req)
	if err != nil {
		return nil, err
	}

	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, dto.NewProductResponse(&products[i]))
	}

	return &dto.ProductListResponse{Products: items, Total: total, Page: req.Page, Limit: req.Limit}, nil
}

func (s *ProductService) AdminCreate(ctx context.Context, session model.Session, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:      req.Name,
		Category:  req.Category,
		Brand:     req.Brand,
		Price:     req.Price,
		SalePrice: req.SalePrice,
		Stock:     req.Stock,
		Badge:     model.Badge(req.Badge),
		Images:    req.Images,
		Specs:     req.Specs,
		FullSpecs: req.FullSpecs,
	}
	if product.Badge == "" {
		product.Badge = model.BadgeNone
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	resp := dto.NewProductResponse(product)
	return &resp, nil
}

// AdminUpdate merges the set fields of req into the product. Rating and
// review count are not writable here.
func (s *ProductService) AdminUpdate(ctx context.Context, session model.Session, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Brand != nil {
		product.Brand = *req.Brand
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.SalePrice != nil {
		product.SalePrice = req.SalePrice
	}
	if req.ClearSalePrice {
		product.SalePrice = nil
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Badge != nil {
		product.Badge = model.Badge(*req.Badge)
	}
	if req.Images != nil {
		product.Images = *req.Images
	}
	if req.Specs != nil {
		product.Specs = *req.Specs
	}
	if req.FullSpecs != nil {
		product.FullSpecs = *req.FullSpecs
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.InvalidateCache(ctx, id)
	resp := dto.NewProductResponse(product)
	return &resp, nil
}

func (s *ProductService) SoftDelete(ctx context.Context, session model.Session, id uuid.UUID) error {
	if err := requireAdmin(session); err != nil {
		return err
	}
	if err := s.productRepo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.InvalidateCache(ctx, id)
	return nil
}

func (s *ProductService) Restore(ctx context.Context, session model.Session, id uuid.UUID) (*dto.ProductResponse, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if err := s.productRepo.Restore(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("restore product: %w", err)
	}
	s.InvalidateCache(ctx, id)

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	resp := dto.NewProductResponse(product)
	return &resp, nil
}

func (s *ProductService) InvalidateCache(ctx context.Context, id uuid.UUID) {
	if s.redisClient != nil {
		if err := s.redisClient.Del(ctx, productCacheKey(id)).Err(); err != nil {
			s.logger.Warn("invalidate product cache", "product_id", id, "error", err)
		}
	}
}

func productCacheKey(id uuid.UUID) string {
	return "product:" + id.String()
}

func productFilter(req dto.ListProductsRequest) (model.ProductFilter, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = 20
	}
	filter := model.ProductFilter{
		Search:         req.Search,
		Category:       req.Category,
		Brand:          req.Brand,
		Badge:          model.Badge(req.Badge),
		InStockOnly:    req.InStock,
		IncludeDeleted: req.IncludeDeleted,
		Sort:           req.Sort,
		Order:          req.Order,
		Limit:          req.Limit,
		Offset:         (req.Page - 1) * req.Limit,
	}
	if req.MinPrice != "" {
		d, err := decimal.NewFromString(req.MinPrice)
		if err != nil {
			return filter, validationError("min_price is not a number")
		}
		filter.MinPrice = &d
	}
	if req.MaxPrice != "" {
		d, err := decimal.NewFromString(req.MaxPrice)
		if err != nil {
			return filter, validationError("max_price is not a number")
		}
		filter.MaxPrice = &d
	}
	return filter, nil
}

func validateProduct(p *model.Product) error {
	switch {
	case p.Name == "":
		return validationError("name is required")
	case p.Price.IsNegative():
		return validationError("price must not be negative")
	case p.SalePrice != nil && p.SalePrice.IsNegative():
		return validationError("sale price must not be negative")
	case p.Stock < 0:
		return validationError("stock must not be negative")
	case !p.Badge.Valid():
		return validationError("unknown badge %q", p.Badge)
	}
	return nil
}
