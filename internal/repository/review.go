package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/ezpc-api/internal/model"
)

type ReviewRepository interface {
	// Create stores the review and recomputes the product's rating and review
	// count from every review of that product. A second review for the same
	// product and user fails with ErrDuplicate.
	Create(ctx context.Context, review *model.Review) (model.RatingSummary, error)
	Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Review, error)
}

type pgReviewRepo struct{ pool *pgxpool.Pool }

func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &pgReviewRepo{pool: pool}
}

func (r *pgReviewRepo) Create(ctx context.Context, review *model.Review) (model.RatingSummary, error) {
	var summary model.RatingSummary
	review.ID = uuid.New()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return summary, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serializes rating recomputation per product.
	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, review.ProductID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return summary, ErrNotFound
		}
		return summary, fmt.Errorf("lock product: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO reviews (id, product_id, user_id, user_name, rating, comment, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING created_at, updated_at`,
		review.ID, review.ProductID, review.UserID, review.UserName, review.Rating, review.Comment,
	).Scan(&review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return summary, ErrDuplicate
		}
		return summary, fmt.Errorf("insert review: %w", err)
	}

	var sum int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(rating), 0), COUNT(*) FROM reviews WHERE product_id = $1`, review.ProductID,
	).Scan(&sum, &summary.Count)
	if err != nil {
		return summary, fmt.Errorf("aggregate reviews: %w", err)
	}
	summary.Rating = model.AverageRating(sum, summary.Count)

	_, err = tx.Exec(ctx,
		`UPDATE products SET rating = $2, review_count = $3, updated_at = NOW() WHERE id = $1`,
		review.ProductID, summary.Rating, summary.Count,
	)
	if err != nil {
		return summary, fmt.Errorf("update product rating: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("commit tx: %w", err)
	}
	return summary, nil
}

func (r *pgReviewRepo) Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE user_id = $1 AND product_id = $2)`, userID, productID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return ok, nil
}

func (r *pgReviewRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, user_id, user_name, rating, comment, created_at, updated_at
		 FROM reviews WHERE product_id = $1 ORDER BY created_at DESC`, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.UserName, &rv.Rating,
			&rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}
