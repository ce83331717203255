package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WishlistRepository interface {
	// Toggle removes productID from the user's wishlist when present and adds
	// it otherwise. It reports whether the product ended up in the wishlist.
	Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	List(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type pgWishlistRepo struct{ pool *pgxpool.Pool }

func NewWishlistRepository(pool *pgxpool.Pool) WishlistRepository {
	return &pgWishlistRepo{pool: pool}
}

func (r *pgWishlistRepo) Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	// A concurrent insert that wins the conflict still leaves the item
	// present, so the result reports the post-state rather than this
	// statement's own insert.
	query := `WITH removed AS (
				DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2 RETURNING 1
			  ), inserted AS (
				INSERT INTO wishlist_items (user_id, product_id, created_at)
				SELECT $1, $2, NOW() WHERE NOT EXISTS (SELECT 1 FROM removed)
				ON CONFLICT (user_id, product_id) DO NOTHING
				RETURNING 1
			  )
			  SELECT NOT EXISTS (SELECT 1 FROM removed)`
	var present bool
	if err := r.pool.QueryRow(ctx, query, userID, productID).Scan(&present); err != nil {
		return false, fmt.Errorf("toggle wishlist: %w", err)
	}
	return present, nil
}

func (r *pgWishlistRepo) List(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id FROM wishlist_items WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
