package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/ezpc-api/internal/model"
)

type CartRepository interface {
	Items(ctx context.Context, userID uuid.UUID) ([]model.CartEntry, error)
	// Increment adds delta to the entry quantity, holding it at a floor of 1.
	// A missing entry is created only when delta is positive. It returns the
	// resulting quantity, or 0 when nothing was stored.
	Increment(ctx context.Context, userID, productID uuid.UUID, delta int) (int, error)
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (bool, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

func (r *pgCartRepo) Items(ctx context.Context, userID uuid.UUID) ([]model.CartEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartEntry
	for rows.Next() {
		var item model.CartEntry
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *pgCartRepo) Increment(ctx context.Context, userID, productID uuid.UUID, delta int) (int, error) {
	var (
		query string
		qty   int
	)
	if delta > 0 {
		query = `INSERT INTO cart_items (user_id, product_id, quantity, created_at, updated_at)
				 VALUES ($1, $2, $3, NOW(), NOW())
				 ON CONFLICT (user_id, product_id)
				 DO UPDATE SET quantity = GREATEST(1, cart_items.quantity + EXCLUDED.quantity), updated_at = NOW()
				 RETURNING quantity`
	} else {
		query = `UPDATE cart_items SET quantity = GREATEST(1, quantity + $3), updated_at = NOW()
				 WHERE user_id = $1 AND product_id = $2
				 RETURNING quantity`
	}
	err := r.pool.QueryRow(ctx, query, userID, productID, delta).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("increment cart item: %w", err)
	}
	return qty, nil
}

func (r *pgCartRepo) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (bool, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $3, updated_at = NOW() WHERE user_id = $1 AND product_id = $2`,
		userID, productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("set cart quantity: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *pgCartRepo) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (r *pgCartRepo) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := clearCart(ctx, r.pool, userID, model.CartClearScope{All: true}); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func clearCart(ctx context.Context, db execer, userID uuid.UUID, scope model.CartClearScope) error {
	if scope.All {
		_, err := db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
		return err
	}
	if len(scope.ProductIDs) == 0 {
		return nil
	}
	_, err := db.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)`, userID, scope.ProductIDs,
	)
	return err
}
