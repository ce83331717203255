package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func NewPostgresSet(pool *pgxpool.Pool) Set {
	return Set{
		Users:     NewUserRepository(pool),
		Products:  NewProductRepository(pool),
		Carts:     NewCartRepository(pool),
		Wishlists: NewWishlistRepository(pool),
		Orders:    NewOrderRepository(pool),
		Reviews:   NewReviewRepository(pool),
		Settings:  NewSettingsRepository(pool),
		Pinger:    pool,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
