package repository

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Set bundles the repositories of one storage backend.
type Set struct {
	Users     UserRepository
	Products  ProductRepository
	Carts     CartRepository
	Wishlists WishlistRepository
	Orders    OrderRepository
	Reviews   ReviewRepository
	Settings  SettingsRepository
	Pinger    Pinger
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type scanner interface {
	Scan(dest ...any) error
}
