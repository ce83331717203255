package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to status codes; every error a service
// returns on purpose wraps exactly one of them.
var (
	ErrValidation             = errors.New("validation failed")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrUpstream               = errors.New("upstream failure")
)

var (
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrAddressNotFound = fmt.Errorf("address %w", ErrNotFound)

	ErrSessionExpired     = fmt.Errorf("%w: session expired", ErrUnauthenticated)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)

	ErrAdminOnly         = fmt.Errorf("%w: admin role required", ErrForbidden)
	ErrOrderAccessDenied = fmt.Errorf("%w: order belongs to another user", ErrForbidden)
	ErrNotDelivered      = fmt.Errorf("%w: no delivered order contains this product", ErrForbidden)

	ErrUserAlreadyExists = fmt.Errorf("%w: user already exists", ErrConflict)
	ErrAlreadyReviewed   = fmt.Errorf("%w: product already reviewed", ErrConflict)
	ErrOrderInProgress   = fmt.Errorf("%w: an order with this idempotency key is in progress", ErrConflict)
	ErrStatusChanged     = fmt.Errorf("%w: order status changed concurrently", ErrConflict)
	ErrAddressesChanged  = fmt.Errorf("%w: addresses changed concurrently", ErrConflict)
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
