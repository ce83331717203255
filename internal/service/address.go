package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/repository"
)

const (
	maxAddresses            = 10
	maxAddressWriteAttempts = 5
)

// AddressService manages a user's saved shipping addresses. Whenever the list
// is non-empty exactly one entry is the default.
type AddressService struct {
	userRepo repository.UserRepository
}

func NewAddressService(userRepo repository.UserRepository) *AddressService {
	return &AddressService{userRepo: userRepo}
}

func (s *AddressService) List(ctx context.Context, userID uuid.UUID) ([]model.Address, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Addresses, nil
}

func (s *AddressService) Add(ctx context.Context, userID uuid.UUID, addr model.Address) ([]model.Address, error) {
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	addr.ID = uuid.New()
	return s.mutate(ctx, userID, func(addresses []model.Address) ([]model.Address, error) {
		if len(addresses) >= maxAddresses {
			return nil, validationError("at most %d addresses can be saved", maxAddresses)
		}
		addresses = append(addresses, addr)
		if addr.IsDefault {
			addresses = markDefault(addresses, addr.ID)
		}
		return addresses, nil
	})
}

func (s *AddressService) Update(ctx context.Context, userID, addressID uuid.UUID, addr model.Address) ([]model.Address, error) {
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	wantDefault := addr.IsDefault
	addr.ID = addressID
	return s.mutate(ctx, userID, func(addresses []model.Address) ([]model.Address, error) {
		idx := indexOfAddress(addresses, addressID)
		if idx < 0 {
			return nil, ErrAddressNotFound
		}
		next := addr
		next.IsDefault = addresses[idx].IsDefault
		addresses[idx] = next
		if wantDefault {
			addresses = markDefault(addresses, addressID)
		}
		return addresses, nil
	})
}

func (s *AddressService) Delete(ctx context.Context, userID, addressID uuid.UUID) ([]model.Address, error) {
	return s.mutate(ctx, userID, func(addresses []model.Address) ([]model.Address, error) {
		idx := indexOfAddress(addresses, addressID)
		if idx < 0 {
			return nil, ErrAddressNotFound
		}
		return slices.Delete(addresses, idx, idx+1), nil
	})
}

func (s *AddressService) SetDefault(ctx context.Context, userID, addressID uuid.UUID) ([]model.Address, error) {
	return s.mutate(ctx, userID, func(addresses []model.Address) ([]model.Address, error) {
		if indexOfAddress(addresses, addressID) < 0 {
			return nil, ErrAddressNotFound
		}
		return markDefault(addresses, addressID), nil
	})
}

func (s *AddressService) user(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// mutate applies fn to a copy of the stored address book and writes the
// result back only if nobody else wrote in between, rereading on a lost race.
func (s *AddressService) mutate(ctx context.Context, userID uuid.UUID, fn func([]model.Address) ([]model.Address, error)) ([]model.Address, error) {
	for attempt := 0; attempt < maxAddressWriteAttempts; attempt++ {
		user, err := s.user(ctx, userID)
		if err != nil {
			return nil, err
		}
		addresses, err := fn(slices.Clone(user.Addresses))
		if err != nil {
			return nil, err
		}
		addresses = normalizeDefault(addresses)

		saved, err := s.userRepo.SaveAddresses(ctx, userID, user.Addresses, addresses)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("save addresses: %w", err)
		}
		if saved {
			return addresses, nil
		}
	}
	return nil, ErrAddressesChanged
}

func markDefault(addresses []model.Address, id uuid.UUID) []model.Address {
	for i := range addresses {
		addresses[i].IsDefault = addresses[i].ID == id
	}
	return addresses
}

// normalizeDefault keeps the first default and promotes the first address
// when none is marked.
func normalizeDefault(addresses []model.Address) []model.Address {
	if addresses == nil {
		return []model.Address{}
	}
	found := false
	for i := range addresses {
		if addresses[i].IsDefault && !found {
			found = true
			continue
		}
		addresses[i].IsDefault = false
	}
	if !found && len(addresses) > 0 {
		addresses[0].IsDefault = true
	}
	return addresses
}

func indexOfAddress(addresses []model.Address, id uuid.UUID) int {
	for i := range addresses {
		if addresses[i].ID == id {
			return i
		}
	}
	return -1
}

func validateAddress(a model.Address) error {
	switch {
	case a.Recipient == "":
		return validationError("recipient is required")
	case a.Line1 == "":
		return validationError("line1 is required")
	case a.City == "":
		return validationError("city is required")
	}
	return nil
}
