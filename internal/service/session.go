package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/flicky/ezpc-api/internal/model"
)

func authenticate(s model.Session) error {
	if s.UserID == uuid.Nil {
		return ErrUnauthenticated
	}
	if s.Expired(time.Now()) {
		return ErrSessionExpired
	}
	return nil
}

// requireAdmin is the one admin gate every admin operation goes through.
func requireAdmin(s model.Session) error {
	if err := authenticate(s); err != nil {
		return err
	}
	if !s.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}

// canAccess reports whether s may act on a resource owned by ownerID.
func canAccess(s model.Session, ownerID uuid.UUID) bool {
	return s.IsAdmin() || s.UserID == ownerID
}
