package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/flicky/ezpc-api/internal/dto"
	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/repository"
)

type SettingsService struct {
	settingsRepo repository.SettingsRepository
}

func NewSettingsService(settingsRepo repository.SettingsRepository) *SettingsService {
	return &SettingsService{settingsRepo: settingsRepo}
}

// Get returns the stored settings, or the defaults when none were saved.
func (s *SettingsService) Get(ctx context.Context) (*model.Settings, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		d := model.DefaultSettings()
		return &d, nil
	}
	return settings, nil
}

func (s *SettingsService) Put(ctx context.Context, session model.Session, req dto.SettingsRequest) (*model.Settings, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}

	settings := &model.Settings{
		StoreName:             strings.TrimSpace(req.StoreName),
		ContactEmail:          strings.TrimSpace(req.ContactEmail),
		ShippingFee:           req.ShippingFee,
		FreeShippingThreshold: req.FreeShippingThreshold,
		MaintenanceMode:       req.MaintenanceMode,
		Announcement:          req.Announcement,
	}
	switch {
	case settings.StoreName == "":
		return nil, validationError("store name is required")
	case settings.ShippingFee.IsNegative():
		return nil, validationError("shipping fee must not be negative")
	case settings.FreeShippingThreshold.IsNegative():
		return nil, validationError("free shipping threshold must not be negative")
	}

	if err := s.settingsRepo.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return settings, nil
}
