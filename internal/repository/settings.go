package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/ezpc-api/internal/model"
)

type SettingsRepository interface {
	// Get returns nil when settings were never saved.
	Get(ctx context.Context) (*model.Settings, error)
	Save(ctx context.Context, settings *model.Settings) error
}

type pgSettingsRepo struct{ pool *pgxpool.Pool }

func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &pgSettingsRepo{pool: pool}
}

func (r *pgSettingsRepo) Get(ctx context.Context) (*model.Settings, error) {
	s := &model.Settings{}
	err := r.pool.QueryRow(ctx,
		`SELECT store_name, contact_email, shipping_fee, free_shipping_threshold, maintenance_mode,
			announcement, updated_at
		 FROM settings WHERE id = 1`,
	).Scan(&s.StoreName, &s.ContactEmail, &s.ShippingFee, &s.FreeShippingThreshold,
		&s.MaintenanceMode, &s.Announcement, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

func (r *pgSettingsRepo) Save(ctx context.Context, s *model.Settings) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO settings (id, store_name, contact_email, shipping_fee, free_shipping_threshold,
			maintenance_mode, announcement, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (id) DO UPDATE SET store_name = EXCLUDED.store_name,
			contact_email = EXCLUDED.contact_email, shipping_fee = EXCLUDED.shipping_fee,
			free_shipping_threshold = EXCLUDED.free_shipping_threshold,
			maintenance_mode = EXCLUDED.maintenance_mode, announcement = EXCLUDED.announcement,
			updated_at = NOW()
		 RETURNING updated_at`,
		s.StoreName, s.ContactEmail, s.ShippingFee, s.FreeShippingThreshold, s.MaintenanceMode, s.Announcement,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
