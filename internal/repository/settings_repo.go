package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/fabric_api/internal/models"
)

// SettingsRepository persists the single store settings row.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Bootstrap writes defaults when the row does not exist yet and returns the
// stored settings.
func (r *SettingsRepository) Bootstrap(ctx context.Context, defaults models.Settings) (*models.Settings, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (id, store, shipping, payment) VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		defaults.Store, defaults.Shipping, defaults.Payment); err != nil {
		return nil, err
	}
	return r.Get(ctx)
}

func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var s models.Settings
	if err := r.db.GetContext(ctx, &s, `SELECT store, shipping, payment, updated_at FROM settings WHERE id = 1`); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save overwrites all sections and returns the stored row.
func (r *SettingsRepository) Save(ctx context.Context, s *models.Settings) error {
	return r.db.QueryRowxContext(ctx, `
		UPDATE settings SET store = $1, shipping = $2, payment = $3, updated_at = NOW()
		WHERE id = 1
		RETURNING updated_at`,
		s.Store, s.Shipping, s.Payment,
	).Scan(&s.UpdatedAt)
}
