package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "receipts-bot/internal/domain/settings"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository { return &SettingsRepository{db: db} }

// Get returns nil when no settings row exists.
func (r *SettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	var s domain.Settings
	err := r.db.QueryRowContext(ctx, `SELECT subscription_url FROM bot_settings WHERE id = 1`).Scan(&s.SubscriptionURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
