package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
)

// SettingRepository handles key/value settings persistence.
type SettingRepository struct {
	db DBTX
}

// NewSettingRepository creates a new SettingRepository instance.
func NewSettingRepository(db DBTX) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the stored value for key.
// Returns ErrSettingNotFound if the key was never written.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM settings WHERE key = $1`

	var value string
	if err := r.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", errors.Wrap(err, "get setting")
	}
	return value, nil
}

// Set upserts the value for key.
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		return errors.Wrap(err, "set setting")
	}
	return nil
}
