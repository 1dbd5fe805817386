package service

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"earnbot/internal/model"
	"earnbot/internal/repository"
)

// Settings reads and writes runtime settings.
type Settings struct {
	store        repository.SettingStore
	defaultPrice decimal.Decimal
}

// NewSettings creates a Settings store. defaultPrice is used while the
// task price is unset or unreadable.
func NewSettings(uow repository.UnitOfWork, defaultPrice string) (*Settings, error) {
	price, err := ParsePrice(defaultPrice)
	if err != nil {
		return nil, errors.Wrapf(err, "default task price %q", defaultPrice)
	}
	return &Settings{store: uow.Settings(), defaultPrice: price}, nil
}

// Get returns the stored value or def when the key was never written.
func (s *Settings) Get(ctx context.Context, key, def string) (string, error) {
	value, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return def, nil
		}
		return "", err
	}
	return value, nil
}

// Set upserts a setting.
func (s *Settings) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, key, value)
}

// ParsePrice parses a non-negative decimal price.
func ParsePrice(text string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, ErrInvalidPrice
	}
	if price.IsNegative() {
		return decimal.Zero, ErrInvalidPrice
	}
	return price, nil
}

// TaskPrice returns the per-task price.
func (s *Settings) TaskPrice(ctx context.Context) (decimal.Decimal, error) {
	raw, err := s.Get(ctx, model.SettingTaskPrice, s.defaultPrice.String())
	if err != nil {
		return decimal.Zero, err
	}
	price, err := ParsePrice(raw)
	if err != nil {
		log.Warn().Str("value", raw).Msg("Stored task price is unreadable, using default")
		return s.defaultPrice, nil
	}
	return price, nil
}

// SetTaskPrice stores a new per-task price.
func (s *Settings) SetTaskPrice(ctx context.Context, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	return s.Set(ctx, model.SettingTaskPrice, price.String())
}
