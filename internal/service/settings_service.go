package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettingsService implements ports.SettingsProvider on top of the settings table.
// Reads take no locks; a value may be stale by one in-flight write.
type SettingsService struct {
	repo               ports.SettingRepository
	defaultThreshold   decimal.Decimal
	defaultExpiredDays int
	log                zerolog.Logger
}

// NewSettingsService creates a settings provider with config fallbacks.
func NewSettingsService(
	repo ports.SettingRepository,
	defaultThreshold decimal.Decimal,
	defaultExpiredDays int,
	log zerolog.Logger,
) *SettingsService {
	return &SettingsService{
		repo:               repo,
		defaultThreshold:   defaultThreshold,
		defaultExpiredDays: defaultExpiredDays,
		log:                log,
	}
}

// Get returns the named value, or def if it was never set.
func (s *SettingsService) Get(ctx context.Context, name string, def decimal.Decimal) (decimal.Decimal, error) {
	setting, err := s.repo.Get(ctx, name)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("get setting %s: %w", name, err))
	}
	if setting == nil {
		return def, nil
	}
	return setting.Value, nil
}

// Set writes a value. Well-known cash-back settings are range checked.
func (s *SettingsService) Set(ctx context.Context, name string, value decimal.Decimal) error {
	switch name {
	case domain.SettingCashBackThreshold, domain.SettingCashBackRate:
		if value.IsNegative() {
			return apperror.Validation(fmt.Sprintf("%s must not be negative", name))
		}
	case domain.SettingCashBackExpiredDays:
		if !value.IsInteger() || value.LessThan(decimal.NewFromInt(1)) {
			return apperror.Validation(fmt.Sprintf("%s must be a whole number of days >= 1", name))
		}
	}

	if err := s.repo.Upsert(ctx, name, value); err != nil {
		return apperror.InternalError(fmt.Errorf("set setting %s: %w", name, err))
	}

	s.log.Info().Str("name", name).Str("value", value.String()).Msg("setting updated")
	return nil
}

// CashBackThreshold is the amount a grant must exceed to be applied.
func (s *SettingsService) CashBackThreshold(ctx context.Context) (decimal.Decimal, error) {
	return s.Get(ctx, domain.SettingCashBackThreshold, s.defaultThreshold)
}

// CashBackExpiredDays is the lifetime of a cash-back hold.
func (s *SettingsService) CashBackExpiredDays(ctx context.Context) (int, error) {
	v, err := s.Get(ctx, domain.SettingCashBackExpiredDays, decimal.NewFromInt(int64(s.defaultExpiredDays)))
	if err != nil {
		return 0, err
	}
	return int(v.IntPart()), nil
}
