package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SettingRepo implements ports.SettingRepository.
type SettingRepo struct {
	pool Pool
}

// NewSettingRepo creates a new SettingRepo.
func NewSettingRepo(pool Pool) *SettingRepo {
	return &SettingRepo{pool: pool}
}

// Get fetches a setting by name. Returns nil if it was never set.
func (r *SettingRepo) Get(ctx context.Context, name string) (*domain.Setting, error) {
	query := `SELECT name, value, updated_at FROM settings WHERE name = $1`

	s := &domain.Setting{}
	err := r.pool.QueryRow(ctx, query, name).Scan(&s.Name, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return s, nil
}

// Upsert writes a setting value.
func (r *SettingRepo) Upsert(ctx context.Context, name string, value decimal.Decimal) error {
	query := `INSERT INTO settings (uuid, name, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	if _, err := r.pool.Exec(ctx, query, uuid.New(), name, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
