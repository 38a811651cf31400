package postgres

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const holdColumns = `id, uuid, fund_id, amount, expired_at, order_id, created_at, updated_at`

// HoldRepo implements ports.HoldRepository.
type HoldRepo struct {
	pool Pool
}

// NewHoldRepo creates a new HoldRepo.
func NewHoldRepo(pool Pool) *HoldRepo {
	return &HoldRepo{pool: pool}
}

// Create inserts a hold and sets its id.
func (r *HoldRepo) Create(ctx context.Context, tx pgx.Tx, h *domain.Hold) error {
	query := `INSERT INTO holds (uuid, fund_id, amount, expired_at, order_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	err := tx.QueryRow(ctx, query,
		h.UUID, h.FundID, h.Amount, h.ExpiredAt, h.OrderID, h.CreatedAt, h.UpdatedAt,
	).Scan(&h.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert hold: %w", err)
	}
	return nil
}

// LockByFund locks every hold of the fund, latest expiry first; the older
// hold wins a tie on expiry.
// This MUST be called within a transaction.
func (r *HoldRepo) LockByFund(ctx context.Context, tx pgx.Tx, fundID int64) ([]domain.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM holds WHERE fund_id = $1
		ORDER BY expired_at DESC, id ASC FOR UPDATE`

	return r.list(ctx, tx, "lock holds", query, fundID)
}

// ListByFund returns the fund's holds in consumption order, latest expiry
// first, without locking them.
func (r *HoldRepo) ListByFund(ctx context.Context, fundID int64) ([]domain.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM holds WHERE fund_id = $1 ORDER BY expired_at DESC, id ASC`

	return r.list(ctx, r.pool, "list holds", query, fundID)
}

// UpdateAmount sets a hold's remaining amount.
func (r *HoldRepo) UpdateAmount(ctx context.Context, tx pgx.Tx, id int64, amount decimal.Decimal) error {
	query := `UPDATE holds SET amount = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("update hold amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("hold not found: %d", id)
	}
	return nil
}

// Delete removes a hold.
func (r *HoldRepo) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM holds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("hold not found: %d", id)
	}
	return nil
}

// SumByFund returns the total held amount, zero if none.
func (r *HoldRepo) SumByFund(ctx context.Context, tx pgx.Tx, fundID int64) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM holds WHERE fund_id = $1`

	var sum decimal.Decimal
	if err := on(r.pool, tx).QueryRow(ctx, query, fundID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum holds: %w", err)
	}
	return sum, nil
}

// ExpiredFundIDs returns up to limit distinct funds owning holds with
// expired_at <= now, ascending. No rows are locked.
func (r *HoldRepo) ExpiredFundIDs(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]int64, error) {
	query := `SELECT DISTINCT fund_id FROM holds WHERE expired_at <= $1 ORDER BY fund_id LIMIT $2`

	rows, err := on(r.pool, tx).Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("expired hold funds: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan fund id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fund ids: %w", err)
	}
	return ids, nil
}

// LockExpired locks the expired holds of the given funds. Callers lock the
// fund rows first.
// This MUST be called within a transaction.
func (r *HoldRepo) LockExpired(ctx context.Context, tx pgx.Tx, fundIDs []int64, now time.Time) ([]domain.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM holds WHERE fund_id = ANY($1) AND expired_at <= $2
		ORDER BY fund_id, id FOR UPDATE`

	return r.list(ctx, tx, "lock expired holds", query, fundIDs, now)
}

func (r *HoldRepo) list(ctx context.Context, q querier, op, query string, args ...any) ([]domain.Hold, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		h := domain.Hold{}
		if err := rows.Scan(
			&h.ID, &h.UUID, &h.FundID, &h.Amount, &h.ExpiredAt, &h.OrderID, &h.CreatedAt, &h.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan hold row: %w", err)
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hold rows: %w", err)
	}
	return holds, nil
}
