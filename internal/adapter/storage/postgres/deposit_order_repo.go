package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const depositOrderColumns = `id, uuid, user_id, provider, order_id, amount, state, expires_at,
	transfer_id, created_at, updated_at`

// DepositOrderRepo implements ports.DepositOrderRepository.
type DepositOrderRepo struct {
	pool Pool
}

func NewDepositOrderRepo(pool Pool) *DepositOrderRepo {
	return &DepositOrderRepo{pool: pool}
}

func (r *DepositOrderRepo) Create(ctx context.Context, o *domain.DepositOrder) error {
	query := `INSERT INTO deposit_orders (uuid, user_id, provider, order_id, amount, state, expires_at,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		o.UUID, o.UserID, o.Provider, o.OrderID, o.Amount, o.State, o.ExpiresAt, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert deposit order: %w", err)
	}
	return nil
}

// GetByOrderID returns nil when no order has that merchant order number.
func (r *DepositOrderRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.DepositOrder, error) {
	query := `SELECT ` + depositOrderColumns + ` FROM deposit_orders WHERE order_id = $1`

	o, err := scanDepositOrder(r.pool.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deposit order: %w", err)
	}
	return o, nil
}

func (r *DepositOrderRepo) ListPending(ctx context.Context, limit int) ([]domain.DepositOrder, error) {
	query := `SELECT ` + depositOrderColumns + ` FROM deposit_orders
		WHERE state = $1 ORDER BY created_at ASC, id ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, domain.DepositOrderPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending deposit orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.DepositOrder
	for rows.Next() {
		o, err := scanDepositOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deposit order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deposit order rows: %w", err)
	}
	return orders, nil
}

// UpdateState moves an order out of state from. The transfer id is only
// written when given, so closing an order leaves it NULL.
func (r *DepositOrderRepo) UpdateState(ctx context.Context, id int64, from, to domain.DepositOrderState, transferID *uuid.UUID) error {
	query := `UPDATE deposit_orders SET state = $1, transfer_id = COALESCE($2, transfer_id), updated_at = NOW()
		WHERE id = $3 AND state = $4`

	tag, err := r.pool.Exec(ctx, query, to, transferID, id, from)
	if err != nil {
		return fmt.Errorf("update deposit order state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

func scanDepositOrder(row pgx.Row) (*domain.DepositOrder, error) {
	o := &domain.DepositOrder{}
	err := row.Scan(
		&o.ID, &o.UUID, &o.UserID, &o.Provider, &o.OrderID, &o.Amount, &o.State, &o.ExpiresAt,
		&o.TransferID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}
