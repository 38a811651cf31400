package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transferColumns = `id, uuid, from_fund_id, to_fund_id, from_user_id, amount, type, status,
	note, order_id, extra, created_at, updated_at`

// TransferRepo implements ports.TransferRepository.
type TransferRepo struct {
	pool Pool
}

// NewTransferRepo creates a new TransferRepo.
func NewTransferRepo(pool Pool) *TransferRepo {
	return &TransferRepo{pool: pool}
}

// Create inserts a transfer within a database transaction and sets its id.
func (r *TransferRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transfer) error {
	query := `INSERT INTO transfers (uuid, from_fund_id, to_fund_id, from_user_id, amount, type, status,
		note, order_id, extra, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`

	extra := t.Extra
	if extra == nil {
		extra = map[string]any{}
	}

	err := tx.QueryRow(ctx, query,
		t.UUID, t.FromFundID, t.ToFundID, t.FromUserID, t.Amount, t.Type, t.Status,
		t.Note, t.OrderID, extra, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByUUID fetches a transfer by its external id.
func (r *TransferRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE uuid = $1`

	return scanTransfer(r.pool.QueryRow(ctx, query, id))
}

// GetByOrder fetches the transfer recorded for (type, order_id).
func (r *TransferRepo) GetByOrder(ctx context.Context, transferType domain.TransferType, orderID string) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE type = $1 AND order_id = $2`

	return scanTransfer(r.pool.QueryRow(ctx, query, transferType, orderID))
}

// UpdateStatus moves a transfer from one status to another. The update only
// applies if the row is still in status from.
func (r *TransferRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, from, to domain.TransferStatus) error {
	query := `UPDATE transfers SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	tag, err := on(r.pool, tx).Exec(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("update transfer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

// MergeExtra merges keys into the transfer's extra metadata.
func (r *TransferRepo) MergeExtra(ctx context.Context, tx pgx.Tx, id int64, extra map[string]any) error {
	query := `UPDATE transfers SET extra = extra || $1::jsonb, updated_at = NOW() WHERE id = $2`

	tag, err := on(r.pool, tx).Exec(ctx, query, extra, id)
	if err != nil {
		return fmt.Errorf("merge transfer extra: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer not found: %d", id)
	}
	return nil
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	t := &domain.Transfer{}
	err := row.Scan(
		&t.ID, &t.UUID, &t.FromFundID, &t.ToFundID, &t.FromUserID, &t.Amount, &t.Type, &t.Status,
		&t.Note, &t.OrderID, &t.Extra, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	return t, nil
}
