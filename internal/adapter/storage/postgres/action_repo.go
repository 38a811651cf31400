package postgres

import (
	"context"
	"fmt"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// ActionRepo implements ports.ActionRepository.
type ActionRepo struct {
	pool Pool
}

// NewActionRepo creates a new ActionRepo.
func NewActionRepo(pool Pool) *ActionRepo {
	return &ActionRepo{pool: pool}
}

// Upsert records the balance snapshot for (fund, transfer). Re-applying the
// same pair overwrites the existing row.
func (r *ActionRepo) Upsert(ctx context.Context, tx pgx.Tx, a *domain.Action) error {
	query := `INSERT INTO actions (uuid, fund_id, transfer_id, total, hold, cash, extra, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (fund_id, transfer_id) DO UPDATE
		SET total = EXCLUDED.total, hold = EXCLUDED.hold, cash = EXCLUDED.cash,
			extra = EXCLUDED.extra, updated_at = EXCLUDED.updated_at
		RETURNING id`

	extra := a.Extra
	if extra == nil {
		extra = map[string]any{}
	}

	err := tx.QueryRow(ctx, query,
		a.UUID, a.FundID, a.TransferID,
		a.Balance.Total, a.Balance.Hold, a.Balance.Cash,
		extra, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("upsert action: %w", err)
	}
	return nil
}

// ListByFund fetches a fund's ledger, newest first, with the total count.
func (r *ActionRepo) ListByFund(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("a.fund_id = $%d", argIdx))
	args = append(args, params.FundID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("t.type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("a.created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("a.created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM actions a JOIN transfers t ON t.id = a.transfer_id %s`, where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count actions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT a.id, a.uuid, a.fund_id, a.transfer_id, a.total, a.hold, a.cash, a.extra,
		a.created_at, a.updated_at,
		t.id, t.uuid, t.from_fund_id, t.to_fund_id, t.from_user_id, t.amount, t.type, t.status,
		t.note, t.order_id, t.extra, t.created_at, t.updated_at
		FROM actions a JOIN transfers t ON t.id = a.transfer_id
		%s ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		a, t := &e.Action, &e.Transfer
		err := rows.Scan(
			&a.ID, &a.UUID, &a.FundID, &a.TransferID,
			&a.Balance.Total, &a.Balance.Hold, &a.Balance.Cash, &a.Extra,
			&a.CreatedAt, &a.UpdatedAt,
			&t.ID, &t.UUID, &t.FromFundID, &t.ToFundID, &t.FromUserID, &t.Amount, &t.Type, &t.Status,
			&t.Note, &t.OrderID, &t.Extra, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan action row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate action rows: %w", err)
	}
	return entries, total, nil
}
