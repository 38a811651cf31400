package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const fundColumns = `id, uuid, user_id, currency, cash, created_at, updated_at`

// FundRepo implements ports.FundRepository.
type FundRepo struct {
	pool Pool
}

// NewFundRepo creates a new FundRepo.
func NewFundRepo(pool Pool) *FundRepo {
	return &FundRepo{pool: pool}
}

// GetOrCreate returns the user's fund, inserting an empty one on first use.
func (r *FundRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Fund, error) {
	q := on(r.pool, tx)
	insert := `INSERT INTO funds (uuid, user_id, currency, cash, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
		ON CONFLICT (user_id, currency) DO NOTHING`

	if _, err := q.Exec(ctx, insert, uuid.New(), userID, currency, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert fund: %w", err)
	}

	query := `SELECT ` + fundColumns + ` FROM funds WHERE user_id = $1 AND currency = $2`
	f, err := scanFund(q.QueryRow(ctx, query, userID, currency))
	if err != nil {
		return nil, fmt.Errorf("get or create fund: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("fund vanished after insert: user %s", userID)
	}
	return f, nil
}

// GetByUser fetches a user's fund (non-locking read). Returns nil if the
// user has never been credited.
func (r *FundRepo) GetByUser(ctx context.Context, userID uuid.UUID, currency string) (*domain.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE user_id = $1 AND currency = $2`

	f, err := scanFund(r.pool.QueryRow(ctx, query, userID, currency))
	if err != nil {
		return nil, fmt.Errorf("get fund by user: %w", err)
	}
	return f, nil
}

// GetByID fetches a fund by its internal id.
func (r *FundRepo) GetByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE id = $1`

	f, err := scanFund(on(r.pool, tx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get fund by id: %w", err)
	}
	return f, nil
}

// LockFunds locks the given funds with FOR UPDATE in ascending id order.
// This MUST be called within a transaction.
func (r *FundRepo) LockFunds(ctx context.Context, tx pgx.Tx, ids ...int64) ([]*domain.Fund, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	query := `SELECT ` + fundColumns + ` FROM funds WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := tx.Query(ctx, query, sorted)
	if err != nil {
		return nil, fmt.Errorf("lock funds: %w", err)
	}
	defer rows.Close()

	funds := make([]*domain.Fund, 0, len(sorted))
	for rows.Next() {
		f := &domain.Fund{}
		if err := rows.Scan(
			&f.ID, &f.UUID, &f.UserID, &f.Currency, &f.Cash, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan fund row: %w", err)
		}
		funds = append(funds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fund rows: %w", err)
	}
	if len(funds) != len(sorted) {
		return nil, fmt.Errorf("lock funds: expected %d rows, got %d", len(sorted), len(funds))
	}
	return funds, nil
}

// IncreaseCash adds amount to the fund's cash in a single statement and
// returns the new cash value.
func (r *FundRepo) IncreaseCash(ctx context.Context, tx pgx.Tx, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE funds SET cash = cash + $1, updated_at = NOW() WHERE id = $2 RETURNING cash`

	var cash decimal.Decimal
	err := tx.QueryRow(ctx, query, amount, id).Scan(&cash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("fund not found: %d", id)
		}
		return decimal.Zero, fmt.Errorf("increase cash: %w", err)
	}
	return cash, nil
}

// DecreaseCash subtracts amount only if cash >= amount. A miss means the
// balance was insufficient at the moment of the update.
func (r *FundRepo) DecreaseCash(ctx context.Context, tx pgx.Tx, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE funds SET cash = cash - $1, updated_at = NOW()
		WHERE id = $2 AND cash >= $1 RETURNING cash`

	var cash decimal.Decimal
	err := tx.QueryRow(ctx, query, amount, id).Scan(&cash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrInsufficientCash
		}
		return decimal.Zero, fmt.Errorf("decrease cash: %w", err)
	}
	return cash, nil
}

func scanFund(row pgx.Row) (*domain.Fund, error) {
	f := &domain.Fund{}
	err := row.Scan(&f.ID, &f.UUID, &f.UserID, &f.Currency, &f.Cash, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}
