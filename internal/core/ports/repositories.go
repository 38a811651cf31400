package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// FundRepository defines persistence operations for funds.
// Cash is only ever changed through IncreaseCash/DecreaseCash, which are
// single conditional UPDATE statements.
type FundRepository interface {
	GetOrCreate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Fund, error)
	GetByUser(ctx context.Context, userID uuid.UUID, currency string) (*domain.Fund, error)
	GetByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Fund, error)
	// LockFunds takes row locks in ascending id order and returns the funds in that order.
	LockFunds(ctx context.Context, tx pgx.Tx, ids ...int64) ([]*domain.Fund, error)
	IncreaseCash(ctx context.Context, tx pgx.Tx, id int64, amount decimal.Decimal) (decimal.Decimal, error)
	// DecreaseCash returns domain.ErrInsufficientCash if cash < amount.
	DecreaseCash(ctx context.Context, tx pgx.Tx, id int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// HoldRepository defines persistence operations for the hold sub-ledger.
type HoldRepository interface {
	// Create returns domain.ErrDuplicate if the order id is already held.
	Create(ctx context.Context, tx pgx.Tx, hold *domain.Hold) error
	// LockByFund locks a fund's holds, latest expiry first.
	LockByFund(ctx context.Context, tx pgx.Tx, fundID int64) ([]domain.Hold, error)
	ListByFund(ctx context.Context, fundID int64) ([]domain.Hold, error)
	UpdateAmount(ctx context.Context, tx pgx.Tx, id int64, amount decimal.Decimal) error
	Delete(ctx context.Context, tx pgx.Tx, id int64) error
	SumByFund(ctx context.Context, tx pgx.Tx, fundID int64) (decimal.Decimal, error)
	ExpiredFundIDs(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]int64, error)
	// LockExpired locks the expired holds of funds the caller has already locked.
	LockExpired(ctx context.Context, tx pgx.Tx, fundIDs []int64, now time.Time) ([]domain.Hold, error)
}

// TransferRepository defines persistence operations for transfers.
type TransferRepository interface {
	// Create returns domain.ErrDuplicate if (type, order_id) already exists.
	Create(ctx context.Context, tx pgx.Tx, transfer *domain.Transfer) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	GetByOrder(ctx context.Context, transferType domain.TransferType, orderID string) (*domain.Transfer, error)
	// UpdateStatus returns domain.ErrStatusConflict if the row is no longer in status from.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, from, to domain.TransferStatus) error
	MergeExtra(ctx context.Context, tx pgx.Tx, id int64, extra map[string]any) error
}

// ActionRepository defines persistence operations for balance audit entries.
type ActionRepository interface {
	Upsert(ctx context.Context, tx pgx.Tx, action *domain.Action) error
	ListByFund(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
}

// LedgerListParams holds filter + pagination for ledger history.
type LedgerListParams struct {
	FundID   int64
	Type     *domain.TransferType
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// SettingRepository defines persistence for named numeric settings.
type SettingRepository interface {
	Get(ctx context.Context, name string) (*domain.Setting, error)
	Upsert(ctx context.Context, name string, value decimal.Decimal) error
}

// DepositOrderRepository persists provider top-up orders.
type DepositOrderRepository interface {
	// Create returns domain.ErrDuplicate if the order id is taken.
	Create(ctx context.Context, order *domain.DepositOrder) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.DepositOrder, error)
	// ListPending returns up to limit PENDING orders, oldest first.
	ListPending(ctx context.Context, limit int) ([]domain.DepositOrder, error)
	// UpdateState returns domain.ErrStatusConflict if the order left state from.
	UpdateState(ctx context.Context, id int64, from, to domain.DepositOrderState, transferID *uuid.UUID) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
