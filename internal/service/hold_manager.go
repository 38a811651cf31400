package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultReleaseBatch = 500

// HoldManager maintains the hold sub-ledger of each fund.
// Grant, Consume and TotalHeld run inside the caller's transaction.
type HoldManager struct {
	holds      ports.HoldRepository
	funds      ports.FundRepository
	transactor ports.DBTransactor
	batchSize  int
	now        func() time.Time
	log        zerolog.Logger
}

// NewHoldManager creates a new HoldManager. batchSize bounds the number of
// funds released per transaction.
func NewHoldManager(
	holds ports.HoldRepository,
	funds ports.FundRepository,
	transactor ports.DBTransactor,
	batchSize int,
	log zerolog.Logger,
) *HoldManager {
	if batchSize <= 0 {
		batchSize = defaultReleaseBatch
	}
	return &HoldManager{
		holds:      holds,
		funds:      funds,
		transactor: transactor,
		batchSize:  batchSize,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// Grant creates a hold on the fund.
func (m *HoldManager) Grant(ctx context.Context, tx pgx.Tx, fundID int64, amount decimal.Decimal, expiredAt time.Time, orderID string) (*domain.Hold, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("grant hold: non-positive amount %s", amount)
	}

	h := &domain.Hold{
		Model:     domain.NewModel(m.now()),
		FundID:    fundID,
		Amount:    amount,
		ExpiredAt: expiredAt,
		OrderID:   domain.OptionalOrderID(orderID),
	}
	if err := m.holds.Create(ctx, tx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Consume draws amount from the fund's holds, latest expiry first, and
// returns what the holds could not cover. consumed + remainder == amount.
func (m *HoldManager) Consume(ctx context.Context, tx pgx.Tx, fundID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("consume hold: non-positive amount %s", amount)
	}

	holds, err := m.holds.LockByFund(ctx, tx, fundID)
	if err != nil {
		return decimal.Zero, err
	}

	remaining := amount
	for _, h := range holds {
		if !remaining.IsPositive() {
			break
		}

		if h.Amount.GreaterThan(remaining) {
			if err := m.holds.UpdateAmount(ctx, tx, h.ID, h.Amount.Sub(remaining)); err != nil {
				return decimal.Zero, err
			}
			remaining = decimal.Zero
			break
		}

		if err := m.holds.Delete(ctx, tx, h.ID); err != nil {
			return decimal.Zero, err
		}
		remaining = remaining.Sub(h.Amount)
	}

	return remaining, nil
}

// TotalHeld returns the sum of the fund's holds.
func (m *HoldManager) TotalHeld(ctx context.Context, tx pgx.Tx, fundID int64) (decimal.Decimal, error) {
	return m.holds.SumByFund(ctx, tx, fundID)
}

// List returns the fund's holds in the order a debit would consume them.
func (m *HoldManager) List(ctx context.Context, fundID int64) ([]domain.Hold, error) {
	return m.holds.ListByFund(ctx, fundID)
}

// ReleaseExpired moves every expired hold back to its fund's cash and
// returns the number of holds released. Each batch of funds is one
// transaction; fund rows are locked before their holds.
func (m *HoldManager) ReleaseExpired(ctx context.Context) (int, error) {
	released := 0
	for {
		n, funds, err := m.releaseBatch(ctx)
		released += n
		if err != nil {
			return released, err
		}
		if funds < m.batchSize {
			return released, nil
		}
	}
}

func (m *HoldManager) releaseBatch(ctx context.Context) (int, int, error) {
	now := m.now()

	dbTx, err := m.transactor.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	fundIDs, err := m.holds.ExpiredFundIDs(ctx, dbTx, now, m.batchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(fundIDs) == 0 {
		return 0, 0, nil
	}

	if _, err := m.funds.LockFunds(ctx, dbTx, fundIDs...); err != nil {
		return 0, 0, err
	}

	holds, err := m.holds.LockExpired(ctx, dbTx, fundIDs, now)
	if err != nil {
		return 0, 0, err
	}

	for _, h := range holds {
		if err := m.holds.Delete(ctx, dbTx, h.ID); err != nil {
			return 0, 0, err
		}
		if _, err := m.funds.IncreaseCash(ctx, dbTx, h.FundID, h.Amount); err != nil {
			return 0, 0, err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit tx: %w", err)
	}

	if len(holds) > 0 {
		m.log.Info().
			Int("holds", len(holds)).
			Int("funds", len(fundIDs)).
			Msg("expired holds released")
	}
	return len(holds), len(fundIDs), nil
}
