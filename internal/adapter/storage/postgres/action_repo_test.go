package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewActionRepo(mock)
	now := time.Now().UTC()
	a := &domain.Action{
		Model:      domain.NewModel(now),
		FundID:     1,
		TransferID: 42,
		Balance:    domain.NewBalance(decimal.NewFromInt(100), decimal.NewFromInt(80)),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO actions .+ ON CONFLICT \\(fund_id, transfer_id\\) DO UPDATE").
		WithArgs(a.UUID, int64(1), int64(42), a.Balance.Total, a.Balance.Hold, a.Balance.Cash,
			map[string]any{}, a.CreatedAt, a.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Upsert(context.Background(), tx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActionRepo_ListByFund(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewActionRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	cols := []string{
		"a.id", "a.uuid", "a.fund_id", "a.transfer_id", "a.total", "a.hold", "a.cash", "a.extra",
		"a.created_at", "a.updated_at",
		"t.id", "t.uuid", "t.from_fund_id", "t.to_fund_id", "t.from_user_id", "t.amount", "t.type", "t.status",
		"t.note", "t.order_id", "t.extra", "t.created_at", "t.updated_at",
	}
	toFund := int64(1)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM actions a JOIN transfers t").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery("SELECT a.id, .+ ORDER BY a.created_at DESC, a.id DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs(int64(1), 20, 0).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(8), uuid.New(), int64(1), int64(43),
				decimal.NewFromInt(180), decimal.NewFromInt(80), decimal.NewFromInt(100), map[string]any{},
				now, now,
				int64(43), uuid.New(), (*int64)(nil), &toFund, (*uuid.UUID)(nil), decimal.NewFromInt(80),
				domain.TransferTypeCashBack, domain.TransferStatusSuccess,
				"promo", (*string)(nil), map[string]any{}, now, now).
			AddRow(int64(7), uuid.New(), int64(1), int64(42),
				decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(100), map[string]any{},
				now, now,
				int64(42), uuid.New(), (*int64)(nil), &toFund, (*uuid.UUID)(nil), decimal.NewFromInt(100),
				domain.TransferTypeDeposit, domain.TransferStatusSuccess,
				"", (*string)(nil), map[string]any{}, now, now))

	entries, total, err := repo.ListByFund(context.Background(), ports.LedgerListParams{FundID: 1, Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.TransferTypeCashBack, entries[0].Transfer.Type)
	assert.True(t, entries[0].Action.Balance.Total.Equal(decimal.NewFromInt(180)))
	assert.Equal(t, domain.TransferTypeDeposit, entries[1].Transfer.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActionRepo_ListByFund_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewActionRepo(mock)
	typ := domain.TransferTypeTransfer
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery("SELECT COUNT.+t.type = \\$2 AND a.created_at >= \\$3 AND a.created_at <= \\$4").
		WithArgs(int64(1), typ, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT a.id, .+ LIMIT \\$5 OFFSET \\$6").
		WithArgs(int64(1), typ, from, to, 10, 10).
		WillReturnRows(pgxmock.NewRows([]string{"a.id"}))

	entries, total, err := repo.ListByFund(context.Background(), ports.LedgerListParams{
		FundID: 1, Type: &typ, From: &from, To: &to, Page: 2, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
