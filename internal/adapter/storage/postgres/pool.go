package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ledgerTables must all exist before the service accepts traffic.
var ledgerTables = []string{"funds", "holds", "transfers", "actions", "settings", "deposit_orders"}

// querier is the statement surface shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the subset of *pgxpool.Pool the repositories use.
// pgxmock.PgxPoolIface satisfies it in tests.
type Pool interface {
	querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// on returns tx when the caller is inside a transaction, else the pool.
func on(pool Pool, tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return pool
}

// Transactor opens the read-committed transactions every ledger mutation
// runs in. Row locks taken with FOR UPDATE provide the serialization.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin ledger transaction: %w", err)
	}
	return tx, nil
}

// HealthCheck reports the database unhealthy when it is unreachable or the
// ledger schema has not been migrated.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var found int
	err := h.pool.QueryRow(ctx,
		`SELECT count(*) FROM pg_tables WHERE schemaname = current_schema() AND tablename = ANY($1)`,
		ledgerTables,
	).Scan(&found)
	if err != nil {
		return fmt.Errorf("checking ledger schema: %w", err)
	}
	if found != len(ledgerTables) {
		return fmt.Errorf("ledger schema incomplete: %d of %d tables present", found, len(ledgerTables))
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
