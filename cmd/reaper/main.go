// Command reaper runs one expiry sweep and exits. It is meant for cron
// when the API's built-in reaper is disabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wallet-ledger/config"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load(os.Getenv("WLE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	fundRepo := pgStorage.NewFundRepo(pool)
	transactor := pgStorage.NewTransactor(pool)
	settingsSvc := service.NewSettingsService(pgStorage.NewSettingRepo(pool), decimal.Zero, cfg.CashBack.DefaultExpiredDays, logger.Component(log, "settings"))
	holdMgr := service.NewHoldManager(pgStorage.NewHoldRepo(pool), fundRepo, transactor, cfg.Reaper.BatchSize, logger.Component(log, "holds"))
	ledgerSvc := service.NewLedgerService(
		fundRepo,
		pgStorage.NewTransferRepo(pool),
		pgStorage.NewActionRepo(pool),
		holdMgr,
		settingsSvc,
		nil,
		nil,
		transactor,
		service.LedgerOptions{Currency: cfg.Ledger.Currency, TxTimeout: cfg.Ledger.TxTimeout},
		logger.Component(log, "ledger"),
	)

	if _, err := service.NewReaper(ledgerSvc, cfg.Reaper.Interval, logger.Component(log, "reaper")).RunOnce(ctx); err != nil {
		pool.Close()
		os.Exit(1)
	}
}
