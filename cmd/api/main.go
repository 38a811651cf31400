package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/events"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/adapter/provider"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load(os.Getenv("WLE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("currency", cfg.Ledger.Currency).
		Msg("Starting wallet ledger")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required")
	}
	threshold, err := decimal.NewFromString(cfg.CashBack.DefaultThreshold)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid cashback.default_threshold")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Repositories
	fundRepo := pgStorage.NewFundRepo(pool)
	holdRepo := pgStorage.NewHoldRepo(pool)
	transferRepo := pgStorage.NewTransferRepo(pool)
	actionRepo := pgStorage.NewActionRepo(pool)
	settingRepo := pgStorage.NewSettingRepo(pool)
	depositOrderRepo := pgStorage.NewDepositOrderRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Core services
	submitGuard := redisStorage.NewSubmitGuard(rdb)
	settingsSvc := service.NewSettingsService(settingRepo, threshold, cfg.CashBack.DefaultExpiredDays, logger.Component(log, "settings"))
	holdMgr := service.NewHoldManager(holdRepo, fundRepo, transactor, cfg.Reaper.BatchSize, logger.Component(log, "holds"))
	ledgerSvc := service.NewLedgerService(
		fundRepo,
		transferRepo,
		actionRepo,
		holdMgr,
		settingsSvc,
		submitGuard,
		service.NewRateCashBackPolicy(settingsSvc),
		transactor,
		service.LedgerOptions{
			Currency:    cfg.Ledger.Currency,
			TxTimeout:   cfg.Ledger.TxTimeout,
			ResubmitTTL: cfg.Ledger.ResubmitTTL,
			PageSize:    cfg.Ledger.LedgerPageSize,
		},
		logger.Component(log, "ledger"),
	)

	notifier, err := newNotifier(cfg.Events, logger.Component(log, "events"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize event publisher")
	}
	ledgerSvc.WithNotifier(notifier)
	defer func() {
		if err := notifier.Close(); err != nil {
			log.Error().Err(err).Msg("event publisher close failed")
		}
	}()

	providers, err := newProviders(cfg.Gateway, logger.Component(log, "provider"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize payment providers")
	}
	log.Info().Strs("providers", providers.Names()).Msg("payment providers registered")

	depositSvc := service.NewDepositOrderService(
		depositOrderRepo,
		ledgerSvc,
		providers,
		submitGuard,
		service.DepositOptions{
			OrderTTL:    cfg.Deposits.OrderTTL,
			Subject:     cfg.Deposits.Subject,
			BatchSize:   cfg.Deposits.SyncBatchSize,
			ResubmitTTL: cfg.Ledger.ResubmitTTL,
		},
		logger.Component(log, "deposits"),
	)

	// Background sweeps; each done channel closes after its last sweep.
	var sweeps []<-chan struct{}
	if cfg.Reaper.Enabled {
		sweeps = append(sweeps, service.NewReaper(ledgerSvc, cfg.Reaper.Interval, logger.Component(log, "reaper")).Start(ctx))
	}
	if cfg.Deposits.SyncEnabled {
		sweeps = append(sweeps, service.NewOrderSyncer(depositSvc, cfg.Deposits.SyncInterval, logger.Component(log, "deposit-sync")).Start(ctx))
	}

	if cfg.Server.Mode == gin.ReleaseMode || cfg.Server.Mode == gin.TestMode {
		gin.SetMode(cfg.Server.Mode)
	}
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:         ledgerSvc,
		Deposits:       depositSvc,
		Settings:       settingsSvc,
		Providers:      providers,
		TokenVerifier:  service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer),
		InternalToken:  cfg.Server.InternalToken,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		RateLimit:      middleware.RateLimitRule{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window},
		PageSize:       cfg.Ledger.LedgerPageSize,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		Logger:         logger.Component(log, "http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// The pool and Redis client close in deferred calls; a sweep still in
	// flight must finish first.
	for _, done := range sweeps {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Warn().Msg("background sweep did not stop before shutdown deadline")
		}
	}

	log.Info().Msg("Server exited")
}

// newNotifier publishes to Kafka when brokers are configured and to the
// log otherwise.
func newNotifier(cfg config.EventsConfig, log zerolog.Logger) (*service.TransferNotifier, error) {
	var publisher ports.EventPublisher = events.NewLogPublisher(log)
	if cfg.Enabled && len(cfg.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, nil)
		if err != nil {
			return nil, err
		}
		publisher = kp
		log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("publishing transfer events to kafka")
	}
	return service.NewTransferNotifier(publisher, nil, log), nil
}

// newProviders always registers the manual provider, plus the HTTP gateway
// when one is configured.
func newProviders(cfg config.GatewayConfig, log zerolog.Logger) (*provider.Registry, error) {
	list := []ports.PaymentProvider{provider.NewManual()}
	if cfg.BaseURL != "" {
		gw, err := provider.NewGateway(provider.GatewayConfig{
			Name:           cfg.Name,
			BaseURL:        cfg.BaseURL,
			AppID:          cfg.AppID,
			Secret:         cfg.Secret,
			RetryIntervals: cfg.RetryIntervals,
		}, &http.Client{Timeout: cfg.Timeout}, log)
		if err != nil {
			return nil, err
		}
		list = append(list, gw)
	}
	return provider.NewRegistry(list...), nil
}
