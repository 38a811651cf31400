package handler

import (
	"time"

	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger         ports.LedgerService
	Deposits       ports.DepositService
	Settings       ports.SettingsProvider
	Providers      ProviderLookup
	TokenVerifier  ports.TokenVerifier
	InternalToken  string
	RateLimitStore middleware.Counter // nil = rate limiting disabled
	RateLimit      middleware.RateLimitRule
	PageSize       int
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil || deps.RateLimit.Limit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		rule := deps.RateLimit
		if rule.Window <= 0 {
			rule.Window = time.Minute
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- User routes (bearer token) ---
	v1 := r.Group("/api/v1", middleware.BearerAuth(deps.TokenVerifier))

	fundHandler := NewFundHandler(deps.Ledger, deps.PageSize)
	funds := v1.Group("/funds/me", rl("funds"))
	{
		funds.GET("", fundHandler.GetFund)
		funds.GET("/holds", fundHandler.ListHolds)
		funds.GET("/ledger", fundHandler.ListLedger)
	}

	transferHandler := NewTransferHandler(deps.Ledger, deps.Providers)
	v1.POST("/transfers", rl("transfers"), transferHandler.Transfer)
	v1.POST("/payments", rl("payments"), transferHandler.Pay)
	v1.POST("/withdrawals", rl("withdrawals"), transferHandler.Withdraw)

	depositHandler := NewDepositHandler(deps.Deposits, deps.Providers)
	v1.POST("/deposits/orders", rl("deposits"), depositHandler.CreateOrder)
	v1.GET("/deposits/orders/:order_id", rl("deposits"), depositHandler.GetOrder)

	// --- Internal routes (shared token) ---
	adminHandler := NewAdminHandler(deps.Ledger, deps.Settings)
	internal := r.Group("/internal", middleware.InternalAuth(deps.InternalToken))
	{
		internal.POST("/deposits", adminHandler.Deposit)
		internal.POST("/deposits/sync", depositHandler.SyncPending)
		internal.POST("/deposits/orders/:order_id/sync", depositHandler.SyncOrder)
		internal.POST("/cashbacks", adminHandler.GrantCashBack)
		internal.POST("/holds/release", adminHandler.ReleaseHolds)
		internal.GET("/settings/:name", adminHandler.GetSetting)
		internal.PUT("/settings/:name", adminHandler.PutSetting)
		internal.GET("/transfers/:type/:order_id", adminHandler.GetTransfer)
		internal.PUT("/transfers/:id/status", adminHandler.ResolveTransfer)
	}

	return r
}
