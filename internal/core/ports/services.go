package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks wallet-ledger/internal/core/ports CashBackPolicy,DepositService,EventPublisher,HealthChecker,LedgerService,PaymentProvider,SettingsProvider,SubmitGuard,TokenVerifier

// SubmitGuard is the short-window resubmission guard.
type SubmitGuard interface {
	// Guard atomically sets a marker for (operation, caller, request).
	// Returns true if the marker was newly set, false if it already existed.
	Guard(ctx context.Context, operation, callerID, requestID string, ttl time.Duration) (bool, error)
}

// TokenVerifier validates bearer tokens minted by the external auth service.
type TokenVerifier interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// CashBackKind names the event a cash-back decision is requested for.
type CashBackKind string

const (
	CashBackKindDeposit CashBackKind = "DEPOSIT"
	CashBackKindPay     CashBackKind = "PAY"
)

// CashBackEvent describes a completed-to-be operation that may earn cash-back.
type CashBackEvent struct {
	Kind    CashBackKind
	UserID  uuid.UUID
	Amount  decimal.Decimal
	OrderID string
}

// CashBackGrant is an approved cash-back amount.
type CashBackGrant struct {
	Amount  decimal.Decimal
	OrderID string
	Note    string
}

// CashBackPolicy decides cash-back eligibility. A nil grant means none.
type CashBackPolicy interface {
	Evaluate(ctx context.Context, event CashBackEvent) (*CashBackGrant, error)
}

// OrderState is a provider-reported payment order state.
type OrderState string

const (
	OrderStatePending OrderState = "PENDING"
	OrderStatePaid    OrderState = "PAID"
	OrderStateClosed  OrderState = "CLOSED"
)

// OrderRequest holds input for creating a provider payment order.
type OrderRequest struct {
	OrderID string
	OpenID  string
	Amount  decimal.Decimal
	Subject string
}

// WithdrawRequest holds input for a provider payout.
type WithdrawRequest struct {
	OrderID string
	OpenID  string
	Amount  decimal.Decimal
	Note    string
}

// WithdrawReceipt is the provider's record of a completed payout.
type WithdrawReceipt struct {
	ProviderTxID string
	PaidAt       time.Time
}

// PaymentProvider is the capability set of a third-party payment gateway.
type PaymentProvider interface {
	Name() string
	GetOpenID(ctx context.Context, code string) (string, error)
	CreateOrder(ctx context.Context, req OrderRequest) (map[string]string, error)
	QueryOrder(ctx context.Context, orderID string) (OrderState, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawReceipt, error)
}

// ProviderRegistry resolves a payment provider by name.
type ProviderRegistry interface {
	Get(name string) (PaymentProvider, error)
}

// EventPublisher ships ledger events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload []byte) error
	Close() error
}

// SettingsProvider supplies tunable numeric parameters.
type SettingsProvider interface {
	Get(ctx context.Context, name string, def decimal.Decimal) (decimal.Decimal, error)
	Set(ctx context.Context, name string, value decimal.Decimal) error
	CashBackThreshold(ctx context.Context) (decimal.Decimal, error)
	CashBackExpiredDays(ctx context.Context) (int, error)
}

// --- Service Ports (Business Logic) ---

// LedgerService defines the wallet ledger operations.
type LedgerService interface {
	Deposit(ctx context.Context, req FundRequest) (*TransferResult, error)
	Withdraw(ctx context.Context, req FundRequest) (*domain.Transfer, error)
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transfer, error)
	Pay(ctx context.Context, req TransferRequest) (*TransferResult, error)
	GrantCashBack(ctx context.Context, req FundRequest) (*domain.Transfer, error)
	Payout(ctx context.Context, req PayoutRequest) (*domain.Transfer, error)
	QueryFund(ctx context.Context, userID uuid.UUID) (*domain.FundView, error)
	QueryHolds(ctx context.Context, userID uuid.UUID) ([]domain.Hold, error)
	QueryLedger(ctx context.Context, userID uuid.UUID, query LedgerQuery) ([]domain.LedgerEntry, int64, error)
	ReleaseExpiredHolds(ctx context.Context) (int, error)
	ResolveTransfer(ctx context.Context, transferID uuid.UUID, status domain.TransferStatus) (*domain.Transfer, error)
	GetTransfer(ctx context.Context, transferType domain.TransferType, orderID string) (*domain.Transfer, error)
}

// DepositService runs provider top-ups: it opens a payment order and later
// credits the fund once the provider reports it paid.
type DepositService interface {
	CreateOrder(ctx context.Context, req DepositOrderRequest) (*DepositOrderResult, error)
	GetOrder(ctx context.Context, orderID string) (*domain.DepositOrder, error)
	SyncOrder(ctx context.Context, orderID string) (*domain.DepositOrder, error)
	SyncPending(ctx context.Context) (int, error)
}

// DepositOrderRequest holds validated input for opening a top-up. OpenID is
// resolved from Code through the provider when empty.
type DepositOrderRequest struct {
	UserID    uuid.UUID
	Provider  PaymentProvider
	Amount    decimal.Decimal
	OpenID    string
	Code      string
	RequestID string
}

// DepositOrderResult is a stored order plus the provider's client-side
// payment parameters.
type DepositOrderResult struct {
	Order     *domain.DepositOrder
	PayParams map[string]string
}

// FundRequest holds validated input for single-fund operations.
type FundRequest struct {
	UserID    uuid.UUID
	Amount    decimal.Decimal
	OrderID   string
	Note      string
	RequestID string
}

// TransferRequest holds validated input for two-party operations.
type TransferRequest struct {
	FromUserID uuid.UUID
	ToUserID   uuid.UUID
	Amount     decimal.Decimal
	OrderID    string
	Note       string
	RequestID  string
}

// PayoutRequest holds input for a withdrawal paid out through a provider.
type PayoutRequest struct {
	FundRequest
	Provider PaymentProvider
	OpenID   string
}

// LedgerQuery holds filter + pagination for ledger history.
type LedgerQuery struct {
	Type     *domain.TransferType
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// TransferResult is an operation's transfer plus an optional cash-back grant.
type TransferResult struct {
	Transfer *domain.Transfer
	CashBack *domain.Transfer
}
