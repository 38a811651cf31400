package dto

import (
	"time"

	"wallet-ledger/internal/core/domain"
)

// TransferRequest is the request body for a user-to-user transfer.
type TransferRequest struct {
	ToUserID string `json:"to_user_id" binding:"required,uuid"`
	Amount   string `json:"amount" binding:"required,amount"`
	OrderID  string `json:"order_id" binding:"omitempty,max=64,safe_id"`
	Note     string `json:"note" binding:"max=255"`
}

// PaymentRequest is the request body for paying a vendor.
type PaymentRequest struct {
	VendorID string `json:"vendor_id" binding:"required,uuid"`
	Amount   string `json:"amount" binding:"required,amount"`
	OrderID  string `json:"order_id" binding:"required,max=64,safe_id"`
	Note     string `json:"note" binding:"max=255"`
}

// WithdrawalRequest is the request body for a payout to an external account.
type WithdrawalRequest struct {
	Amount   string `json:"amount" binding:"required,amount"`
	Provider string `json:"provider" binding:"required,max=32,safe_id"`
	OpenID   string `json:"open_id" binding:"max=128"`
	OrderID  string `json:"order_id" binding:"omitempty,max=64,safe_id"`
	Note     string `json:"note" binding:"max=255"`
}

// DepositOrderRequest is the request body for a provider top-up. Code is
// exchanged for the payer's open id when OpenID is not given.
type DepositOrderRequest struct {
	Provider string `json:"provider" binding:"required,max=32,safe_id"`
	Amount   string `json:"amount" binding:"required,amount"`
	OpenID   string `json:"open_id" binding:"required_without=Code,max=128"`
	Code     string `json:"code" binding:"max=256"`
}

// FundRequest is the request body for internal deposits and cash-back grants.
type FundRequest struct {
	UserID  string `json:"user_id" binding:"required,uuid"`
	Amount  string `json:"amount" binding:"required,amount"`
	OrderID string `json:"order_id" binding:"required,max=64,safe_id"`
	Note    string `json:"note" binding:"max=255"`
}

// SettingRequest is the request body for updating a tunable setting.
type SettingRequest struct {
	Value string `json:"value" binding:"required,numeric_decimal"`
}

// TransferStatusRequest is the request body for resolving a flagged transfer.
type TransferStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=SUCCESS ADMIN_DENIED"`
}

// LedgerQueryParams are the query parameters of the ledger history endpoint.
type LedgerQueryParams struct {
	Type     string `form:"type" binding:"omitempty,oneof=DEPOSIT WITHDRAW TRANSFER CASHBACK PAY"`
	From     string `form:"from" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To       string `form:"to" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// BalanceResponse mirrors domain.Balance with string amounts.
type BalanceResponse struct {
	Cash  string `json:"cash"`
	Hold  string `json:"hold"`
	Total string `json:"total"`
}

// FundResponse is the response body for the fund query.
type FundResponse struct {
	FundID   string          `json:"fund_id"`
	UserID   string          `json:"user_id"`
	Currency string          `json:"currency"`
	Balance  BalanceResponse `json:"balance"`
}

// TransferResponse is the public view of a transfer.
type TransferResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	Amount    string         `json:"amount"`
	OrderID   *string        `json:"order_id,omitempty"`
	Note      string         `json:"note,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// OperationResponse is returned by operations that may also grant cash-back.
type OperationResponse struct {
	Transfer TransferResponse  `json:"transfer"`
	CashBack *TransferResponse `json:"cash_back,omitempty"`
}

// HoldResponse is the public view of a hold.
type HoldResponse struct {
	ID        string  `json:"id"`
	Amount    string  `json:"amount"`
	ExpiredAt string  `json:"expired_at"`
	OrderID   *string `json:"order_id,omitempty"`
}

// LedgerEntryResponse is one row of the ledger history.
type LedgerEntryResponse struct {
	Transfer  TransferResponse `json:"transfer"`
	Balance   BalanceResponse  `json:"balance"`
	CreatedAt string           `json:"created_at"`
}

// SettingResponse is the response body for setting reads and writes.
type SettingResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DepositOrderResponse is the public view of a top-up order.
type DepositOrderResponse struct {
	OrderID    string            `json:"order_id"`
	Provider   string            `json:"provider"`
	Amount     string            `json:"amount"`
	State      string            `json:"state"`
	ExpiresAt  string            `json:"expires_at"`
	TransferID *string           `json:"transfer_id,omitempty"`
	PayParams  map[string]string `json:"pay_params,omitempty"`
	CreatedAt  string            `json:"created_at"`
}

// SyncResponse reports how many pending deposit orders a sync settled.
type SyncResponse struct {
	Settled int `json:"settled"`
}

// ReleaseResponse reports how many holds an expiry sweep released.
type ReleaseResponse struct {
	Released int `json:"released"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func NewBalanceResponse(b domain.Balance) BalanceResponse {
	return BalanceResponse{
		Cash:  b.Cash.String(),
		Hold:  b.Hold.String(),
		Total: b.Total.String(),
	}
}

func NewFundResponse(v *domain.FundView) FundResponse {
	return FundResponse{
		FundID:   v.FundID.String(),
		UserID:   v.UserID.String(),
		Currency: v.Currency,
		Balance:  NewBalanceResponse(v.Balance),
	}
}

func NewTransferResponse(t *domain.Transfer) TransferResponse {
	return TransferResponse{
		ID:        t.UUID.String(),
		Type:      string(t.Type),
		Status:    string(t.Status),
		Amount:    t.Amount.String(),
		OrderID:   t.OrderID,
		Note:      t.Note,
		Extra:     t.Extra,
		CreatedAt: formatTime(t.CreatedAt),
	}
}

// NewOperationResponse maps a transfer and its optional cash-back.
func NewOperationResponse(t, cashBack *domain.Transfer) OperationResponse {
	resp := OperationResponse{Transfer: NewTransferResponse(t)}
	if cashBack != nil {
		cb := NewTransferResponse(cashBack)
		resp.CashBack = &cb
	}
	return resp
}

func NewHoldResponses(holds []domain.Hold) []HoldResponse {
	out := make([]HoldResponse, 0, len(holds))
	for _, h := range holds {
		out = append(out, HoldResponse{
			ID:        h.UUID.String(),
			Amount:    h.Amount.String(),
			ExpiredAt: formatTime(h.ExpiredAt),
			OrderID:   h.OrderID,
		})
	}
	return out
}

func NewLedgerEntryResponses(entries []domain.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		out = append(out, LedgerEntryResponse{
			Transfer:  NewTransferResponse(&e.Transfer),
			Balance:   NewBalanceResponse(e.Action.Balance),
			CreatedAt: formatTime(e.Action.CreatedAt),
		})
	}
	return out
}

func NewDepositOrderResponse(o *domain.DepositOrder, payParams map[string]string) DepositOrderResponse {
	resp := DepositOrderResponse{
		OrderID:   o.OrderID,
		Provider:  o.Provider,
		Amount:    o.Amount.String(),
		State:     string(o.State),
		ExpiresAt: formatTime(o.ExpiresAt),
		PayParams: payParams,
		CreatedAt: formatTime(o.CreatedAt),
	}
	if o.TransferID != nil {
		id := o.TransferID.String()
		resp.TransferID = &id
	}
	return resp
}
