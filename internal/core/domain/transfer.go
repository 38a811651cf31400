package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferType represents the kind of money movement.
type TransferType string

const (
	TransferTypeDeposit  TransferType = "DEPOSIT"
	TransferTypeWithdraw TransferType = "WITHDRAW"
	TransferTypeTransfer TransferType = "TRANSFER"
	TransferTypeCashBack TransferType = "CASHBACK"
	TransferTypePay      TransferType = "PAY"
)

// Valid reports whether t is one of the known transfer types.
func (t TransferType) Valid() bool {
	switch t {
	case TransferTypeDeposit, TransferTypeWithdraw, TransferTypeTransfer,
		TransferTypeCashBack, TransferTypePay:
		return true
	}
	return false
}

// TransferStatus represents the review state of a transfer.
type TransferStatus string

const (
	TransferStatusSuccess       TransferStatus = "SUCCESS"
	TransferStatusAdminRequired TransferStatus = "ADMIN_REQUIRED"
	TransferStatusAdminDenied   TransferStatus = "ADMIN_DENIED"
)

// Transfer is the immutable record of one balance-changing event.
// FromUserID is only set for PAY, where the payer has no debited fund.
type Transfer struct {
	Model
	FromFundID *int64          `json:"-"`
	ToFundID   *int64          `json:"-"`
	FromUserID *uuid.UUID      `json:"from_user_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Type       TransferType    `json:"type"`
	Status     TransferStatus  `json:"status"`
	Note       string          `json:"note,omitempty"`
	OrderID    *string         `json:"order_id,omitempty"`
	Extra      map[string]any  `json:"extra,omitempty"`
}

// IsTerminal returns true if no further admin transition is possible.
func (t *Transfer) IsTerminal() bool {
	return t.Status == TransferStatusSuccess || t.Status == TransferStatusAdminDenied
}

// CanTransition reports whether an admin may move the transfer to next.
// Only ADMIN_REQUIRED -> {SUCCESS, ADMIN_DENIED} is allowed, plus
// SUCCESS -> ADMIN_REQUIRED for flagging a failed payout.
func (t *Transfer) CanTransition(next TransferStatus) bool {
	switch t.Status {
	case TransferStatusAdminRequired:
		return next == TransferStatusSuccess || next == TransferStatusAdminDenied
	case TransferStatusSuccess:
		return next == TransferStatusAdminRequired && t.Type == TransferTypeWithdraw
	}
	return false
}

// OptionalOrderID turns an empty order id into nil.
func OptionalOrderID(orderID string) *string {
	if orderID == "" {
		return nil
	}
	return &orderID
}
