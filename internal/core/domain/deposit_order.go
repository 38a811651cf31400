package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositOrderState tracks a provider payment order until it is credited.
type DepositOrderState string

const (
	DepositOrderPending DepositOrderState = "PENDING"
	DepositOrderPaid    DepositOrderState = "PAID"
	DepositOrderClosed  DepositOrderState = "CLOSED"
)

// DepositOrder is a top-up the user pays through a provider. OrderID is the
// merchant order number sent to the provider; once the provider reports it
// paid, a DEPOSIT transfer with the same order id credits the fund.
type DepositOrder struct {
	Model
	UserID     uuid.UUID         `json:"user_id"`
	Provider   string            `json:"provider"`
	OrderID    string            `json:"order_id"`
	Amount     decimal.Decimal   `json:"amount"`
	State      DepositOrderState `json:"state"`
	ExpiresAt  time.Time         `json:"expires_at"`
	TransferID *uuid.UUID        `json:"transfer_id,omitempty"`
}

// IsExpired reports whether the provider payment window has closed.
func (o *DepositOrder) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// NewDepositOrderID returns a 32-char hex merchant order number.
func NewDepositOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
