package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fund is a user's balance in one currency. Only the liquid Cash part is
// stored on the row; the held part lives in the Hold sub-ledger.
type Fund struct {
	Model
	UserID   uuid.UUID       `json:"user_id"`
	Currency string          `json:"currency"`
	Cash     decimal.Decimal `json:"cash"`
}

// Balance is a point-in-time view of a fund.
type Balance struct {
	Cash  decimal.Decimal `json:"cash"`
	Hold  decimal.Decimal `json:"hold"`
	Total decimal.Decimal `json:"total"`
}

// NewBalance derives Total from cash and hold.
func NewBalance(cash, hold decimal.Decimal) Balance {
	return Balance{Cash: cash, Hold: hold, Total: cash.Add(hold)}
}

// FundView is what QueryFund returns.
type FundView struct {
	FundID   uuid.UUID `json:"fund_id"`
	UserID   uuid.UUID `json:"user_id"`
	Currency string    `json:"currency"`
	Balance
}
