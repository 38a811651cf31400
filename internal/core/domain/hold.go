package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Hold is credited money that is not yet liquid. It is consumed by outbound
// transfers or released to cash once ExpiredAt passes.
type Hold struct {
	Model
	FundID    int64           `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	ExpiredAt time.Time       `json:"expired_at"`
	OrderID   *string         `json:"order_id,omitempty"`
}

// IsExpired returns true once the hold may be released to cash.
func (h *Hold) IsExpired(now time.Time) bool {
	return !h.ExpiredAt.After(now)
}
