package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Well-known setting names.
const (
	SettingCashBackThreshold   = "cashback.threshold"
	SettingCashBackExpiredDays = "cashback.expired.days"
	SettingCashBackRate        = "cashback.rate"
)

// Setting is a named numeric quota.
type Setting struct {
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}
