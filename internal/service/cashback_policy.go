package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

// RateCashBackPolicy grants a flat percentage of deposits and payments,
// read from the cashback.rate setting. A zero rate disables cash-back.
type RateCashBackPolicy struct {
	settings ports.SettingsProvider
}

// NewRateCashBackPolicy creates a policy backed by the settings provider.
func NewRateCashBackPolicy(settings ports.SettingsProvider) *RateCashBackPolicy {
	return &RateCashBackPolicy{settings: settings}
}

// Evaluate returns amount * rate, or nil when nothing is earned.
func (p *RateCashBackPolicy) Evaluate(ctx context.Context, event ports.CashBackEvent) (*ports.CashBackGrant, error) {
	rate, err := p.settings.Get(ctx, domain.SettingCashBackRate, decimal.Zero)
	if err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, nil
	}

	amount := domain.NormalizeAmount(event.Amount.Mul(rate))
	if !amount.IsPositive() {
		return nil, nil
	}

	grant := &ports.CashBackGrant{
		Amount: amount,
		Note:   fmt.Sprintf("cash-back %s%% on %s", rate.Shift(2).String(), event.Kind),
	}
	if event.OrderID != "" {
		grant.OrderID = fmt.Sprintf("cb:%s:%s", event.Kind, event.OrderID)
	}
	return grant, nil
}
