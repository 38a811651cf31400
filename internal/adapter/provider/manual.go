package provider

import (
	"context"
	"errors"

	"wallet-ledger/internal/core/ports"
)

// ManualName is the registry key of the treasury-desk provider.
const ManualName = "manual"

// ErrManualPayout is returned for every payout routed to the manual provider.
var ErrManualPayout = errors.New("manual payout: funds must be sent by the treasury desk")

// Manual is a provider with no external integration. Payouts always fail
// with ErrManualPayout so the withdrawal lands in ADMIN_REQUIRED.
type Manual struct{}

// NewManual creates the manual provider.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Name() string {
	return ManualName
}

// GetOpenID treats the code itself as the payee account reference.
func (m *Manual) GetOpenID(_ context.Context, code string) (string, error) {
	if code == "" {
		return "", errors.New("manual: empty payee reference")
	}
	return code, nil
}

func (m *Manual) CreateOrder(_ context.Context, _ ports.OrderRequest) (map[string]string, error) {
	return nil, errors.New("manual: payment orders are not supported")
}

func (m *Manual) QueryOrder(_ context.Context, _ string) (ports.OrderState, error) {
	return ports.OrderStatePending, nil
}

func (m *Manual) Withdraw(_ context.Context, _ ports.WithdrawRequest) (*ports.WithdrawReceipt, error) {
	return nil, ErrManualPayout
}
