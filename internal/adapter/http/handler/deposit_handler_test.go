package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sampleDepositOrder(userID uuid.UUID, state domain.DepositOrderState) *domain.DepositOrder {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &domain.DepositOrder{
		Model:     domain.NewModel(created),
		UserID:    userID,
		Provider:  "wechat",
		OrderID:   "0f1e2d3c4b5a69788796a5b4c3d2e1f0",
		Amount:    decimal.RequireFromString("30"),
		State:     state,
		ExpiresAt: created.Add(2 * time.Hour),
	}
}

func TestDepositHandler_CreateOrder(t *testing.T) {
	f := newFixture(t)
	order := sampleDepositOrder(f.userID, domain.DepositOrderPending)

	f.deposits.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.DepositOrderRequest) (*ports.DepositOrderResult, error) {
			assert.Equal(t, f.userID, req.UserID)
			assert.Equal(t, "wechat", req.Provider.Name())
			assert.Equal(t, "auth-code", req.Code)
			assert.True(t, decimal.RequireFromString("30").Equal(req.Amount))
			return &ports.DepositOrderResult{Order: order, PayParams: map[string]string{"prepay_id": "wx1"}}, nil
		})

	w, env := f.user(t, http.MethodPost, "/api/v1/deposits/orders", map[string]string{
		"provider": "wechat", "amount": "30", "code": "auth-code",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.DepositOrderResponse
	decode(t, env.Data, &resp)
	assert.Equal(t, order.OrderID, resp.OrderID)
	assert.Equal(t, "PENDING", resp.State)
	assert.Equal(t, "wx1", resp.PayParams["prepay_id"])
	assert.Nil(t, resp.TransferID)
}

func TestDepositHandler_CreateOrder_Validation(t *testing.T) {
	f := newFixture(t)

	w, env := f.user(t, http.MethodPost, "/api/v1/deposits/orders", map[string]string{
		"provider": "wechat", "amount": "30",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "open_id or code is required")
	assert.Equal(t, apperror.CodeInvalidAmount, env.ErrorCode)

	w, env = f.user(t, http.MethodPost, "/api/v1/deposits/orders", map[string]string{
		"provider": "alipay", "amount": "30", "open_id": "o",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeUnsupportedProvider, env.ErrorCode)
}

func TestDepositHandler_CreateOrder_ProviderFailed(t *testing.T) {
	f := newFixture(t)
	f.deposits.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrProviderFailed(errors.New("merchant suspended")))

	w, env := f.user(t, http.MethodPost, "/api/v1/deposits/orders", map[string]string{
		"provider": "wechat", "amount": "30", "open_id": "o",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, apperror.CodeProviderFailed, env.ErrorCode)
}

func TestDepositHandler_GetOrder_SyncsPending(t *testing.T) {
	f := newFixture(t)
	pending := sampleDepositOrder(f.userID, domain.DepositOrderPending)
	paid := *pending
	paid.State = domain.DepositOrderPaid
	transferID := uuid.New()
	paid.TransferID = &transferID

	f.deposits.EXPECT().GetOrder(gomock.Any(), pending.OrderID).Return(pending, nil)
	f.deposits.EXPECT().SyncOrder(gomock.Any(), pending.OrderID).Return(&paid, nil)

	w, env := f.user(t, http.MethodGet, "/api/v1/deposits/orders/"+pending.OrderID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.DepositOrderResponse
	decode(t, env.Data, &resp)
	assert.Equal(t, "PAID", resp.State)
	require.NotNil(t, resp.TransferID)
	assert.Equal(t, transferID.String(), *resp.TransferID)
}

func TestDepositHandler_GetOrder_ProviderDownReturnsStored(t *testing.T) {
	f := newFixture(t)
	pending := sampleDepositOrder(f.userID, domain.DepositOrderPending)

	f.deposits.EXPECT().GetOrder(gomock.Any(), pending.OrderID).Return(pending, nil)
	f.deposits.EXPECT().SyncOrder(gomock.Any(), pending.OrderID).
		Return(nil, apperror.ErrProviderFailed(errors.New("timeout")))

	w, env := f.user(t, http.MethodGet, "/api/v1/deposits/orders/"+pending.OrderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.DepositOrderResponse
	decode(t, env.Data, &resp)
	assert.Equal(t, "PENDING", resp.State)
}

func TestDepositHandler_GetOrder_OtherUsersOrderIsHidden(t *testing.T) {
	f := newFixture(t)
	order := sampleDepositOrder(uuid.New(), domain.DepositOrderPaid)
	f.deposits.EXPECT().GetOrder(gomock.Any(), order.OrderID).Return(order, nil)

	w, env := f.user(t, http.MethodGet, "/api/v1/deposits/orders/"+order.OrderID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, env.ErrorCode)
}

func TestDepositHandler_InternalSync(t *testing.T) {
	f := newFixture(t)
	order := sampleDepositOrder(f.userID, domain.DepositOrderClosed)

	f.deposits.EXPECT().SyncOrder(gomock.Any(), order.OrderID).Return(order, nil)
	w, env := f.internal(t, http.MethodPost, "/internal/deposits/orders/"+order.OrderID+"/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.DepositOrderResponse
	decode(t, env.Data, &resp)
	assert.Equal(t, "CLOSED", resp.State)

	f.deposits.EXPECT().SyncPending(gomock.Any()).Return(2, errors.New("order x: timeout"))
	w, env = f.internal(t, http.MethodPost, "/internal/deposits/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sync dto.SyncResponse
	decode(t, env.Data, &sync)
	assert.Equal(t, 2, sync.Settled)

	f.deposits.EXPECT().SyncPending(gomock.Any()).Return(0, apperror.InternalError(errors.New("db down")))
	w, _ = f.internal(t, http.MethodPost, "/internal/deposits/sync", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w, _ = f.do(t, http.MethodPost, "/internal/deposits/sync", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
