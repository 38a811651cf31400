package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// memDepositOrders is an in-memory ports.DepositOrderRepository.
type memDepositOrders struct {
	mu        sync.Mutex
	nextID    int64
	byOrderID map[string]*domain.DepositOrder
	// updateErr is returned once by the next UpdateState.
	updateErr error
}

func newMemDepositOrders() *memDepositOrders {
	return &memDepositOrders{byOrderID: map[string]*domain.DepositOrder{}}
}

func (m *memDepositOrders) Create(_ context.Context, o *domain.DepositOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOrderID[o.OrderID]; ok {
		return domain.ErrDuplicate
	}
	m.nextID++
	o.ID = m.nextID
	cp := *o
	m.byOrderID[o.OrderID] = &cp
	return nil
}

func (m *memDepositOrders) GetByOrderID(_ context.Context, orderID string) (*domain.DepositOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byOrderID[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memDepositOrders) ListPending(_ context.Context, limit int) ([]domain.DepositOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DepositOrder
	for id := int64(1); id <= m.nextID && len(out) < limit; id++ {
		for _, o := range m.byOrderID {
			if o.ID == id && o.State == domain.DepositOrderPending {
				out = append(out, *o)
			}
		}
	}
	return out, nil
}

func (m *memDepositOrders) UpdateState(ctx context.Context, id int64, from, to domain.DepositOrderState, transferID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.updateErr != nil {
		err := m.updateErr
		m.updateErr = nil
		return err
	}
	for _, o := range m.byOrderID {
		if o.ID != id {
			continue
		}
		if o.State != from {
			return domain.ErrStatusConflict
		}
		o.State = to
		if transferID != nil {
			o.TransferID = transferID
		}
		return nil
	}
	return domain.ErrStatusConflict
}

type providerMap map[string]ports.PaymentProvider

func (p providerMap) Get(name string) (ports.PaymentProvider, error) {
	if prov, ok := p[name]; ok {
		return prov, nil
	}
	return nil, apperror.ErrUnsupportedProvider(name)
}

type depositTestDeps struct {
	svc      *DepositOrderService
	orders   *memDepositOrders
	ledger   *mocks.MockLedgerService
	provider *mocks.MockPaymentProvider
	now      time.Time
}

func setupDepositService(t *testing.T) *depositTestDeps {
	ctrl := gomock.NewController(t)
	d := &depositTestDeps{
		orders:   newMemDepositOrders(),
		ledger:   mocks.NewMockLedgerService(ctrl),
		provider: mocks.NewMockPaymentProvider(ctrl),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	d.provider.EXPECT().Name().Return("wechat").AnyTimes()
	d.svc = NewDepositOrderService(d.orders, d.ledger, providerMap{"wechat": d.provider}, nil,
		DepositOptions{OrderTTL: time.Hour, Subject: "Top-up", BatchSize: 10}, zerolog.Nop())
	d.svc.now = func() time.Time { return d.now }
	return d
}

func (d *depositTestDeps) create(t *testing.T, userID uuid.UUID, amount string) *domain.DepositOrder {
	t.Helper()
	d.provider.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(map[string]string{"prepay_id": "wx1"}, nil)
	res, err := d.svc.CreateOrder(context.Background(), ports.DepositOrderRequest{
		UserID: userID, Provider: d.provider, Amount: dec(amount), OpenID: "openid-1",
	})
	require.NoError(t, err)
	return res.Order
}

func TestDepositOrderService_CreateOrder(t *testing.T) {
	d := setupDepositService(t)
	user := uuid.New()

	d.provider.EXPECT().GetOpenID(gomock.Any(), "auth-code").Return("openid-9", nil)
	d.provider.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.OrderRequest) (map[string]string, error) {
			assert.Equal(t, "openid-9", req.OpenID)
			assert.Equal(t, "Top-up", req.Subject)
			assertDecimal(t, "25.5", req.Amount)
			assert.Len(t, req.OrderID, 32)
			return map[string]string{"prepay_id": "wx1"}, nil
		})

	res, err := d.svc.CreateOrder(context.Background(), ports.DepositOrderRequest{
		UserID: user, Provider: d.provider, Amount: dec("25.50"), Code: "auth-code",
	})
	require.NoError(t, err)
	assert.Equal(t, "wx1", res.PayParams["prepay_id"])
	assert.Equal(t, domain.DepositOrderPending, res.Order.State)
	assert.Equal(t, d.now.Add(time.Hour), res.Order.ExpiresAt)

	stored, err := d.svc.GetOrder(context.Background(), res.Order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, user, stored.UserID)
	assert.Equal(t, "wechat", stored.Provider)
}

func TestDepositOrderService_CreateOrder_Rejections(t *testing.T) {
	d := setupDepositService(t)
	ctx := context.Background()

	_, err := d.svc.CreateOrder(ctx, ports.DepositOrderRequest{UserID: uuid.New(), Provider: d.provider, Amount: dec("0"), OpenID: "o"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAmount))

	_, err = d.svc.CreateOrder(ctx, ports.DepositOrderRequest{UserID: uuid.New(), Provider: d.provider, Amount: dec("5")})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAmount), "missing open id is a validation error")

	_, err = d.svc.CreateOrder(ctx, ports.DepositOrderRequest{UserID: uuid.New(), Amount: dec("5"), OpenID: "o"})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnsupportedProvider))

	d.provider.EXPECT().GetOpenID(gomock.Any(), "bad").Return("", errors.New("invalid code"))
	_, err = d.svc.CreateOrder(ctx, ports.DepositOrderRequest{UserID: uuid.New(), Provider: d.provider, Amount: dec("5"), Code: "bad"})
	assert.True(t, apperror.HasCode(err, apperror.CodeProviderFailed))
	assert.Empty(t, d.orders.byOrderID, "nothing is stored before the provider accepts the payer")
}

func TestDepositOrderService_CreateOrder_ProviderRejectsClosesOrder(t *testing.T) {
	d := setupDepositService(t)
	d.provider.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(nil, errors.New("merchant suspended"))

	_, err := d.svc.CreateOrder(context.Background(), ports.DepositOrderRequest{
		UserID: uuid.New(), Provider: d.provider, Amount: dec("5"), OpenID: "o",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeProviderFailed))

	require.Len(t, d.orders.byOrderID, 1)
	for _, o := range d.orders.byOrderID {
		assert.Equal(t, domain.DepositOrderClosed, o.State)
	}
}

func TestDepositOrderService_CreateOrder_Resubmitted(t *testing.T) {
	d := setupDepositService(t)
	guard := mocks.NewMockSubmitGuard(gomock.NewController(t))
	guard.EXPECT().Guard(gomock.Any(), domain.OpTopUp, gomock.Any(), "req-1", gomock.Any()).Return(false, nil)
	d.svc.guard = guard

	_, err := d.svc.CreateOrder(context.Background(), ports.DepositOrderRequest{
		UserID: uuid.New(), Provider: d.provider, Amount: dec("5"), OpenID: "o", RequestID: "req-1",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadySubmitted))
}

func TestDepositOrderService_SyncOrder_PaidCreditsDeposit(t *testing.T) {
	d := setupDepositService(t)
	user := uuid.New()
	order := d.create(t, user, "40")
	transfer := &domain.Transfer{Model: domain.Model{UUID: uuid.New()}}

	d.provider.EXPECT().QueryOrder(gomock.Any(), order.OrderID).Return(ports.OrderStatePaid, nil)
	d.ledger.EXPECT().Deposit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.FundRequest) (*ports.TransferResult, error) {
			assert.Equal(t, user, req.UserID)
			assertDecimal(t, "40", req.Amount)
			assert.Equal(t, order.OrderID, req.OrderID)
			assert.Empty(t, req.RequestID)
			return &ports.TransferResult{Transfer: transfer}, nil
		})

	got, err := d.svc.SyncOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositOrderPaid, got.State)
	require.NotNil(t, got.TransferID)
	assert.Equal(t, transfer.UUID, *got.TransferID)

	// Settled orders are not queried again.
	again, err := d.svc.SyncOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositOrderPaid, again.State)
}

func TestDepositOrderService_SyncOrder_AlreadyCreditedRecoversTransfer(t *testing.T) {
	d := setupDepositService(t)
	order := d.create(t, uuid.New(), "40")
	existing := &domain.Transfer{Model: domain.Model{UUID: uuid.New()}}

	d.provider.EXPECT().QueryOrder(gomock.Any(), order.OrderID).Return(ports.OrderStatePaid, nil)
	d.ledger.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDuplicateOperation())
	d.ledger.EXPECT().GetTransfer(gomock.Any(), domain.TransferTypeDeposit, order.OrderID).Return(existing, nil)

	got, err := d.svc.SyncOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositOrderPaid, got.State)
	assert.Equal(t, existing.UUID, *got.TransferID)
}

func TestDepositOrderService_SyncOrder_PendingAndClosed(t *testing.T) {
	d := setupDepositService(t)
	waiting := d.create(t, uuid.New(), "10")
	cancelled := d.create(t, uuid.New(), "10")

	d.provider.EXPECT().QueryOrder(gomock.Any(), waiting.OrderID).Return(ports.OrderStatePending, nil)
	got, err := d.svc.SyncOrder(context.Background(), waiting.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositOrderPending, got.State)

	d.provider.EXPECT().QueryOrder(gomock.Any(), cancelled.OrderID).Return(ports.OrderStateClosed, nil)
	got, err = d.svc.SyncOrder(context.Background(), cancelled.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositOrderClosed, got.State)
	assert.Nil(t, got.TransferID)
}

func TestDepositOrderService_SyncOrder_ExpiredUnpaidCloses(t *testing.T) {
	d := setupDepositService(t)
	order := d.create(t, uuid.New(), "10")
	d.now = d.now.Add(time.Hour)

	d.provider.EXPECT().QueryOrder(gomock.Any(), order.OrderID).Return(ports.OrderStatePending, nil)
	got, err := d.svc.SyncOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositOrderClosed, got.State)
}

func TestDepositOrderService_SyncOrder_Errors(t *testing.T) {
	d := setupDepositService(t)

	_, err := d.svc.SyncOrder(context.Background(), "missing")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	order := d.create(t, uuid.New(), "10")
	d.provider.EXPECT().QueryOrder(gomock.Any(), order.OrderID).Return(ports.OrderState(""), errors.New("timeout"))
	_, err = d.svc.SyncOrder(context.Background(), order.OrderID)
	assert.True(t, apperror.HasCode(err, apperror.CodeProviderFailed))

	stored, err := d.svc.GetOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositOrderPending, stored.State)
}

func TestDepositOrderService_SyncPending(t *testing.T) {
	d := setupDepositService(t)
	paid := d.create(t, uuid.New(), "10")
	waiting := d.create(t, uuid.New(), "10")
	broken := d.create(t, uuid.New(), "10")

	d.provider.EXPECT().QueryOrder(gomock.Any(), paid.OrderID).Return(ports.OrderStatePaid, nil)
	d.provider.EXPECT().QueryOrder(gomock.Any(), waiting.OrderID).Return(ports.OrderStatePending, nil)
	d.provider.EXPECT().QueryOrder(gomock.Any(), broken.OrderID).Return(ports.OrderState(""), errors.New("timeout"))
	d.ledger.EXPECT().Deposit(gomock.Any(), gomock.Any()).
		Return(&ports.TransferResult{Transfer: &domain.Transfer{Model: domain.Model{UUID: uuid.New()}}}, nil)

	n, err := d.svc.SyncPending(context.Background())
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken.OrderID)
}

func TestDepositOrderService_CreditsOnceAcrossRetries(t *testing.T) {
	ld := setupLedgerService(t)
	d := setupDepositService(t)
	d.svc.ledger = ld.svc
	user := uuid.New()
	order := d.create(t, user, "40")

	d.provider.EXPECT().QueryOrder(gomock.Any(), order.OrderID).Return(ports.OrderStatePaid, nil).Times(2)

	// The deposit commits but marking the order PAID fails.
	d.orders.updateErr = errors.New("connection reset")
	_, err := d.svc.SyncOrder(context.Background(), order.OrderID)
	require.Error(t, err)
	assertDecimal(t, "40", ld.balance(t, user).Cash)

	got, err := d.svc.SyncOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositOrderPaid, got.State)
	assertDecimal(t, "40", ld.balance(t, user).Cash, "a second sync must not credit again")

	transfer, err := ld.svc.GetTransfer(context.Background(), domain.TransferTypeDeposit, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, transfer.UUID, *got.TransferID)
}

func TestDepositOrderService_PaidMarkSurvivesCallerGone(t *testing.T) {
	d := setupDepositService(t)
	order := d.create(t, uuid.New(), "40")
	ctx, cancel := context.WithCancel(context.Background())

	d.provider.EXPECT().QueryOrder(gomock.Any(), order.OrderID).Return(ports.OrderStatePaid, nil)
	d.ledger.EXPECT().Deposit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, ports.FundRequest) (*ports.TransferResult, error) {
			cancel()
			return &ports.TransferResult{Transfer: &domain.Transfer{Model: domain.Model{UUID: uuid.New()}}}, nil
		})

	got, err := d.svc.SyncOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepositOrderPaid, got.State)
}

func TestOrderSyncer_RunOnce(t *testing.T) {
	d := setupDepositService(t)
	order := d.create(t, uuid.New(), "10")
	d.provider.EXPECT().QueryOrder(gomock.Any(), order.OrderID).Return(ports.OrderStateClosed, nil)

	n, err := NewOrderSyncer(d.svc, time.Minute, zerolog.Nop()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
