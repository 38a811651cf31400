package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DepositOptions tunes provider top-ups.
type DepositOptions struct {
	OrderTTL    time.Duration
	Subject     string
	BatchSize   int
	ResubmitTTL time.Duration
}

// DepositOrderService implements ports.DepositService.
// A top-up is a provider payment order stored PENDING; it is credited
// through LedgerService.Deposit with the order number as order id, so a
// paid order can be synced any number of times and credits exactly once.
type DepositOrderService struct {
	orders    ports.DepositOrderRepository
	ledger    ports.LedgerService
	providers ports.ProviderRegistry
	guard     ports.SubmitGuard
	opts      DepositOptions
	now       func() time.Time
	log       zerolog.Logger
}

func NewDepositOrderService(
	orders ports.DepositOrderRepository,
	ledger ports.LedgerService,
	providers ports.ProviderRegistry,
	guard ports.SubmitGuard,
	opts DepositOptions,
	log zerolog.Logger,
) *DepositOrderService {
	if opts.OrderTTL <= 0 {
		opts.OrderTTL = 2 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Subject == "" {
		opts.Subject = "Wallet top-up"
	}
	return &DepositOrderService{
		orders:    orders,
		ledger:    ledger,
		providers: providers,
		guard:     guard,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// CreateOrder stores a PENDING order and opens it at the provider. The
// returned PayParams are handed to the client to complete the payment.
func (s *DepositOrderService) CreateOrder(ctx context.Context, req ports.DepositOrderRequest) (*ports.DepositOrderResult, error) {
	if req.Provider == nil {
		return nil, apperror.ErrUnsupportedProvider("")
	}
	amount, err := validAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := guardSubmit(ctx, s.guard, s.opts.ResubmitTTL, s.log, domain.OpTopUp, req.UserID.String(), req.RequestID); err != nil {
		return nil, err
	}

	openID := req.OpenID
	if openID == "" && req.Code != "" {
		if openID, err = req.Provider.GetOpenID(ctx, req.Code); err != nil {
			return nil, apperror.ErrProviderFailed(err)
		}
	}
	if openID == "" {
		return nil, apperror.Validation("open_id or code is required")
	}

	now := s.now()
	order := &domain.DepositOrder{
		Model:     domain.Model{UUID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		UserID:    req.UserID,
		Provider:  req.Provider.Name(),
		OrderID:   domain.NewDepositOrderID(),
		Amount:    amount,
		State:     domain.DepositOrderPending,
		ExpiresAt: now.Add(s.opts.OrderTTL),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, apperror.ErrDuplicateOperation()
		}
		return nil, apperror.InternalError(fmt.Errorf("create deposit order: %w", err))
	}

	params, err := req.Provider.CreateOrder(ctx, ports.OrderRequest{
		OrderID: order.OrderID,
		OpenID:  openID,
		Amount:  amount,
		Subject: s.opts.Subject,
	})
	if err != nil {
		s.closeAbandoned(ctx, order, err)
		return nil, apperror.ErrProviderFailed(err)
	}

	s.log.Info().
		Str("order_id", order.OrderID).
		Str("user_id", order.UserID.String()).
		Str("provider", order.Provider).
		Str("amount", amount.String()).
		Msg("deposit order created")
	return &ports.DepositOrderResult{Order: order, PayParams: params}, nil
}

// closeAbandoned closes an order the provider never accepted.
func (s *DepositOrderService) closeAbandoned(ctx context.Context, order *domain.DepositOrder, cause error) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()

	logEvt := s.log.Warn().Err(cause).Str("order_id", order.OrderID).Str("provider", order.Provider)
	if err := s.orders.UpdateState(closeCtx, order.ID, domain.DepositOrderPending, domain.DepositOrderClosed, nil); err != nil {
		logEvt.AnErr("close_error", err).Msg("provider rejected deposit order and it could not be closed")
		return
	}
	order.State = domain.DepositOrderClosed
	logEvt.Msg("provider rejected deposit order")
}

func (s *DepositOrderService) GetOrder(ctx context.Context, orderID string) (*domain.DepositOrder, error) {
	order, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get deposit order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("deposit order")
	}
	return order, nil
}

// SyncOrder asks the provider for the order's state and settles it. Orders
// that already left PENDING are returned as stored.
func (s *DepositOrderService) SyncOrder(ctx context.Context, orderID string) (*domain.DepositOrder, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.State != domain.DepositOrderPending {
		return order, nil
	}
	return s.sync(ctx, order)
}

// SyncPending syncs one batch of pending orders, oldest first, and returns
// how many of them left PENDING. Failures do not stop the batch.
func (s *DepositOrderService) SyncPending(ctx context.Context) (int, error) {
	orders, err := s.orders.ListPending(ctx, s.opts.BatchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list pending deposit orders: %w", err))
	}

	settled := 0
	var errs []error
	for i := range orders {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		order, err := s.sync(ctx, &orders[i])
		if err != nil {
			s.log.Warn().Err(err).Str("order_id", orders[i].OrderID).Msg("deposit order sync failed")
			errs = append(errs, fmt.Errorf("order %s: %w", orders[i].OrderID, err))
			continue
		}
		if order.State != domain.DepositOrderPending {
			settled++
		}
	}
	return settled, errors.Join(errs...)
}

func (s *DepositOrderService) sync(ctx context.Context, order *domain.DepositOrder) (*domain.DepositOrder, error) {
	provider, err := s.providers.Get(order.Provider)
	if err != nil {
		return nil, err
	}
	state, err := provider.QueryOrder(ctx, order.OrderID)
	if err != nil {
		return nil, apperror.ErrProviderFailed(err)
	}

	switch state {
	case ports.OrderStatePaid:
		return s.credit(ctx, order)
	case ports.OrderStateClosed:
		return s.transition(ctx, order, domain.DepositOrderClosed, nil, "deposit order closed by provider")
	default:
		if order.IsExpired(s.now()) {
			return s.transition(ctx, order, domain.DepositOrderClosed, nil, "deposit order expired unpaid")
		}
		return order, nil
	}
}

// credit applies the deposit. A duplicate means an earlier sync already
// credited the order but did not get to mark it PAID.
func (s *DepositOrderService) credit(ctx context.Context, order *domain.DepositOrder) (*domain.DepositOrder, error) {
	var transferID uuid.UUID
	result, err := s.ledger.Deposit(ctx, ports.FundRequest{
		UserID:  order.UserID,
		Amount:  order.Amount,
		OrderID: order.OrderID,
		Note:    "top-up via " + order.Provider,
	})
	switch {
	case err == nil:
		transferID = result.Transfer.UUID
	case apperror.HasCode(err, apperror.CodeDuplicateOperation):
		existing, err := s.ledger.GetTransfer(ctx, domain.TransferTypeDeposit, order.OrderID)
		if err != nil {
			return nil, err
		}
		transferID = existing.UUID
	default:
		return nil, err
	}

	// The deposit is committed; record it even if the caller has gone.
	bookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()
	return s.transition(bookCtx, order, domain.DepositOrderPaid, &transferID, "deposit order paid")
}

func (s *DepositOrderService) transition(ctx context.Context, order *domain.DepositOrder, to domain.DepositOrderState, transferID *uuid.UUID, msg string) (*domain.DepositOrder, error) {
	err := s.orders.UpdateState(ctx, order.ID, domain.DepositOrderPending, to, transferID)
	if errors.Is(err, domain.ErrStatusConflict) {
		// Another sync settled it first.
		return s.GetOrder(ctx, order.OrderID)
	}
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update deposit order: %w", err))
	}

	order.State = to
	if transferID != nil {
		order.TransferID = transferID
	}
	s.log.Info().
		Str("order_id", order.OrderID).
		Str("user_id", order.UserID.String()).
		Str("state", string(to)).
		Msg(msg)
	return order, nil
}
