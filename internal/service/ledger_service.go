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
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxLedgerPageSize = 100

// postCommitTimeout bounds the bookkeeping written after a payout has moved
// money. It runs detached from the request so a disconnect cannot skip it.
const postCommitTimeout = 5 * time.Second

// LedgerOptions tunes the ledger engine.
type LedgerOptions struct {
	Currency    string
	TxTimeout   time.Duration
	ResubmitTTL time.Duration
	PageSize    int
}

// LedgerServiceImpl implements ports.LedgerService.
// Every mutation is one database transaction: fund rows are locked before
// hold rows, cash only moves through conditional updates, and each touched
// fund gets an Action snapshot.
type LedgerServiceImpl struct {
	funds      ports.FundRepository
	transfers  ports.TransferRepository
	actions    ports.ActionRepository
	holds      *HoldManager
	settings   ports.SettingsProvider
	guard      ports.SubmitGuard
	policy     ports.CashBackPolicy
	transactor ports.DBTransactor
	notifier   *TransferNotifier
	opts       LedgerOptions
	now        func() time.Time
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. policy may be nil.
func NewLedgerService(
	funds ports.FundRepository,
	transfers ports.TransferRepository,
	actions ports.ActionRepository,
	holds *HoldManager,
	settings ports.SettingsProvider,
	guard ports.SubmitGuard,
	policy ports.CashBackPolicy,
	transactor ports.DBTransactor,
	opts LedgerOptions,
	log zerolog.Logger,
) *LedgerServiceImpl {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	return &LedgerServiceImpl{
		funds:      funds,
		transfers:  transfers,
		actions:    actions,
		holds:      holds,
		settings:   settings,
		guard:      guard,
		policy:     policy,
		transactor: transactor,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// WithNotifier enables post-commit transfer events.
func (s *LedgerServiceImpl) WithNotifier(n *TransferNotifier) *LedgerServiceImpl {
	s.notifier = n
	return s
}

// cashBackPlan is a policy grant with the settings it will be applied under.
type cashBackPlan struct {
	grant       ports.CashBackGrant
	threshold   decimal.Decimal
	expiredDays int
}

// Deposit credits cash to the user's fund, plus any cash-back the policy
// approves for the deposit.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.FundRequest) (*ports.TransferResult, error) {
	amount, err := validAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.checkSubmit(ctx, domain.OpDeposit, req.UserID.String(), req.RequestID); err != nil {
		return nil, err
	}

	plan, err := s.planCashBack(ctx, ports.CashBackEvent{
		Kind: ports.CashBackKindDeposit, UserID: req.UserID, Amount: amount, OrderID: req.OrderID,
	})
	if err != nil {
		return nil, err
	}

	result := &ports.TransferResult{}
	err = s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		fund, err := s.funds.GetOrCreate(ctx, tx, req.UserID, s.opts.Currency)
		if err != nil {
			return err
		}
		cash, err := s.funds.IncreaseCash(ctx, tx, fund.ID, amount)
		if err != nil {
			return err
		}

		result.Transfer = s.newTransfer(domain.TransferTypeDeposit, amount, req.OrderID, req.Note)
		result.Transfer.ToFundID = &fund.ID
		if err := s.transfers.Create(ctx, tx, result.Transfer); err != nil {
			return err
		}
		if err := s.recordAction(ctx, tx, fund.ID, result.Transfer.ID, cash); err != nil {
			return err
		}

		if plan != nil {
			result.CashBack, err = s.applyCashBack(ctx, tx, fund, *plan)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}

	s.logTransfer(result.Transfer, req.UserID, "deposit applied")
	s.notify(domain.EventTransferApplied, result.CashBack, req.UserID)
	return result, nil
}

// Withdraw debits cash only; holds are never withdrawn.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, req ports.FundRequest) (*domain.Transfer, error) {
	amount, err := validAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.checkSubmit(ctx, domain.OpWithdraw, req.UserID.String(), req.RequestID); err != nil {
		return nil, err
	}

	transfer, err := s.withdraw(ctx, req, amount)
	if err != nil {
		return nil, err
	}

	s.logTransfer(transfer, req.UserID, "withdrawal applied")
	return transfer, nil
}

func (s *LedgerServiceImpl) withdraw(ctx context.Context, req ports.FundRequest, amount decimal.Decimal) (*domain.Transfer, error) {
	var transfer *domain.Transfer
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		fund, err := s.funds.GetOrCreate(ctx, tx, req.UserID, s.opts.Currency)
		if err != nil {
			return err
		}
		cash, err := s.funds.DecreaseCash(ctx, tx, fund.ID, amount)
		if err != nil {
			return err
		}

		transfer = s.newTransfer(domain.TransferTypeWithdraw, amount, req.OrderID, req.Note)
		transfer.FromFundID = &fund.ID
		if err := s.transfers.Create(ctx, tx, transfer); err != nil {
			return err
		}
		return s.recordAction(ctx, tx, fund.ID, transfer.ID, cash)
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}
	return transfer, nil
}

// Transfer moves amount between two users. The sender's holds are consumed
// first, latest expiry first, and only the remainder comes out of cash.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transfer, error) {
	amount, err := validAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.FromUserID == req.ToUserID {
		return nil, apperror.Validation("Cannot transfer to the same user")
	}
	if err := s.checkSubmit(ctx, domain.OpTransfer, req.FromUserID.String(), req.RequestID); err != nil {
		return nil, err
	}

	var transfer *domain.Transfer
	err = s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		from, err := s.funds.GetOrCreate(ctx, tx, req.FromUserID, s.opts.Currency)
		if err != nil {
			return err
		}
		to, err := s.funds.GetOrCreate(ctx, tx, req.ToUserID, s.opts.Currency)
		if err != nil {
			return err
		}

		locked, err := s.funds.LockFunds(ctx, tx, from.ID, to.ID)
		if err != nil {
			return err
		}
		for _, f := range locked {
			if f.ID == from.ID {
				from = f
			}
		}

		held, err := s.holds.TotalHeld(ctx, tx, from.ID)
		if err != nil {
			return err
		}
		if from.Cash.Add(held).LessThan(amount) {
			return domain.ErrInsufficientCash
		}

		remainder, err := s.holds.Consume(ctx, tx, from.ID, amount)
		if err != nil {
			return err
		}
		if remainder.IsNegative() {
			s.log.Error().
				Int64("fund_id", from.ID).
				Str("amount", amount.String()).
				Str("remainder", remainder.String()).
				Msg("hold consumption returned a negative remainder")
			return apperror.ErrInvariantViolation(fmt.Errorf("negative remainder %s consuming %s from fund %d", remainder, amount, from.ID))
		}

		fromCash := from.Cash
		if remainder.IsPositive() {
			if fromCash, err = s.funds.DecreaseCash(ctx, tx, from.ID, remainder); err != nil {
				return err
			}
		}
		toCash, err := s.funds.IncreaseCash(ctx, tx, to.ID, amount)
		if err != nil {
			return err
		}

		transfer = s.newTransfer(domain.TransferTypeTransfer, amount, req.OrderID, req.Note)
		transfer.FromFundID = &from.ID
		transfer.ToFundID = &to.ID
		if err := s.transfers.Create(ctx, tx, transfer); err != nil {
			return err
		}
		if err := s.recordAction(ctx, tx, from.ID, transfer.ID, fromCash); err != nil {
			return err
		}
		return s.recordAction(ctx, tx, to.ID, transfer.ID, toCash)
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}

	s.logTransfer(transfer, req.FromUserID, "transfer applied")
	return transfer, nil
}

// Pay credits a vendor for a payment the customer settled externally and
// grants the customer any cash-back the policy approves.
func (s *LedgerServiceImpl) Pay(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	amount, err := validAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.FromUserID == req.ToUserID {
		return nil, apperror.Validation("Cannot pay the same user")
	}
	if err := s.checkSubmit(ctx, domain.OpPay, req.FromUserID.String(), req.RequestID); err != nil {
		return nil, err
	}

	plan, err := s.planCashBack(ctx, ports.CashBackEvent{
		Kind: ports.CashBackKindPay, UserID: req.FromUserID, Amount: amount, OrderID: req.OrderID,
	})
	if err != nil {
		return nil, err
	}

	result := &ports.TransferResult{}
	err = s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		vendor, err := s.funds.GetOrCreate(ctx, tx, req.ToUserID, s.opts.Currency)
		if err != nil {
			return err
		}
		cash, err := s.funds.IncreaseCash(ctx, tx, vendor.ID, amount)
		if err != nil {
			return err
		}

		payer := req.FromUserID
		result.Transfer = s.newTransfer(domain.TransferTypePay, amount, req.OrderID, req.Note)
		result.Transfer.FromUserID = &payer
		result.Transfer.ToFundID = &vendor.ID
		if err := s.transfers.Create(ctx, tx, result.Transfer); err != nil {
			return err
		}
		if err := s.recordAction(ctx, tx, vendor.ID, result.Transfer.ID, cash); err != nil {
			return err
		}

		if plan != nil {
			payerFund, err := s.funds.GetOrCreate(ctx, tx, req.FromUserID, s.opts.Currency)
			if err != nil {
				return err
			}
			result.CashBack, err = s.applyCashBack(ctx, tx, payerFund, *plan)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}

	s.logTransfer(result.Transfer, req.ToUserID, "payment applied")
	s.notify(domain.EventTransferApplied, result.CashBack, req.FromUserID)
	return result, nil
}

// GrantCashBack credits amount as a hold that expires after the configured
// window. Amounts at or below the threshold are ignored and return nil.
func (s *LedgerServiceImpl) GrantCashBack(ctx context.Context, req ports.FundRequest) (*domain.Transfer, error) {
	amount, err := validAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.checkSubmit(ctx, domain.OpCashBack, req.UserID.String(), req.RequestID); err != nil {
		return nil, err
	}

	plan, err := s.withSettings(ctx, ports.CashBackGrant{Amount: amount, OrderID: req.OrderID, Note: req.Note})
	if err != nil {
		return nil, err
	}
	if !plan.applies() {
		return nil, nil
	}

	var transfer *domain.Transfer
	err = s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		fund, err := s.funds.GetOrCreate(ctx, tx, req.UserID, s.opts.Currency)
		if err != nil {
			return err
		}
		transfer, err = s.applyCashBack(ctx, tx, fund, *plan)
		return err
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}

	s.logTransfer(transfer, req.UserID, "cash-back granted")
	return transfer, nil
}

// Payout withdraws from the ledger and then pays the user out through the
// provider. The provider is called after the ledger commit; if it fails the
// transfer is flagged ADMIN_REQUIRED and returned together with a
// WithdrawError.
func (s *LedgerServiceImpl) Payout(ctx context.Context, req ports.PayoutRequest) (*domain.Transfer, error) {
	if req.Provider == nil {
		return nil, apperror.ErrUnsupportedProvider("")
	}
	amount, err := validAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.checkSubmit(ctx, domain.OpWithdraw, req.UserID.String(), req.RequestID); err != nil {
		return nil, err
	}

	transfer, err := s.withdraw(ctx, req.FundRequest, amount)
	if err != nil {
		return nil, err
	}

	orderID := transfer.UUID.String()
	if transfer.OrderID != nil {
		orderID = *transfer.OrderID
	}
	receipt, payErr := req.Provider.Withdraw(ctx, ports.WithdrawRequest{
		OrderID: orderID,
		OpenID:  req.OpenID,
		Amount:  amount,
		Note:    req.Note,
	})

	// The debit is committed; from here on the request context may already
	// be gone.
	bookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()

	if payErr != nil {
		s.notify(domain.EventTransferApplied, transfer, req.UserID)
		s.flagForReview(bookCtx, transfer, req.UserID, req.Provider.Name(), payErr)
		return transfer, apperror.ErrWithdrawFailed(payErr)
	}

	extra := map[string]any{
		"provider":       req.Provider.Name(),
		"provider_tx_id": receipt.ProviderTxID,
		"paid_at":        receipt.PaidAt.UTC().Format(time.RFC3339),
	}
	if err := s.transfers.MergeExtra(bookCtx, nil, transfer.ID, extra); err != nil {
		s.log.Error().Err(err).
			Str("transfer_id", transfer.UUID.String()).
			Str("provider_tx_id", receipt.ProviderTxID).
			Msg("payout succeeded but receipt could not be attached")
	} else {
		mergeInto(transfer, extra)
	}

	s.logTransfer(transfer, req.UserID, "payout completed")
	return transfer, nil
}

func (s *LedgerServiceImpl) flagForReview(ctx context.Context, transfer *domain.Transfer, userID uuid.UUID, provider string, cause error) {
	logEvt := s.log.Error().Err(cause).
		Str("transfer_id", transfer.UUID.String()).
		Str("provider", provider).
		Str("amount", transfer.Amount.String())

	if err := s.transfers.UpdateStatus(ctx, nil, transfer.ID, domain.TransferStatusSuccess, domain.TransferStatusAdminRequired); err != nil {
		logEvt.AnErr("flag_error", err).Msg("payout failed and transfer could not be flagged")
		return
	}
	transfer.Status = domain.TransferStatusAdminRequired

	extra := map[string]any{"provider": provider, "withdraw_error": cause.Error()}
	if err := s.transfers.MergeExtra(ctx, nil, transfer.ID, extra); err == nil {
		mergeInto(transfer, extra)
	}
	logEvt.Msg("payout failed, transfer requires admin review")
	s.notify(domain.EventTransferStatusChanged, transfer, userID)
}

// ResolveTransfer settles a transfer awaiting review. Denial does not
// revert the ledger; reconciliation is manual.
func (s *LedgerServiceImpl) ResolveTransfer(ctx context.Context, transferID uuid.UUID, status domain.TransferStatus) (*domain.Transfer, error) {
	transfer, err := s.transfers.GetByUUID(ctx, transferID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transfer: %w", err))
	}
	if transfer == nil {
		return nil, apperror.ErrNotFound("transfer")
	}
	if transfer.Status != domain.TransferStatusAdminRequired || !transfer.CanTransition(status) {
		return nil, apperror.ErrInvalidTransition(string(transfer.Status), string(status))
	}

	if err := s.transfers.UpdateStatus(ctx, nil, transfer.ID, transfer.Status, status); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, apperror.ErrInvalidTransition(string(transfer.Status), string(status))
		}
		return nil, apperror.InternalError(fmt.Errorf("update transfer status: %w", err))
	}

	s.log.Info().
		Str("transfer_id", transfer.UUID.String()).
		Str("from", string(transfer.Status)).
		Str("to", string(status)).
		Msg("transfer resolved")

	transfer.Status = status
	s.notify(domain.EventTransferStatusChanged, transfer, uuid.Nil)
	return transfer, nil
}

// GetTransfer looks up the transfer recorded for (type, order id).
func (s *LedgerServiceImpl) GetTransfer(ctx context.Context, transferType domain.TransferType, orderID string) (*domain.Transfer, error) {
	if !transferType.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("Unknown transfer type %q", transferType))
	}
	transfer, err := s.transfers.GetByOrder(ctx, transferType, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transfer by order: %w", err))
	}
	if transfer == nil {
		return nil, apperror.ErrNotFound("transfer")
	}
	return transfer, nil
}

// QueryFund returns the user's balance. A user without a fund has a zero balance.
func (s *LedgerServiceImpl) QueryFund(ctx context.Context, userID uuid.UUID) (*domain.FundView, error) {
	view := &domain.FundView{
		UserID:   userID,
		Currency: s.opts.Currency,
		Balance:  domain.NewBalance(decimal.Zero, decimal.Zero),
	}

	fund, err := s.funds.GetByUser(ctx, userID, s.opts.Currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get fund: %w", err))
	}
	if fund == nil {
		return view, nil
	}

	held, err := s.holds.TotalHeld(ctx, nil, fund.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum holds: %w", err))
	}

	view.FundID = fund.UUID
	view.Balance = domain.NewBalance(fund.Cash, held)
	return view, nil
}

// QueryHolds lists the user's active holds, latest expiry first.
func (s *LedgerServiceImpl) QueryHolds(ctx context.Context, userID uuid.UUID) ([]domain.Hold, error) {
	fund, err := s.funds.GetByUser(ctx, userID, s.opts.Currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get fund: %w", err))
	}
	if fund == nil {
		return []domain.Hold{}, nil
	}
	holds, err := s.holds.List(ctx, fund.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list holds: %w", err))
	}
	return holds, nil
}

// QueryLedger returns the user's balance history, most recent first.
func (s *LedgerServiceImpl) QueryLedger(ctx context.Context, userID uuid.UUID, query ports.LedgerQuery) ([]domain.LedgerEntry, int64, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = s.opts.PageSize
	}
	if query.PageSize > maxLedgerPageSize {
		query.PageSize = maxLedgerPageSize
	}
	if query.Type != nil && !query.Type.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("Unknown transfer type %q", *query.Type))
	}

	fund, err := s.funds.GetByUser(ctx, userID, s.opts.Currency)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("get fund: %w", err))
	}
	if fund == nil {
		return []domain.LedgerEntry{}, 0, nil
	}

	entries, total, err := s.actions.ListByFund(ctx, ports.LedgerListParams{
		FundID:   fund.ID,
		Type:     query.Type,
		From:     query.From,
		To:       query.To,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list ledger: %w", err))
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	return entries, total, nil
}

// ReleaseExpiredHolds converts every expired hold back to cash.
func (s *LedgerServiceImpl) ReleaseExpiredHolds(ctx context.Context) (int, error) {
	n, err := s.holds.ReleaseExpired(ctx)
	if err != nil {
		return n, apperror.InternalError(fmt.Errorf("release expired holds: %w", err))
	}
	return n, nil
}

// --- helpers ---

func validAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	amount = domain.NormalizeAmount(amount)
	if !amount.IsPositive() {
		return decimal.Zero, apperror.ErrInvalidAmount()
	}
	return amount, nil
}

func (s *LedgerServiceImpl) checkSubmit(ctx context.Context, op, callerID, requestID string) error {
	return guardSubmit(ctx, s.guard, s.opts.ResubmitTTL, s.log, op, callerID, requestID)
}

// guardSubmit consults the resubmission guard. A guard outage is logged and
// the request proceeds; the (type, order_id) constraint still deduplicates.
func guardSubmit(ctx context.Context, guard ports.SubmitGuard, ttl time.Duration, log zerolog.Logger, op, callerID, requestID string) error {
	if requestID == "" || guard == nil {
		return nil
	}
	ok, err := guard.Guard(ctx, op, callerID, requestID, ttl)
	if err != nil {
		log.Warn().Err(err).Str("operation", op).Str("caller_id", callerID).
			Msg("submit guard unavailable, continuing without it")
		return nil
	}
	if !ok {
		return apperror.ErrAlreadySubmitted()
	}
	return nil
}

// planCashBack asks the policy for a grant before any lock is taken. A
// policy failure only forfeits the cash-back.
func (s *LedgerServiceImpl) planCashBack(ctx context.Context, event ports.CashBackEvent) (*cashBackPlan, error) {
	if s.policy == nil {
		return nil, nil
	}
	grant, err := s.policy.Evaluate(ctx, event)
	if err != nil {
		s.log.Warn().Err(err).
			Str("kind", string(event.Kind)).
			Str("user_id", event.UserID.String()).
			Msg("cash-back policy failed, skipping cash-back")
		return nil, nil
	}
	if grant == nil {
		return nil, nil
	}
	grant.Amount = domain.NormalizeAmount(grant.Amount)
	if !grant.Amount.IsPositive() {
		return nil, nil
	}

	plan, err := s.withSettings(ctx, *grant)
	if err != nil {
		return nil, err
	}
	if !plan.applies() {
		return nil, nil
	}
	return plan, nil
}

func (s *LedgerServiceImpl) withSettings(ctx context.Context, grant ports.CashBackGrant) (*cashBackPlan, error) {
	threshold, err := s.settings.CashBackThreshold(ctx)
	if err != nil {
		return nil, err
	}
	days, err := s.settings.CashBackExpiredDays(ctx)
	if err != nil {
		return nil, err
	}
	return &cashBackPlan{grant: grant, threshold: threshold, expiredDays: days}, nil
}

func (p *cashBackPlan) applies() bool {
	return p.grant.Amount.GreaterThan(p.threshold)
}

// applyCashBack records a CASHBACK transfer and the matching hold.
func (s *LedgerServiceImpl) applyCashBack(ctx context.Context, tx pgx.Tx, fund *domain.Fund, plan cashBackPlan) (*domain.Transfer, error) {
	if !plan.applies() {
		return nil, nil
	}

	transfer := s.newTransfer(domain.TransferTypeCashBack, plan.grant.Amount, plan.grant.OrderID, plan.grant.Note)
	transfer.ToFundID = &fund.ID
	if err := s.transfers.Create(ctx, tx, transfer); err != nil {
		return nil, err
	}

	expiredAt := s.now().AddDate(0, 0, plan.expiredDays)
	if _, err := s.holds.Grant(ctx, tx, fund.ID, plan.grant.Amount, expiredAt, plan.grant.OrderID); err != nil {
		return nil, err
	}

	cash, err := s.currentCash(ctx, tx, fund.ID)
	if err != nil {
		return nil, err
	}
	if err := s.recordAction(ctx, tx, fund.ID, transfer.ID, cash); err != nil {
		return nil, err
	}
	return transfer, nil
}

func (s *LedgerServiceImpl) currentCash(ctx context.Context, tx pgx.Tx, fundID int64) (decimal.Decimal, error) {
	fund, err := s.funds.GetByID(ctx, tx, fundID)
	if err != nil {
		return decimal.Zero, err
	}
	if fund == nil {
		return decimal.Zero, fmt.Errorf("fund not found: %d", fundID)
	}
	return fund.Cash, nil
}

// recordAction snapshots the fund's balance after the transfer.
func (s *LedgerServiceImpl) recordAction(ctx context.Context, tx pgx.Tx, fundID, transferID int64, cash decimal.Decimal) error {
	held, err := s.holds.TotalHeld(ctx, tx, fundID)
	if err != nil {
		return err
	}
	return s.actions.Upsert(ctx, tx, &domain.Action{
		Model:      domain.NewModel(s.now()),
		FundID:     fundID,
		TransferID: transferID,
		Balance:    domain.NewBalance(cash, held),
	})
}

func (s *LedgerServiceImpl) newTransfer(typ domain.TransferType, amount decimal.Decimal, orderID, note string) *domain.Transfer {
	return &domain.Transfer{
		Model:   domain.NewModel(s.now()),
		Amount:  amount,
		Type:    typ,
		Status:  domain.TransferStatusSuccess,
		Note:    note,
		OrderID: domain.OptionalOrderID(orderID),
		Extra:   map[string]any{},
	}
}

// inTx runs fn in one transaction bounded by the ledger timeout.
func (s *LedgerServiceImpl) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if s.opts.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TxTimeout)
		defer cancel()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, dbTx); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ledgerError maps store sentinels to API errors; AppErrors pass through.
func (s *LedgerServiceImpl) ledgerError(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domain.ErrDuplicate):
		return apperror.ErrDuplicateOperation()
	case errors.Is(err, domain.ErrInsufficientCash):
		return apperror.ErrInsufficientBalance()
	default:
		return apperror.InternalError(err)
	}
}

func (s *LedgerServiceImpl) notify(eventType string, t *domain.Transfer, userID uuid.UUID) {
	if s.notifier == nil || t == nil {
		return
	}
	s.notifier.Notify(eventType, t, userID)
}

// logTransfer logs a committed transfer and publishes it.
func (s *LedgerServiceImpl) logTransfer(t *domain.Transfer, userID uuid.UUID, msg string) {
	if t == nil {
		return
	}
	s.notify(domain.EventTransferApplied, t, userID)
	s.log.Info().
		Str("transfer_id", t.UUID.String()).
		Str("type", string(t.Type)).
		Str("status", string(t.Status)).
		Str("user_id", userID.String()).
		Str("amount", t.Amount.String()).
		Msg(msg)
}

func mergeInto(t *domain.Transfer, extra map[string]any) {
	if t.Extra == nil {
		t.Extra = map[string]any{}
	}
	for k, v := range extra {
		t.Extra[k] = v
	}
}
