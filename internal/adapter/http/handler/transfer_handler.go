package handler

import (
	"errors"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ProviderLookup resolves a payment provider by name.
type ProviderLookup interface {
	Get(name string) (ports.PaymentProvider, error)
}

// TransferHandler serves the money-moving endpoints a user calls.
type TransferHandler struct {
	ledger    ports.LedgerService
	providers ProviderLookup
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(ledger ports.LedgerService, providers ProviderLookup) *TransferHandler {
	return &TransferHandler{ledger: ledger, providers: providers}
}

// Transfer handles POST /api/v1/transfers.
func (h *TransferHandler) Transfer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	toUserID, ok := parseUUID(c, req.ToUserID, "to_user_id")
	if !ok {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	transfer, err := h.ledger.Transfer(c.Request.Context(), ports.TransferRequest{
		FromUserID: userID,
		ToUserID:   toUserID,
		Amount:     amount,
		OrderID:    req.OrderID,
		Note:       req.Note,
		RequestID:  requestID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewTransferResponse(transfer))
}

// Pay handles POST /api/v1/payments.
func (h *TransferHandler) Pay(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	vendorID, ok := parseUUID(c, req.VendorID, "vendor_id")
	if !ok {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	result, err := h.ledger.Pay(c.Request.Context(), ports.TransferRequest{
		FromUserID: userID,
		ToUserID:   vendorID,
		Amount:     amount,
		OrderID:    req.OrderID,
		Note:       req.Note,
		RequestID:  requestID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewOperationResponse(result.Transfer, result.CashBack))
}

// Withdraw handles POST /api/v1/withdrawals. A payout the provider rejected
// still debited the ledger; the flagged transfer is returned as details.
func (h *TransferHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.WithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}
	provider, err := h.providers.Get(req.Provider)
	if err != nil {
		response.Error(c, err)
		return
	}

	transfer, err := h.ledger.Payout(c.Request.Context(), ports.PayoutRequest{
		FundRequest: ports.FundRequest{
			UserID:    userID,
			Amount:    amount,
			OrderID:   req.OrderID,
			Note:      req.Note,
			RequestID: requestID(c),
		},
		Provider: provider,
		OpenID:   req.OpenID,
	})
	if err != nil {
		var appErr *apperror.AppError
		if transfer != nil && errors.As(err, &appErr) && appErr.Code == apperror.CodeWithdrawFailed {
			response.ErrorWithDetails(c, err, dto.NewTransferResponse(transfer))
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewTransferResponse(transfer))
}
