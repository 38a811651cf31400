package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminHandler serves the internal endpoints used by other services and
// operators: crediting funds, settings and transfer review.
type AdminHandler struct {
	ledger   ports.LedgerService
	settings ports.SettingsProvider
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledger ports.LedgerService, settings ports.SettingsProvider) *AdminHandler {
	return &AdminHandler{ledger: ledger, settings: settings}
}

func (h *AdminHandler) bindFund(c *gin.Context) (ports.FundRequest, bool) {
	var req dto.FundRequest
	if !bindJSON(c, &req) {
		return ports.FundRequest{}, false
	}
	userID, ok := parseUUID(c, req.UserID, "user_id")
	if !ok {
		return ports.FundRequest{}, false
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return ports.FundRequest{}, false
	}
	return ports.FundRequest{
		UserID:    userID,
		Amount:    amount,
		OrderID:   req.OrderID,
		Note:      req.Note,
		RequestID: requestID(c),
	}, true
}

// Deposit handles POST /internal/deposits, called once an upstream
// payment order was confirmed paid.
func (h *AdminHandler) Deposit(c *gin.Context) {
	req, ok := h.bindFund(c)
	if !ok {
		return
	}
	result, err := h.ledger.Deposit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewOperationResponse(result.Transfer, result.CashBack))
}

// GrantCashBack handles POST /internal/cashbacks. A grant at or below the
// threshold is not applied and answers 200 with null data.
func (h *AdminHandler) GrantCashBack(c *gin.Context) {
	req, ok := h.bindFund(c)
	if !ok {
		return
	}
	transfer, err := h.ledger.GrantCashBack(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if transfer == nil {
		response.OK(c, nil)
		return
	}
	response.Created(c, dto.NewTransferResponse(transfer))
}

// ReleaseHolds handles POST /internal/holds/release.
func (h *AdminHandler) ReleaseHolds(c *gin.Context) {
	released, err := h.ledger.ReleaseExpiredHolds(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ReleaseResponse{Released: released})
}

// GetSetting handles GET /internal/settings/:name. Unset names read as 0.
func (h *AdminHandler) GetSetting(c *gin.Context) {
	name := c.Param("name")
	value, err := h.settings.Get(c.Request.Context(), name, decimal.Zero)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.SettingResponse{Name: name, Value: value.String()})
}

// PutSetting handles PUT /internal/settings/:name.
func (h *AdminHandler) PutSetting(c *gin.Context) {
	name := c.Param("name")
	var req dto.SettingRequest
	if !bindJSON(c, &req) {
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		response.Error(c, apperror.Validation("value must be a decimal"))
		return
	}
	if err := h.settings.Set(c.Request.Context(), name, value); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.SettingResponse{Name: name, Value: value.String()})
}

// ResolveTransfer handles PUT /internal/transfers/:id/status.
func (h *AdminHandler) ResolveTransfer(c *gin.Context) {
	id, ok := parseUUID(c, c.Param("id"), "id")
	if !ok {
		return
	}
	var req dto.TransferStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	transfer, err := h.ledger.ResolveTransfer(c.Request.Context(), id, domain.TransferStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransferResponse(transfer))
}

// GetTransfer handles GET /internal/transfers/:type/:order_id.
func (h *AdminHandler) GetTransfer(c *gin.Context) {
	transfer, err := h.ledger.GetTransfer(
		c.Request.Context(),
		domain.TransferType(c.Param("type")),
		c.Param("order_id"),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransferResponse(transfer))
}
