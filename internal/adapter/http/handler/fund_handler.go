package handler

import (
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// FundHandler serves the caller's balance, holds and history.
type FundHandler struct {
	ledger   ports.LedgerService
	pageSize int
}

// NewFundHandler creates a new FundHandler. pageSize applies when the
// caller does not ask for one.
func NewFundHandler(ledger ports.LedgerService, pageSize int) *FundHandler {
	if pageSize < 1 {
		pageSize = 20
	}
	return &FundHandler{ledger: ledger, pageSize: pageSize}
}

// GetFund handles GET /api/v1/funds/me.
func (h *FundHandler) GetFund(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	view, err := h.ledger.QueryFund(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewFundResponse(view))
}

// ListHolds handles GET /api/v1/funds/me/holds.
func (h *FundHandler) ListHolds(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	holds, err := h.ledger.QueryHolds(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewHoldResponses(holds))
}

// ListLedger handles GET /api/v1/funds/me/ledger.
func (h *FundHandler) ListLedger(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var params dto.LedgerQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = h.pageSize
	}
	query := ports.LedgerQuery{Page: params.Page, PageSize: params.PageSize}
	if params.Type != "" {
		t := domain.TransferType(params.Type)
		query.Type = &t
	}
	if params.From != "" {
		from, _ := time.Parse(time.RFC3339, params.From)
		query.From = &from
	}
	if params.To != "" {
		to, _ := time.Parse(time.RFC3339, params.To)
		query.To = &to
	}

	entries, total, err := h.ledger.QueryLedger(c.Request.Context(), userID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.NewLedgerEntryResponses(entries), params.Page, params.PageSize, total)
}
