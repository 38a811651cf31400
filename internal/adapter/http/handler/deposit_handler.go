package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// DepositHandler serves provider top-up orders.
type DepositHandler struct {
	deposits  ports.DepositService
	providers ProviderLookup
}

func NewDepositHandler(deposits ports.DepositService, providers ProviderLookup) *DepositHandler {
	return &DepositHandler{deposits: deposits, providers: providers}
}

// CreateOrder handles POST /api/v1/deposits/orders.
func (h *DepositHandler) CreateOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.DepositOrderRequest
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

	result, err := h.deposits.CreateOrder(c.Request.Context(), ports.DepositOrderRequest{
		UserID:    userID,
		Provider:  provider,
		Amount:    amount,
		OpenID:    req.OpenID,
		Code:      req.Code,
		RequestID: requestID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewDepositOrderResponse(result.Order, result.PayParams))
}

// GetOrder handles GET /api/v1/deposits/orders/:order_id. A pending order
// is synced first; if the provider is unreachable the stored state is
// returned.
func (h *DepositHandler) GetOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	order, err := h.deposits.GetOrder(ctx, c.Param("order_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if order.UserID != userID {
		response.Error(c, apperror.ErrNotFound("deposit order"))
		return
	}

	if order.State == domain.DepositOrderPending {
		synced, err := h.deposits.SyncOrder(ctx, order.OrderID)
		switch {
		case err == nil:
			order = synced
		case !apperror.HasCode(err, apperror.CodeProviderFailed):
			response.Error(c, err)
			return
		}
	}
	response.OK(c, dto.NewDepositOrderResponse(order, nil))
}

// SyncOrder handles POST /internal/deposits/orders/:order_id/sync.
func (h *DepositHandler) SyncOrder(c *gin.Context) {
	order, err := h.deposits.SyncOrder(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewDepositOrderResponse(order, nil))
}

// SyncPending handles POST /internal/deposits/sync. Orders that failed to
// sync stay pending for the next run, so partial failures are still a 200.
func (h *DepositHandler) SyncPending(c *gin.Context) {
	n, err := h.deposits.SyncPending(c.Request.Context())
	if err != nil && n == 0 {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.SyncResponse{Settled: n})
}
