package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// bindJSON binds and sanitizes the body, writing a LED_001 error on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// currentUser returns the caller set by BearerAuth.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
	}
	return id, ok
}

func parseUUID(c *gin.Context, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.Validation(field+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func parseAmount(c *gin.Context, raw string) (decimal.Decimal, bool) {
	amount, err := dto.ParseAmount(raw)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return decimal.Zero, false
	}
	return amount, true
}

// requestID is the caller-supplied request id used by the resubmission guard.
// Minted ids are never reused, so they are not passed on.
func requestID(c *gin.Context) string {
	return c.GetHeader(middleware.HeaderRequestID)
}
