package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger event types published after commit.
const (
	EventTransferApplied       = "ledger.transfer.applied"
	EventTransferStatusChanged = "ledger.transfer.status_changed"
)

// TransferEvent is the message body of a ledger event.
type TransferEvent struct {
	EventType  string          `json:"event_type"`
	TransferID uuid.UUID       `json:"transfer_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Type       TransferType    `json:"type"`
	Status     TransferStatus  `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	OrderID    *string         `json:"order_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewTransferEvent builds the event for t on behalf of userID.
func NewTransferEvent(eventType string, t *Transfer, userID uuid.UUID, now time.Time) TransferEvent {
	return TransferEvent{
		EventType:  eventType,
		TransferID: t.UUID,
		UserID:     userID,
		Type:       t.Type,
		Status:     t.Status,
		Amount:     t.Amount,
		OrderID:    t.OrderID,
		OccurredAt: now,
	}
}
