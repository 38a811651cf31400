package domain

// Operation names used as the first component of a resubmission guard key.
const (
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpTransfer = "transfer"
	OpPay      = "pay"
	OpCashBack = "cashback"
	OpTopUp    = "topup"
)

// BuildSubmitKey constructs the guard key for one request of one caller.
func BuildSubmitKey(operation, callerID, requestID string) string {
	return operation + ":" + callerID + ":" + requestID
}
