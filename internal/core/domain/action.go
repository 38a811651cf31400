package domain

// Action is the audit entry for one (fund, transfer) pair, holding the
// fund's balance right after the transfer was applied.
type Action struct {
	Model
	FundID     int64          `json:"-"`
	TransferID int64          `json:"-"`
	Balance    Balance        `json:"balance"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// LedgerEntry pairs an Action with the transfer that produced it.
type LedgerEntry struct {
	Action   Action   `json:"action"`
	Transfer Transfer `json:"transfer"`
}
