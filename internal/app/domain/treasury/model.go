package treasury

import "time"

// WithdrawalStatus tracks a payout through settlement.
type WithdrawalStatus string

const (
	StatusPending   WithdrawalStatus = "pending"
	StatusCompleted WithdrawalStatus = "completed"
	StatusFailed    WithdrawalStatus = "failed"
)

// Withdrawal is one treasury payout. The campaign balance is debited when
// the withdrawal is created; a failed settlement credits it back.
type Withdrawal struct {
	ID          string
	CampaignID  string
	Amount      int64
	To          string
	Status      WithdrawalStatus
	TxID        string
	Message     string
	RequestedAt time.Time
	SettledAt   time.Time
}
